package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/thematters/contracts/pkg/allocation"
	"github.com/thematters/contracts/pkg/config"
	"github.com/thematters/contracts/pkg/logger"
	"github.com/thematters/contracts/pkg/merkle"
	"github.com/thematters/contracts/pkg/metadata"
	"github.com/thematters/contracts/pkg/persistence"
)

func newLogger(c *cli.Context) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("debug")})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

func generateCommand(c *cli.Context) error {
	cfg := treeConfigFromContext(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()
	sugar := l.Sugar()

	allocs, err := allocation.LoadAllocations(cfg.AllocationsPath)
	if err != nil {
		return err
	}
	if cfg.RequireFullShares {
		if err := allocation.ValidateShares(allocs); err != nil {
			return err
		}
	}
	sugar.Debugw("Loaded allocations",
		"path", cfg.AllocationsPath,
		"count", len(allocs),
		"total", allocation.TotalAmount(allocs).String(),
	)

	tree, err := allocation.BuildTree(allocs, &merkle.TreeOptions{Hash: cfg.Hash, Workers: c.Int("workers")})
	if err != nil {
		return fmt.Errorf("failed to build tree: %w", err)
	}
	sugar.Infow("Built distribution tree",
		"root", tree.Root.Hex(),
		"leaves", tree.Len(),
		"depth", tree.Depth(),
		"hash", tree.HashAlgorithm(),
	)
	fmt.Fprintf(c.App.Writer, "Merkle Root: %s\n", tree.Root.Hex())

	store, err := newTreeStore(&cfg.Store, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveTree(cfg.TreeName, tree.Dump()); err != nil {
		return fmt.Errorf("failed to save tree: %w", err)
	}
	sugar.Infow("Saved tree", "name", cfg.TreeName, "store", cfg.Store.Type)

	// proofs come from the persisted copy so a broken store shows up here
	loaded, err := loadTree(store, cfg.TreeName)
	if err != nil {
		return err
	}
	if loaded.Root != tree.Root {
		return fmt.Errorf("reloaded tree root %s does not match %s", loaded.Root.Hex(), tree.Root.Hex())
	}

	return printProofs(c.App.Writer, loaded)
}

func proofsCommand(c *cli.Context) error {
	storeCfg := storeConfigFromContext(c)
	name := c.String("tree-name")
	if err := config.ValidateTreeName(name); err != nil {
		return err
	}

	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	store, err := newTreeStore(&storeCfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	tree, err := loadTree(store, name)
	if err != nil {
		return err
	}

	l.Sugar().Infow("Loaded tree", "name", name, "root", tree.Root.Hex(), "leaves", tree.Len())
	fmt.Fprintf(c.App.Writer, "Merkle Root: %s\n", tree.Root.Hex())
	if c.Bool("render") {
		fmt.Fprint(c.App.Writer, tree.Render())
	}

	if c.IsSet("index") {
		return printProof(c.App.Writer, tree, c.Int("index"))
	}
	return printProofs(c.App.Writer, tree)
}

func verifyCommand(c *cli.Context) error {
	var leaf merkle.Leaf
	if err := json.Unmarshal([]byte(c.String("leaf")), &leaf); err != nil {
		return fmt.Errorf("invalid leaf, expected a JSON array of strings: %w", err)
	}

	if c.IsSet("tree") {
		return verifyInStore(c, leaf)
	}
	if !c.IsSet("root") {
		return fmt.Errorf("--root is required unless --tree is given")
	}

	siblings, err := parseHashList(c.String("proof"))
	if err != nil {
		return fmt.Errorf("invalid proof: %w", err)
	}

	root, err := parseHash(c.String("root"))
	if err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}

	ok, err := merkle.VerifyProof(
		&merkle.Proof{Value: leaf, Siblings: siblings},
		splitList(c.String("types")),
		merkle.HashAlgorithm(c.String("hash")),
		root,
	)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("proof does not verify against root %s", root.Hex())
	}

	fmt.Fprintln(c.App.Writer, "Proof is valid")
	return nil
}

// verifyInStore finds leaf in a saved tree and checks its proof against the tree root.
// --proof and --root, when given, replace the tree's own proof and are checked too.
func verifyInStore(c *cli.Context, leaf merkle.Leaf) error {
	name := c.String("tree")
	if err := config.ValidateTreeName(name); err != nil {
		return err
	}
	storeCfg := storeConfigFromContext(c)

	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	store, err := newTreeStore(&storeCfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	tree, err := loadTree(store, name)
	if err != nil {
		return err
	}

	index, err := tree.LeafLookup(leaf)
	if err != nil {
		return fmt.Errorf("leaf is not in tree %q: %w", name, err)
	}
	if slices.Equal(tree.FieldTypes(), allocation.FieldTypes) {
		stored, err := tree.At(index)
		if err != nil {
			return err
		}
		alloc, err := allocation.FromLeaf(stored)
		if err != nil {
			return fmt.Errorf("leaf is not a valid allocation: %w", err)
		}
		l.Sugar().Infow("Found allocation",
			"tree", name,
			"index", index,
			"cid", alloc.ContentID,
			"account", alloc.Account.Hex(),
			"amount", alloc.Amount.String(),
		)
	}

	root := tree.Root
	if c.IsSet("root") {
		if root, err = parseHash(c.String("root")); err != nil {
			return fmt.Errorf("invalid root: %w", err)
		}
	}

	var siblings []common.Hash
	if c.IsSet("proof") {
		if siblings, err = parseHashList(c.String("proof")); err != nil {
			return fmt.Errorf("invalid proof: %w", err)
		}
	} else if siblings, err = tree.GetProof(index); err != nil {
		return err
	}

	digest, err := tree.LeafDigest(index)
	if err != nil {
		return err
	}
	ok, err := merkle.VerifyWithHash(tree.HashAlgorithm(), digest, siblings, root)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("proof does not verify against root %s", root.Hex())
	}

	fmt.Fprintf(c.App.Writer, "Proof is valid (leaf %d of tree %s)\n", index, name)
	return nil
}

func listCommand(c *cli.Context) error {
	storeCfg := storeConfigFromContext(c)

	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	store, err := newTreeStore(&storeCfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	names, err := store.ListTrees()
	if err != nil {
		return fmt.Errorf("failed to list trees: %w", err)
	}
	for _, name := range names {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one tree name, got %d arguments", c.NArg())
	}
	name := c.Args().First()
	if err := config.ValidateTreeName(name); err != nil {
		return err
	}
	storeCfg := storeConfigFromContext(c)

	l, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	store, err := newTreeStore(&storeCfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.DeleteTree(name); err != nil {
		return fmt.Errorf("failed to delete tree: %w", err)
	}
	l.Sugar().Infow("Deleted tree", "name", name, "store", storeCfg.Type)
	return nil
}

func logbookMetadataCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one token URI argument, got %d", c.NArg())
	}

	overrides, err := overridesFromContext(c)
	if err != nil {
		return err
	}

	enc, err := metadata.NewEncoder()
	if err != nil {
		return err
	}

	encoded, err := enc.EncodeTokenURI(c.Args().First(), overrides)
	if err != nil {
		return err
	}
	if c.Bool("with-selector") {
		encoded = append(enc.Selector(), encoded...)
	}

	_, err = fmt.Fprint(c.App.Writer, hexutil.Encode(encoded))
	return err
}

func overridesFromContext(c *cli.Context) (*metadata.Overrides, error) {
	var o metadata.Overrides
	if c.IsSet("log-count") {
		v, err := uint32Flag(c, "log-count")
		if err != nil {
			return nil, err
		}
		o.LogCount = &v
	}
	if c.IsSet("transfer-count") {
		v, err := uint32Flag(c, "transfer-count")
		if err != nil {
			return nil, err
		}
		o.TransferCount = &v
	}
	if c.IsSet("token-id") {
		id, ok := new(big.Int).SetString(c.String("token-id"), 0)
		if !ok || id.Sign() < 0 || id.BitLen() > 256 {
			return nil, fmt.Errorf("invalid token id %q", c.String("token-id"))
		}
		o.TokenID = id
	}
	return &o, nil
}

func uint32Flag(c *cli.Context, name string) (uint32, error) {
	v := c.Uint(name)
	if uint64(v) > uint64(^uint32(0)) {
		return 0, fmt.Errorf("--%s %d does not fit in uint32", name, v)
	}
	return uint32(v), nil
}

func loadTree(store persistence.ITreeStore, name string) (*merkle.Tree, error) {
	st, err := store.LoadTree(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load tree %q: %w", name, err)
	}
	if st == nil {
		return nil, fmt.Errorf("tree %q not found", name)
	}
	tree, err := merkle.Load(st)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild tree %q: %w", name, err)
	}
	return tree, nil
}

// printProofs writes a Value and a Proof line per leaf, in tree order.
func printProofs(w io.Writer, tree *merkle.Tree) error {
	for i, value := range tree.Entries() {
		if err := writeProof(w, tree, i, value); err != nil {
			return err
		}
	}
	return nil
}

// printProof writes the lines of a single leaf. Indices outside the tree fail with merkle.ErrIndex.
func printProof(w io.Writer, tree *merkle.Tree, index int) error {
	value, err := tree.At(index)
	if err != nil {
		return err
	}
	return writeProof(w, tree, index, value)
}

func writeProof(w io.Writer, tree *merkle.Tree, index int, value merkle.Leaf) error {
	proof, err := tree.GetProof(index)
	if err != nil {
		return err
	}

	valueJSON, err := json.Marshal(value)
	if err != nil {
		return err
	}
	proofJSON, err := json.Marshal(proof)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Value: %s\n", valueJSON)
	fmt.Fprintf(w, "Proof: %s\n", proofJSON)
	return nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("expected %d bytes, got %d", common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

// parseHashList accepts "0xaa..,0xbb.." or a JSON array of hex strings.
func parseHashList(s string) ([]common.Hash, error) {
	s = strings.TrimSpace(s)
	var items []string
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &items); err != nil {
			return nil, err
		}
	} else {
		items = splitList(s)
	}

	hashes := make([]common.Hash, 0, len(items))
	for i, item := range items {
		h, err := parseHash(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
