package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thematters/contracts/internal/tests"
	"github.com/thematters/contracts/pkg/allocation"
	"github.com/thematters/contracts/pkg/merkle"
	"github.com/thematters/contracts/pkg/metadata"
)

var exampleAllocations = tests.ExampleAllocationsPath()

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"billboard"}, args...))
	return out.String(), err
}

func exampleTree(t *testing.T) *merkle.Tree {
	t.Helper()
	allocs, err := allocation.LoadAllocations(exampleAllocations)
	require.NoError(t, err)
	tree, err := allocation.BuildTree(allocs, nil)
	require.NoError(t, err)
	return tree
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	tree := exampleTree(t)

	out, err := runApp(t, "--store-path", dir, "generate", "--allocations", exampleAllocations, "--require-full-shares")
	require.NoError(t, err)

	assert.Contains(t, out, "Merkle Root: "+tree.Root.Hex())
	assert.Equal(t, 3, strings.Count(out, "Value: "))
	assert.Equal(t, 3, strings.Count(out, "Proof: "))
	assert.Contains(t, out, `Value: ["QmSAwncsWGXeqwrL5USBzQXvjqfH1nFfARLGM91sfd4NZe","0x0000000000000000000000000000000000000067","2055"]`)

	raw, err := os.ReadFile(filepath.Join(dir, "tree.json"))
	require.NoError(t, err)
	saved, err := merkle.UnmarshalTree(raw)
	require.NoError(t, err)
	assert.Equal(t, tree.Root, saved.Root)
}

func TestGenerateInvalidConfig(t *testing.T) {
	_, err := runApp(t, "--store", "postgres", "generate", "--allocations", exampleAllocations)
	require.Error(t, err)

	_, err = runApp(t, "--store", "memory", "generate", "--allocations", exampleAllocations, "--hash", "md5")
	require.Error(t, err)

	_, err = runApp(t, "--store", "memory", "--tree-name", "../escape", "generate", "--allocations", exampleAllocations)
	require.Error(t, err)

	_, err = runApp(t, "--store", "memory", "generate", "--allocations", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestGenerateRequireFullShares(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allocations.json")
	require.NoError(t, os.WriteFile(path, []byte(`[["Qm1","0x0000000000000000000000000000000000000066","10"]]`), 0o644))

	_, err := runApp(t, "--store", "memory", "generate", "--allocations", path)
	require.NoError(t, err)

	_, err = runApp(t, "--store", "memory", "generate", "--allocations", path, "--require-full-shares")
	require.Error(t, err)
}

func TestProofs(t *testing.T) {
	dir := t.TempDir()
	tree := exampleTree(t)

	_, err := runApp(t, "--store-path", dir, "--tree-name", "round-1", "generate", "--allocations", exampleAllocations)
	require.NoError(t, err)

	out, err := runApp(t, "--store-path", dir, "--tree-name", "round-1", "proofs", "--index", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "Value: "))

	proof, err := tree.GetProof(1)
	require.NoError(t, err)
	proofJSON, err := json.Marshal(proof)
	require.NoError(t, err)
	assert.Contains(t, out, "Proof: "+string(proofJSON))

	_, err = runApp(t, "--store-path", dir, "--tree-name", "round-1", "proofs", "--index", "3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, merkle.ErrIndex))

	out, err = runApp(t, "--store-path", dir, "--tree-name", "round-1", "proofs", "--index", "-5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, merkle.ErrIndex))
	assert.NotContains(t, out, "Value: ")

	out, err = runApp(t, "--store-path", dir, "--tree-name", "round-1", "proofs")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "Value: "))
	assert.NotContains(t, out, "leaves:")

	out, err = runApp(t, "--store-path", dir, "--tree-name", "round-1", "proofs", "--render", "--index", "0")
	require.NoError(t, err)
	assert.Contains(t, out, tree.Render())
	assert.Equal(t, 1, strings.Count(out, "Value: "))

	_, err = runApp(t, "--store-path", dir, "--tree-name", "round-2", "proofs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListAndDelete(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"b", "a"} {
		_, err := runApp(t, "--store-path", dir, "--tree-name", name, "generate", "--allocations", exampleAllocations)
		require.NoError(t, err)
	}

	out, err := runApp(t, "--store-path", dir, "list")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out)

	_, err = runApp(t, "--store-path", dir, "delete", "a")
	require.NoError(t, err)

	out, err = runApp(t, "--store-path", dir, "list")
	require.NoError(t, err)
	assert.Equal(t, "b\n", out)

	_, err = runApp(t, "--store-path", dir, "delete")
	require.Error(t, err)
}

func TestVerify(t *testing.T) {
	tree := exampleTree(t)
	proof, err := tree.GetProof(2)
	require.NoError(t, err)

	hexes := make([]string, len(proof))
	for i, h := range proof {
		hexes[i] = h.Hex()
	}

	leaf := `["QmUQQSeWxcqoNLKroGtz137c7QBWpzbNr9RcqDtVzZxJ3x","0x0000000000000000000000000000000000000068","6945"]`

	out, err := runApp(t, "verify", "--leaf", leaf, "--proof", strings.Join(hexes, ","), "--root", tree.Root.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Proof is valid\n", out)

	jsonProof, err := json.Marshal(hexes)
	require.NoError(t, err)
	_, err = runApp(t, "verify", "--leaf", leaf, "--proof", string(jsonProof), "--root", tree.Root.Hex())
	require.NoError(t, err)

	tampered := `["QmUQQSeWxcqoNLKroGtz137c7QBWpzbNr9RcqDtVzZxJ3x","0x0000000000000000000000000000000000000068","6946"]`
	_, err = runApp(t, "verify", "--leaf", tampered, "--proof", strings.Join(hexes, ","), "--root", tree.Root.Hex())
	require.Error(t, err)

	_, err = runApp(t, "verify", "--leaf", leaf, "--proof", "0x1234", "--root", tree.Root.Hex())
	require.Error(t, err)

	_, err = runApp(t, "verify", "--leaf", "not json", "--root", tree.Root.Hex())
	require.Error(t, err)

	_, err = runApp(t, "verify", "--leaf", `["a","b"]`, "--root", tree.Root.Hex())
	require.Error(t, err)
	assert.True(t, errors.Is(err, merkle.ErrValidation))
}

func TestVerifyInStore(t *testing.T) {
	dir := t.TempDir()
	tree := exampleTree(t)

	_, err := runApp(t, "--store-path", dir, "--tree-name", "round-1", "generate", "--allocations", exampleAllocations)
	require.NoError(t, err)

	leaf := `["QmUQQSeWxcqoNLKroGtz137c7QBWpzbNr9RcqDtVzZxJ3x","0x0000000000000000000000000000000000000068","6945"]`
	out, err := runApp(t, "--store-path", dir, "verify", "--tree", "round-1", "--leaf", leaf)
	require.NoError(t, err)
	assert.Equal(t, "Proof is valid (leaf 2 of tree round-1)\n", out)

	// the amount may be given in hex, it decodes to the same leaf
	hexAmount := `["QmUQQSeWxcqoNLKroGtz137c7QBWpzbNr9RcqDtVzZxJ3x","0x0000000000000000000000000000000000000068","0x1b21"]`
	_, err = runApp(t, "--store-path", dir, "verify", "--tree", "round-1", "--leaf", hexAmount, "--root", tree.Root.Hex())
	require.NoError(t, err)

	unknown := `["QmUQQSeWxcqoNLKroGtz137c7QBWpzbNr9RcqDtVzZxJ3x","0x0000000000000000000000000000000000000068","6946"]`
	_, err = runApp(t, "--store-path", dir, "verify", "--tree", "round-1", "--leaf", unknown)
	require.Error(t, err)
	assert.True(t, errors.Is(err, merkle.ErrValidation))

	_, err = runApp(t, "--store-path", dir, "verify", "--tree", "round-1", "--leaf", leaf, "--root", common.HexToHash("0x01").Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not verify")

	_, err = runApp(t, "--store-path", dir, "verify", "--tree", "round-1", "--leaf", leaf, "--proof", tree.Root.Hex())
	require.Error(t, err)

	_, err = runApp(t, "--store-path", dir, "verify", "--tree", "round-2", "--leaf", leaf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = runApp(t, "verify", "--leaf", leaf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--root is required")
}

func TestParseHashList(t *testing.T) {
	a := common.HexToHash("0x01")
	b := common.HexToHash("0x02")

	hashes, err := parseHashList("")
	require.NoError(t, err)
	assert.Empty(t, hashes)

	hashes, err = parseHashList(a.Hex() + " , " + b.Hex())
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{a, b}, hashes)

	hashes, err = parseHashList(`["` + a.Hex() + `"]`)
	require.NoError(t, err)
	assert.Equal(t, []common.Hash{a}, hashes)

	_, err = parseHashList("0xzz")
	require.Error(t, err)
	_, err = parseHashList("[1]")
	require.Error(t, err)
}

func testTokenURI(t *testing.T) string {
	t.Helper()
	svg := `<svg><text><tspan>Logs/5 </tspan><tspan>Transfers/2 </tspan><tspan>ID/77</tspan></text></svg>`
	m := metadata.Metadata{
		Name:        "Logbook #77",
		Description: "desc",
		Image:       "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg)),
		Attributes:  []metadata.Attribute{{TraitType: "Logs", Value: "5"}},
	}
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(raw)
}

func TestLogbookMetadata(t *testing.T) {
	uri := testTokenURI(t)
	enc, err := metadata.NewEncoder()
	require.NoError(t, err)

	expected, err := enc.EncodeTokenURI(uri, nil)
	require.NoError(t, err)

	out, err := runApp(t, "logbook-metadata", uri)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(expected), out)

	out, err = runApp(t, "logbook-metadata", "--with-selector", uri)
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(append(enc.Selector(), expected...)), out)

	out, err = runApp(t, "logbook-metadata", "--log-count", "9", "--token-id", "0x10", uri)
	require.NoError(t, err)
	decoded, err := enc.DecodeArguments(hexutil.MustDecode(out))
	require.NoError(t, err)
	assert.Equal(t, uint32(9), decoded.SVGTexts.LogCount)
	assert.Equal(t, uint32(2), decoded.SVGTexts.TransferCount)
	assert.Equal(t, int64(16), decoded.SVGTexts.TokenID.Int64())

	_, err = runApp(t, "logbook-metadata")
	require.Error(t, err)

	_, err = runApp(t, "logbook-metadata", "--log-count", "4294967296", uri)
	require.Error(t, err)

	_, err = runApp(t, "logbook-metadata", "--token-id", "-1", uri)
	require.Error(t, err)
}
