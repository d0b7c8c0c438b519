package merkle

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// FormatV1 tags serialized trees produced by this package.
const FormatV1 = "billboard-merkle-v1"

// SerializedTree is the persisted form of a Tree. Levels is optional on input;
// when present it must match what the values hash to.
type SerializedTree struct {
	Format       string            `json:"format"`
	Hash         HashAlgorithm     `json:"hash"`
	LeafEncoding []string          `json:"leafEncoding"`
	Root         common.Hash       `json:"root"`
	Levels       [][]common.Hash   `json:"levels,omitempty"`
	Values       []SerializedValue `json:"values"`
}

// SerializedValue is a leaf tuple with its position in the tree.
type SerializedValue struct {
	Index int  `json:"index"`
	Value Leaf `json:"value"`
}

// Dump produces a self-contained copy of the tree suitable for Load.
func (t *Tree) Dump() *SerializedTree {
	values := make([]SerializedValue, len(t.values))
	for i, v := range t.values {
		values[i] = SerializedValue{Index: i, Value: copyLeaf(v)}
	}

	levels := make([][]common.Hash, len(t.levels))
	for i, level := range t.levels {
		levels[i] = make([]common.Hash, len(level))
		copy(levels[i], level)
	}

	return &SerializedTree{
		Format:       FormatV1,
		Hash:         t.hashAlg,
		LeafEncoding: t.encoding.Types(),
		Root:         t.Root,
		Levels:       levels,
		Values:       values,
	}
}

// Load rebuilds a tree from its serialized form. All hashes are recomputed from
// the values and compared against the stored root and levels.
func Load(st *SerializedTree) (*Tree, error) {
	if st == nil {
		return nil, formatErrorf("serialized tree is nil")
	}
	if st.Format != FormatV1 {
		return nil, formatErrorf("unknown format %q, expected %q", st.Format, FormatV1)
	}
	if len(st.Values) == 0 {
		return nil, formatErrorf("serialized tree has no values")
	}

	leaves := make([]Leaf, len(st.Values))
	seen := make([]bool, len(st.Values))
	for _, v := range st.Values {
		if v.Index < 0 || v.Index >= len(st.Values) {
			return nil, formatErrorf("value index %d out of range [0, %d)", v.Index, len(st.Values))
		}
		if seen[v.Index] {
			return nil, formatErrorf("duplicate value index %d", v.Index)
		}
		if len(v.Value) != len(st.LeafEncoding) {
			return nil, formatErrorf("value %d has %d fields, leaf encoding has %d", v.Index, len(v.Value), len(st.LeafEncoding))
		}
		seen[v.Index] = true
		leaves[v.Index] = v.Value
	}

	tree, err := BuildWithOptions(leaves, st.LeafEncoding, &TreeOptions{Hash: st.Hash})
	if err != nil {
		return nil, errors.Wrapf(ErrFormat, "rebuild failed: %v", err)
	}

	if tree.Root != st.Root {
		return nil, formatErrorf("root mismatch: stored %s, computed %s", st.Root.Hex(), tree.Root.Hex())
	}
	if st.Levels != nil {
		if err := compareLevels(st.Levels, tree.levels); err != nil {
			return nil, err
		}
	}

	return tree, nil
}

func compareLevels(stored, computed [][]common.Hash) error {
	if len(stored) != len(computed) {
		return formatErrorf("tree has %d levels, expected %d", len(stored), len(computed))
	}
	for i := range computed {
		if len(stored[i]) != len(computed[i]) {
			return formatErrorf("level %d has %d nodes, expected %d", i, len(stored[i]), len(computed[i]))
		}
		for j := range computed[i] {
			if stored[i][j] != computed[i][j] {
				return formatErrorf("node %d at level %d does not match its children", j, i)
			}
		}
	}
	return nil
}

// MarshalTree serializes a tree to JSON.
func MarshalTree(t *Tree) ([]byte, error) {
	if t == nil {
		return nil, validationErrorf("cannot marshal nil tree")
	}
	return json.Marshal(t.Dump())
}

// UnmarshalTree parses JSON produced by MarshalTree and loads it.
func UnmarshalTree(data []byte) (*Tree, error) {
	if len(data) == 0 {
		return nil, formatErrorf("cannot unmarshal empty data")
	}
	var st SerializedTree
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrapf(ErrFormat, "failed to unmarshal JSON: %v", err)
	}
	return Load(&st)
}
