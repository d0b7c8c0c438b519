package merkle

import (
	"iter"
	"runtime"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the leaf count below which hashing stays on one goroutine.
const parallelThreshold = 256

// Build creates a tree from leaves typed by fieldTypes using keccak256.
func Build(leaves []Leaf, fieldTypes []string) (*Tree, error) {
	return BuildWithOptions(leaves, fieldTypes, nil)
}

// BuildWithOptions creates a tree with an explicit hash algorithm and worker count.
// Leaves are copied; later changes to the caller's slices do not affect the tree.
func BuildWithOptions(leaves []Leaf, fieldTypes []string, opts *TreeOptions) (*Tree, error) {
	if opts == nil {
		opts = &TreeOptions{}
	}
	if len(leaves) == 0 {
		return nil, validationErrorf("cannot build merkle tree from empty leaf list")
	}

	encoding, err := ParseLeafEncoding(fieldTypes)
	if err != nil {
		return nil, err
	}

	hashAlg := opts.Hash
	if hashAlg == "" {
		hashAlg = DefaultHashAlgorithm
	}
	hasher, err := NewHasher(hashAlg)
	if err != nil {
		return nil, err
	}

	values := make([]Leaf, len(leaves))
	for i, leaf := range leaves {
		values[i] = copyLeaf(leaf)
	}

	digests, err := hashLeaves(hasher, encoding, values, opts.Workers)
	if err != nil {
		return nil, err
	}

	levels := buildLevels(hasher, digests)

	return &Tree{
		Root:     levels[len(levels)-1][0],
		encoding: encoding,
		hashAlg:  hashAlg,
		hasher:   hasher,
		values:   values,
		levels:   levels,
	}, nil
}

func hashLeaves(hasher Hasher, encoding *LeafEncoding, values []Leaf, workers int) ([]common.Hash, error) {
	digests := make([]common.Hash, len(values))

	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers <= 1 || len(values) < parallelThreshold {
		for i, leaf := range values {
			d, err := hashLeaf(hasher, encoding, leaf)
			if err != nil {
				return nil, errors.Wrapf(err, "leaf %d", i)
			}
			digests[i] = d
		}
		return digests, nil
	}

	// each goroutine owns a disjoint slot of digests
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range values {
		g.Go(func() error {
			d, err := hashLeaf(hasher, encoding, values[i])
			if err != nil {
				return errors.Wrapf(err, "leaf %d", i)
			}
			digests[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return digests, nil
}

// buildLevels pairs nodes bottom-up. An odd node out is carried to the next level as is.
func buildLevels(hasher Hasher, leaves []common.Hash) [][]common.Hash {
	levels := [][]common.Hash{leaves}

	current := leaves
	for len(current) > 1 {
		next := make([]common.Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 == len(current) {
				next = append(next, current[i])
				continue
			}
			next = append(next, hashPair(hasher, current[i], current[i+1]))
		}
		levels = append(levels, next)
		current = next
	}

	return levels
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.values)
}

// FieldTypes returns the leaf encoding of the tree.
func (t *Tree) FieldTypes() []string {
	return t.encoding.Types()
}

// HashAlgorithm returns the digest function the tree was built with.
func (t *Tree) HashAlgorithm() HashAlgorithm {
	return t.hashAlg
}

// Depth is the number of levels above the leaves.
func (t *Tree) Depth() int {
	return len(t.levels) - 1
}

// Entries yields (index, leaf) pairs in insertion order. Each call starts over.
func (t *Tree) Entries() iter.Seq2[int, Leaf] {
	return func(yield func(int, Leaf) bool) {
		for i, v := range t.values {
			if !yield(i, copyLeaf(v)) {
				return
			}
		}
	}
}

// At returns the leaf at index.
func (t *Tree) At(index int) (Leaf, error) {
	if err := t.checkIndex(index); err != nil {
		return nil, err
	}
	return copyLeaf(t.values[index]), nil
}

// LeafDigest returns the stored digest of the leaf at index.
func (t *Tree) LeafDigest(index int) (common.Hash, error) {
	if err := t.checkIndex(index); err != nil {
		return common.Hash{}, err
	}
	return t.levels[0][index], nil
}

// LeafHash hashes an arbitrary tuple with this tree's encoding and hash algorithm.
func (t *Tree) LeafHash(leaf Leaf) (common.Hash, error) {
	return hashLeaf(t.hasher, t.encoding, leaf)
}

// LeafLookup returns the index of the first leaf whose digest equals that of leaf.
// Values are compared after decoding, so "0x0a" and "10" find the same uint leaf.
func (t *Tree) LeafLookup(leaf Leaf) (int, error) {
	digest, err := t.LeafHash(leaf)
	if err != nil {
		return -1, err
	}
	for i, d := range t.levels[0] {
		if d == digest {
			return i, nil
		}
	}
	return -1, validationErrorf("leaf not found in tree")
}

// GetProof returns the sibling hashes for the leaf at index, bottom first.
// Levels where the node was promoted contribute nothing.
func (t *Tree) GetProof(index int) ([]common.Hash, error) {
	if err := t.checkIndex(index); err != nil {
		return nil, err
	}

	proof := make([]common.Hash, 0, t.Depth())
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		sibling := index ^ 1
		if sibling < len(nodes) {
			proof = append(proof, nodes[sibling])
		}
		index /= 2
	}

	return proof, nil
}

// GenerateProof bundles the proof for index with its leaf value and digest.
func (t *Tree) GenerateProof(index int) (*Proof, error) {
	siblings, err := t.GetProof(index)
	if err != nil {
		return nil, err
	}
	return &Proof{
		Index:    index,
		Value:    copyLeaf(t.values[index]),
		Leaf:     t.levels[0][index],
		Siblings: siblings,
	}, nil
}

// Verify checks proof against the tree's root using its hash algorithm.
func (t *Tree) Verify(leaf common.Hash, proof []common.Hash) bool {
	return verifyWith(t.hasher, leaf, proof, t.Root)
}

// Verify recomputes the root from a keccak256 leaf digest and its proof.
// It needs neither the tree nor the position of the leaf.
func Verify(leaf common.Hash, proof []common.Hash, root common.Hash) bool {
	return verifyWith(keccak256Hasher{}, leaf, proof, root)
}

// VerifyWithHash is Verify for trees built with another hash algorithm.
func VerifyWithHash(alg HashAlgorithm, leaf common.Hash, proof []common.Hash, root common.Hash) (bool, error) {
	hasher, err := NewHasher(alg)
	if err != nil {
		return false, err
	}
	return verifyWith(hasher, leaf, proof, root), nil
}

// VerifyProof checks a bundled proof. When proof.Leaf is set the digest of the
// value must match it.
func VerifyProof(proof *Proof, fieldTypes []string, alg HashAlgorithm, root common.Hash) (bool, error) {
	if proof == nil {
		return false, nil
	}
	hasher, err := NewHasher(alg)
	if err != nil {
		return false, err
	}
	encoding, err := ParseLeafEncoding(fieldTypes)
	if err != nil {
		return false, err
	}
	digest, err := hashLeaf(hasher, encoding, proof.Value)
	if err != nil {
		return false, err
	}
	if proof.Leaf != (common.Hash{}) && digest != proof.Leaf {
		return false, nil
	}
	return verifyWith(hasher, digest, proof.Siblings, root), nil
}

func verifyWith(hasher Hasher, leaf common.Hash, proof []common.Hash, root common.Hash) bool {
	current := leaf
	for _, sibling := range proof {
		current = hashPair(hasher, current, sibling)
	}
	return current == root
}

func (t *Tree) checkIndex(index int) error {
	if index < 0 || index >= len(t.values) {
		return indexErrorf(index, len(t.values))
	}
	return nil
}

func copyLeaf(leaf Leaf) Leaf {
	out := make(Leaf, len(leaf))
	copy(out, leaf)
	return out
}
