package merkle

import "github.com/ethereum/go-ethereum/common"

// Tree is a binary merkle tree over typed leaf tuples.
// Leaves keep the order they were supplied in; siblings are combined in byte
// order and an unpaired node at the end of a level is promoted unchanged.
type Tree struct {
	// Root is the merkle root hash
	Root common.Hash

	encoding *LeafEncoding
	hashAlg  HashAlgorithm
	hasher   Hasher

	// values holds the leaf tuples in insertion order
	values []Leaf

	// levels[0] = leaf digests, levels[len-1] = [root]
	levels [][]common.Hash
}

// Proof is an inclusion proof for a single leaf.
type Proof struct {
	// Index is the position of the leaf in insertion order
	Index int `json:"index"`

	// Value is the leaf tuple being proven
	Value Leaf `json:"value"`

	// Leaf is the digest of Value
	Leaf common.Hash `json:"leaf"`

	// Siblings are the hashes needed to climb from Leaf to the root, bottom first
	Siblings []common.Hash `json:"proof"`
}

// TreeOptions tunes construction. The zero value builds with keccak256 and
// picks a worker count automatically.
type TreeOptions struct {
	Hash HashAlgorithm

	// Workers bounds concurrent leaf hashing. 0 means GOMAXPROCS, 1 forces sequential.
	Workers int
}
