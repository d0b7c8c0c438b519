package merkle

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/wealdtech/go-merkletree/v2/blake2b"
	"golang.org/x/crypto/sha3"
)

// HashAlgorithm names the digest function used for both leaves and internal nodes.
// It is stored in the serialized tree so a reloaded tree hashes the same way.
type HashAlgorithm string

const (
	HashKeccak256 HashAlgorithm = "keccak256"
	HashSHA3_256  HashAlgorithm = "sha3-256"
	HashBlake2b   HashAlgorithm = "blake2b"
)

// DefaultHashAlgorithm is keccak256, matching what Solidity verifiers expect.
const DefaultHashAlgorithm = HashKeccak256

// Hasher produces a 32 byte digest over the concatenation of its inputs.
type Hasher interface {
	Hash(data ...[]byte) []byte
}

type keccak256Hasher struct{}

func (keccak256Hasher) Hash(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

type sha3Hasher struct{}

func (sha3Hasher) Hash(data ...[]byte) []byte {
	h := sha3.New256()
	for _, d := range data {
		_, _ = h.Write(d)
	}
	return h.Sum(nil)
}

// NewHasher returns the hasher registered under name. An empty name selects the default.
func NewHasher(name HashAlgorithm) (Hasher, error) {
	switch name {
	case "", HashKeccak256:
		return keccak256Hasher{}, nil
	case HashSHA3_256:
		return sha3Hasher{}, nil
	case HashBlake2b:
		return blake2b.New(), nil
	default:
		return nil, validationErrorf("unsupported hash algorithm %q", name)
	}
}

// SupportedHashAlgorithms lists the algorithms accepted by NewHasher.
func SupportedHashAlgorithms() []HashAlgorithm {
	return []HashAlgorithm{HashKeccak256, HashSHA3_256, HashBlake2b}
}
