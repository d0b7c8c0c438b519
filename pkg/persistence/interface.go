package persistence

import "github.com/thematters/contracts/pkg/merkle"

// ITreeStore persists serialized merkle trees under a name.
// All implementations must be safe for concurrent use.
//
// Trees are stored in their serialized form; callers turn them back into a
// merkle.Tree with merkle.Load, which re-verifies every hash.
type ITreeStore interface {
	// SaveTree stores tree under name, replacing any tree already stored there.
	SaveTree(name string, tree *merkle.SerializedTree) error

	// LoadTree returns the tree stored under name.
	// Returns nil if it doesn't exist, error only on storage or decoding failure.
	LoadTree(name string) (*merkle.SerializedTree, error)

	// ListTrees returns the names of all stored trees in ascending order.
	ListTrees() ([]string, error)

	// DeleteTree removes a stored tree. Idempotent.
	DeleteTree(name string) error

	// Close releases the store. Idempotent; other calls fail afterwards.
	Close() error

	// HealthCheck returns nil if the store is usable.
	HealthCheck() error
}
