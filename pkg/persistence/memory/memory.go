package memory

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/thematters/contracts/pkg/merkle"
	"github.com/thematters/contracts/pkg/persistence"
)

// MemoryPersistence is an in-memory implementation of ITreeStore.
// Intended for tests and dry runs; everything is lost when the process exits.
// Stored trees are kept as JSON so callers can't mutate them after saving.
type MemoryPersistence struct {
	mu     sync.RWMutex
	trees  map[string][]byte
	closed bool
}

// NewMemoryPersistence creates a new in-memory store.
func NewMemoryPersistence(logger *zap.Logger) *MemoryPersistence {
	if logger != nil {
		logger.Sugar().Warnw("Using in-memory tree store, trees will be lost on exit")
	}
	return &MemoryPersistence{
		trees: make(map[string][]byte),
	}
}

// SaveTree stores a copy of tree.
func (m *MemoryPersistence) SaveTree(name string, tree *merkle.SerializedTree) error {
	if err := persistence.ValidateSaveArgs(name, tree); err != nil {
		return err
	}

	data, err := persistence.MarshalSerializedTree(tree)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}
	m.trees[name] = data

	return nil
}

// LoadTree returns a fresh copy of the tree stored under name.
func (m *MemoryPersistence) LoadTree(name string) (*merkle.SerializedTree, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	data, exists := m.trees[name]
	if !exists {
		return nil, nil
	}
	return persistence.UnmarshalSerializedTree(data)
}

// ListTrees returns stored tree names sorted ascending.
func (m *MemoryPersistence) ListTrees() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	names := make([]string, 0, len(m.trees))
	for name := range m.trees {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}

// DeleteTree removes a tree.
func (m *MemoryPersistence) DeleteTree(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}
	delete(m.trees, name)

	return nil
}

// Close marks the store closed.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.trees = nil

	return nil
}

// HealthCheck always succeeds until Close.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}
