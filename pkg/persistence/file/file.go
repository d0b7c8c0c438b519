package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/thematters/contracts/pkg/merkle"
	"github.com/thematters/contracts/pkg/persistence"
)

const treeFileExt = ".json"

// FilePersistence stores each tree as <dir>/<name>.json.
// Files are written to a temp file first and renamed into place, so a reader
// sees either the old tree or the new one.
type FilePersistence struct {
	dir    string
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewFilePersistence creates the output directory if needed.
func NewFilePersistence(dir string, logger *zap.Logger) (*FilePersistence, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", absPath, err)
	}

	logger.Sugar().Debugw("File tree store initialized", "path", absPath)

	return &FilePersistence{
		dir:    absPath,
		logger: logger,
	}, nil
}

// PathFor returns the file a tree named name is written to.
func (f *FilePersistence) PathFor(name string) string {
	return filepath.Join(f.dir, name+treeFileExt)
}

// SaveTree writes tree as indented JSON.
func (f *FilePersistence) SaveTree(name string, tree *merkle.SerializedTree) error {
	if err := persistence.ValidateSaveArgs(name, tree); err != nil {
		return err
	}
	if strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("tree name %q cannot contain path separators", name)
	}

	data, err := persistence.MarshalSerializedTree(tree)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return persistence.ErrClosed
	}

	tmp, err := os.CreateTemp(f.dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write tree: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.PathFor(name)); err != nil {
		return fmt.Errorf("failed to move tree into place: %w", err)
	}

	f.logger.Sugar().Debugw("Saved tree", "name", name, "path", f.PathFor(name), "bytes", len(data))
	return nil
}

// LoadTree reads <dir>/<name>.json.
func (f *FilePersistence) LoadTree(name string) (*merkle.SerializedTree, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, persistence.ErrClosed
	}

	data, err := os.ReadFile(f.PathFor(name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}

	return persistence.UnmarshalSerializedTree(data)
}

// ListTrees returns the names of all *.json files in the directory.
func (f *FilePersistence) ListTrees() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, persistence.ErrClosed
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list output directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || filepath.Ext(e.Name()) != treeFileExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), treeFileExt))
	}
	sort.Strings(names)

	return names, nil
}

// DeleteTree removes the tree file.
func (f *FilePersistence) DeleteTree(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return persistence.ErrClosed
	}

	err := os.Remove(f.PathFor(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete tree: %w", err)
	}
	return nil
}

// Close marks the store closed. Nothing is held open between calls.
func (f *FilePersistence) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

// HealthCheck verifies the directory is still there.
func (f *FilePersistence) HealthCheck() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return persistence.ErrClosed
	}

	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("output directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", f.dir)
	}
	return nil
}
