package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/thematters/contracts/pkg/merkle"
)

// ErrClosed is returned by every store operation after Close.
var ErrClosed = fmt.Errorf("persistence layer is closed")

// MarshalSerializedTree serializes a tree dump to indented JSON bytes.
func MarshalSerializedTree(st *merkle.SerializedTree) ([]byte, error) {
	if st == nil {
		return nil, fmt.Errorf("cannot marshal nil SerializedTree")
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SerializedTree to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalSerializedTree deserializes a tree dump from JSON bytes.
// Only the JSON shape is checked here; merkle.Load validates the content.
func UnmarshalSerializedTree(data []byte) (*merkle.SerializedTree, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var st merkle.SerializedTree
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to SerializedTree: %w", err)
	}

	return &st, nil
}

// ValidateSaveArgs checks the common arguments of SaveTree.
func ValidateSaveArgs(name string, st *merkle.SerializedTree) error {
	if name == "" {
		return fmt.Errorf("tree name cannot be empty")
	}
	if st == nil {
		return fmt.Errorf("cannot save nil SerializedTree")
	}
	return nil
}
