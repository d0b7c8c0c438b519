package merkle

import "github.com/pkg/errors"

// Error kinds returned by the tree engine. Every error returned from this
// package wraps exactly one of these, so callers can branch with errors.Is.
var (
	// ErrValidation covers bad build input: no leaves, arity or type mismatches,
	// unsupported field types and unknown hash algorithms.
	ErrValidation = errors.New("merkle: validation error")

	// ErrIndex is returned when a proof is requested for a leaf that does not exist.
	ErrIndex = errors.New("merkle: index out of range")

	// ErrFormat is returned when a serialized tree cannot be loaded.
	ErrFormat = errors.New("merkle: invalid serialized tree")
)

func validationErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

func formatErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrFormat, format, args...)
}

func indexErrorf(index, size int) error {
	return errors.Wrapf(ErrIndex, "leaf index %d out of bounds (tree has %d leaves)", index, size)
}
