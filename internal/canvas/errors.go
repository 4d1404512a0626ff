package canvas

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested node, edge, or document entry
	// does not exist.
	ErrNotFound = errors.New("canvas: not found")
	// ErrInvalidPath indicates a path that is empty, absolute, or escapes
	// the workspace root.
	ErrInvalidPath = errors.New("canvas: invalid path")
	// ErrDuplicatePath indicates a direct create targeting a path already
	// owned by another file node.
	ErrDuplicatePath = errors.New("canvas: duplicate path")
	// ErrInvalidInput indicates a request that fails structural validation.
	ErrInvalidInput = errors.New("canvas: invalid input")
	// ErrEmptyPlan indicates a plan payload with no extractable content at
	// all, before the fallback scaffold is considered.
	ErrEmptyPlan = errors.New("canvas: empty plan")
)

// PathConflictError carries both sides of a duplicate-path collision.
type PathConflictError struct {
	Path       string
	ExistingID string
}

func (e *PathConflictError) Error() string {
	return fmt.Sprintf("path %q already owned by node %q", e.Path, e.ExistingID)
}

func (e *PathConflictError) Is(target error) bool {
	return target == ErrDuplicatePath
}
