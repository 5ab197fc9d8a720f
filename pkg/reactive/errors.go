package reactive

import (
	"errors"
	"fmt"

	"github.com/l7mp/incremental/internal/syncutil"
)

var (
	// ErrReentrant is wrapped by the panic raised when a node is entered again by the goroutine
	// that is already evaluating or updating it. This is always a structural error in the
	// pipeline, e.g., a projection that reads its own output.
	ErrReentrant = syncutil.ErrReentrant

	// ErrNotSupported is returned (or wrapped by a panic) when an operation makes no sense for
	// the node it is invoked on.
	ErrNotSupported = errors.New("operation not supported")

	// ErrScopeClosed is raised when an update scope is used after it has been closed.
	ErrScopeClosed = errors.New("update scope already closed")

	// ErrOutOfRange is returned by positional accessors.
	ErrOutOfRange = errors.New("index out of range")
)

// NotSupportedError names the operation and the node that refused it.
type NotSupportedError struct {
	Operation string
	Node      string
}

// Error implements the error interface.
func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s: %s on %s", ErrNotSupported.Error(), e.Operation, e.Node)
}

// Unwrap returns ErrNotSupported.
func (e *NotSupportedError) Unwrap() error { return ErrNotSupported }

// NewNotSupportedError creates a new NotSupportedError.
func NewNotSupportedError(op, node string) error {
	return &NotSupportedError{Operation: op, Node: node}
}

// NewOutOfRangeError reports a positional access outside the current bounds.
func NewOutOfRangeError(node string, index, length int) error {
	return fmt.Errorf("%w: %s: index %d, length %d", ErrOutOfRange, node, index, length)
}
