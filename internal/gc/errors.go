package gc

import "fmt"

// ErrorCode classifies collector errors.
type ErrorCode int

const (
	ErrOutOfMemory ErrorCode = iota // allocation failed even after emergency collection
	ErrFinalizer                    // user finalizer raised an error
	ErrInvariant                    // tri-color invariant violated (debug checks only)
	ErrTuning                       // malformed tuning input
)

// String returns string representation of the error code.
func (ec ErrorCode) String() string {
	switch ec {
	case ErrOutOfMemory:
		return "OutOfMemory"
	case ErrFinalizer:
		return "Finalizer"
	case ErrInvariant:
		return "Invariant"
	case ErrTuning:
		return "Tuning"
	default:
		return fmt.Sprintf("Unknown(%d)", int(ec))
	}
}

// CollectError is the error type surfaced by collector operations.
// Allocation failure is the only code that crosses back into ordinary
// mutator control flow; finalizer errors travel through Hooks.ReportError
// and invariant violations panic when debug checks are enabled.
type CollectError struct {
	Code    ErrorCode
	Message string
	Size    uint64 // requested bytes, for allocation failures
	Wrapped error  // underlying error, for finalizer failures
}

// Error implements the error interface.
func (e *CollectError) Error() string {
	if e.Size > 0 {
		return fmt.Sprintf("gc: %s: %s (size=%d)", e.Code, e.Message, e.Size)
	}
	return fmt.Sprintf("gc: %s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying error, if any.
func (e *CollectError) Unwrap() error { return e.Wrapped }

// IsOutOfMemory reports whether err is an allocation failure.
func IsOutOfMemory(err error) bool {
	ce, ok := err.(*CollectError)
	return ok && ce.Code == ErrOutOfMemory
}

func oomError(size uint64) error {
	return &CollectError{Code: ErrOutOfMemory, Message: "allocator exhausted after emergency collection", Size: size}
}
