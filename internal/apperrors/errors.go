package apperrors

import "fmt"

// ErrSerialization is returned when a value cannot be encoded for caching.
// This is the only cache error surfaced to callers of Set: it indicates the
// value itself is not cacheable, which is a programmer error rather than a
// transient condition.
type ErrSerialization struct {
	Type  string
	Cause error
}

// Error implements the error interface.
func (e *ErrSerialization) Error() string {
	return fmt.Sprintf("value of type %s cannot be serialized: %v", e.Type, e.Cause)
}

// Is allows for error checking with errors.Is().
func (e *ErrSerialization) Is(target error) bool {
	_, ok := target.(*ErrSerialization)
	return ok
}

// Unwrap returns the underlying encoding error.
func (e *ErrSerialization) Unwrap() error {
	return e.Cause
}

// NewSerializationError creates a new ErrSerialization for the given value type.
func NewSerializationError(typeName string, cause error) *ErrSerialization {
	return &ErrSerialization{
		Type:  typeName,
		Cause: cause,
	}
}

// ErrDecode is returned when stored bytes cannot be decoded back into a value
// (unknown format tag, corrupt compressed body, structural mismatch).
// Callers treat this as a cache miss, never as a fatal error.
type ErrDecode struct {
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *ErrDecode) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cached bytes cannot be decoded (%s): %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("cached bytes cannot be decoded (%s)", e.Reason)
}

// Is allows for error checking with errors.Is().
func (e *ErrDecode) Is(target error) bool {
	_, ok := target.(*ErrDecode)
	return ok
}

// Unwrap returns the underlying decoding error, if any.
func (e *ErrDecode) Unwrap() error {
	return e.Cause
}

// NewDecodeError creates a new ErrDecode.
func NewDecodeError(reason string, cause error) *ErrDecode {
	return &ErrDecode{
		Reason: reason,
		Cause:  cause,
	}
}

// ErrStoreUnavailable is returned when the backing store cannot be reached.
// Reads degrade to a miss and writes become best-effort; the failure is logged
// at warning level and never propagated to the caller's business logic.
type ErrStoreUnavailable struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("backing store unavailable during %s: %v", e.Op, e.Cause)
}

// Is allows for error checking with errors.Is().
func (e *ErrStoreUnavailable) Is(target error) bool {
	_, ok := target.(*ErrStoreUnavailable)
	return ok
}

// Unwrap returns the underlying transport error.
func (e *ErrStoreUnavailable) Unwrap() error {
	return e.Cause
}

// NewStoreUnavailableError creates a new ErrStoreUnavailable for the given operation.
func NewStoreUnavailableError(op string, cause error) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{
		Op:    op,
		Cause: cause,
	}
}
