package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for handlers to map to HTTP status.
var (
	ErrUnauthorized         = errors.New("operation not permitted for this role")
	ErrNotFound             = errors.New("not found")
	ErrEmptyContent         = errors.New("message content is empty")
	ErrConflict             = errors.New("status changed concurrently")
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrInvalidStatus        = errors.New("invalid project status")
	ErrInvalidInput         = errors.New("invalid input")
	ErrRateLimited          = errors.New("too many messages")
)

// ConflictError reports a last-writer-wins status write that replaced a value
// the caller had not seen. The write itself has been applied.
type ConflictError struct {
	Expected    Status
	Overwritten Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("status changed concurrently: expected %s, overwrote %s", e.Expected, e.Overwritten)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// Invalid wraps ErrInvalidInput with a field-specific message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
