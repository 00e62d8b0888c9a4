package shell

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a sentinel for matching NotFoundError with errors.Is.
	ErrNotFound = errors.New("request not found")

	// ErrForbidden is a sentinel for matching ForbiddenError with errors.Is.
	ErrForbidden = errors.New("operation forbidden")

	// ErrPersistenceFailed is a sentinel for matching PersistenceError with errors.Is.
	ErrPersistenceFailed = errors.New("persistence operation failed")
)

// NotFoundError indicates that a request does not exist for the acting tenant.
// A request belonging to another tenant is reported as not found rather than
// forbidden so that request IDs do not leak across tenants.
type NotFoundError struct {
	RequestID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("request %s not found", e.RequestID)
}

// Is enables errors.Is to match against the ErrNotFound sentinel.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ForbiddenError indicates that the acting user is not allowed to perform the
// operation on an existing request, for example cancelling someone else's request.
type ForbiddenError struct {
	RequestID string
	UserID    string
	Action    string
}

// Error implements the error interface.
func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("user %s may not %s request %s", e.UserID, e.Action, e.RequestID)
}

// Is enables errors.Is to match against the ErrForbidden sentinel.
func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// PersistenceError wraps an infrastructure failure from the event store or a
// read model so that callers can distinguish it from domain rejections.
// The wrapped error stays reachable through errors.Is / errors.As.
type PersistenceError struct {
	Operation   string
	AggregateID string
	Err         error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s for aggregate %s: %v", e.Operation, e.AggregateID, e.Err)
}

// Is enables errors.Is to match against the ErrPersistenceFailed sentinel.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistenceFailed
}

// Unwrap exposes the underlying infrastructure error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
