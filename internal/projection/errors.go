package projection

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is the sentinel matched by errors.Is for any NotFoundError.
	ErrRecordNotFound = errors.New("projection record not found")

	// ErrDatabaseFailure is the sentinel matched by errors.Is for any DatabaseError.
	ErrDatabaseFailure = errors.New("projection database failure")
)

// NotFoundError reports that an update matched zero rows. Under tenant
// filtering that is expected: the row belongs to another tenant, or the
// projection lags behind the stream. Callers log and move on.
type NotFoundError struct {
	TenantID  string
	RequestID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no projection record for request %s in tenant %s", e.RequestID, e.TenantID)
}

// Is makes the typed error match the ErrRecordNotFound sentinel.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrRecordNotFound
}

// DatabaseError wraps an infrastructure failure from the projection store.
type DatabaseError struct {
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	return fmt.Sprintf("projection %s failed: %s", e.Operation, e.Err)
}

// Is makes the typed error match the ErrDatabaseFailure sentinel.
func (e *DatabaseError) Is(target error) bool {
	return target == ErrDatabaseFailure
}

// Unwrap exposes the underlying database error.
func (e *DatabaseError) Unwrap() error {
	return e.Err
}
