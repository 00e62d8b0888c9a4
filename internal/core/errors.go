package core

import (
	"errors"
	"fmt"
)

// ErrInvalidState is the sentinel matched by errors.Is for any InvalidStateError.
var ErrInvalidState = errors.New("request state does not allow this transition")

// InvalidStateError reports that a command was rejected because the request's
// current state does not allow the attempted transition. The stream is left
// untouched; nothing is appended for a rejected command.
//
// It matches the ErrInvalidState sentinel via errors.Is, so callers can either
// check the sentinel or use errors.As to inspect the state.
type InvalidStateError struct {
	RequestID    RequestIDString
	CurrentState RequestStatus
	Attempted    string
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s request %s in state %s", e.Attempted, e.RequestID, e.CurrentState)
}

// Is makes the typed error match the ErrInvalidState sentinel.
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}
