package hypervisor

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed taxonomy of provisioning backend failures.
// Adapters map every backend failure onto exactly one code.
type ErrorCode string

const (
	CodeAuthenticationFailed  ErrorCode = "AuthenticationFailed"
	CodeAuthorizationFailed   ErrorCode = "AuthorizationFailed"
	CodeResourceNotFound      ErrorCode = "ResourceNotFound"
	CodeResourceExhausted     ErrorCode = "ResourceExhausted"
	CodeResourceAlreadyExists ErrorCode = "ResourceAlreadyExists"
	CodeOperationNotSupported ErrorCode = "OperationNotSupported"
	CodeOperationFailed       ErrorCode = "OperationFailed"
	CodeOperationTimeout      ErrorCode = "OperationTimeout"
	CodeConnectionFailed      ErrorCode = "ConnectionFailed"
	CodeInvalidConfiguration  ErrorCode = "InvalidConfiguration"
	CodeInvalidVMSpec         ErrorCode = "InvalidVmSpec"
	CodeUnknownError          ErrorCode = "UnknownError"
)

// Retriable reports whether the code permits another attempt. Retriability is
// fixed by the taxonomy; adapters never decide it per call.
func (c ErrorCode) Retriable() bool {
	switch c {
	case CodeResourceExhausted, CodeOperationFailed, CodeOperationTimeout, CodeConnectionFailed:
		return true
	default:
		return false
	}
}

// ErrOperationNotSupported matches, via errors.Is, any *Error carrying
// CodeOperationNotSupported.
var ErrOperationNotSupported = errors.New("operation not supported by this hypervisor")

// Error is a backend failure translated into the taxonomy. Details carries
// backend-specific context (node, vmid, upid) for logs; it never influences
// control flow.
type Error struct {
	Code      ErrorCode
	Message   string
	Retriable bool
	Details   map[string]string
}

// NewError creates an *Error with retriability derived from the code.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retriable: code.Retriable(),
	}
}

// NewErrorf creates an *Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WithDetail attaches one backend-specific context entry and returns the error
// for chaining.
func (e *Error) WithDetail(key string, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}

	e.Details[key] = value

	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("hypervisor error %s: %s", e.Code, e.Message)
}

// Is enables errors.Is to match the ErrOperationNotSupported sentinel.
func (e *Error) Is(target error) bool {
	return target == ErrOperationNotSupported && e.Code == CodeOperationNotSupported
}

// IsRetriable reports whether err is a taxonomy error that permits another attempt.
func IsRetriable(err error) bool {
	var hvErr *Error
	if errors.As(err, &hvErr) {
		return hvErr.Retriable
	}

	return false
}

// CodeOf extracts the taxonomy code from err. Errors that never passed through
// an adapter report CodeUnknownError.
func CodeOf(err error) ErrorCode {
	var hvErr *Error
	if errors.As(err, &hvErr) {
		return hvErr.Code
	}

	return CodeUnknownError
}
