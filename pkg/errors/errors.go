package errors

import "fmt"

// ErrorType classifies the failures the automation can hit
type ErrorType string

const (
	// ErrorTypeActionFailed is a transient device action failure (timeout,
	// unexpected screen state). The account is left untouched and the batch
	// continues.
	ErrorTypeActionFailed ErrorType = "action_failed"
	// ErrorTypeInvalidTransition signals a caller bug: a lifecycle move
	// outside the allowed ordering was requested.
	ErrorTypeInvalidTransition ErrorType = "invalid_transition"
	// ErrorTypeStoreUnavailable means the persistence layer is unreachable.
	// Fatal to the current job; the job is retried on its next tick.
	ErrorTypeStoreUnavailable ErrorType = "store_unavailable"
	// ErrorTypeAmbiguousCheck means the executor could not determine
	// reciprocation. The account stays followed and is re-offered later.
	ErrorTypeAmbiguousCheck ErrorType = "ambiguous_check"
	// ErrorTypeDeviceUnavailable means no device session could be established.
	ErrorTypeDeviceUnavailable ErrorType = "device_unavailable"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeUnknown           ErrorType = "unknown"
)

// Error represents an automation error with type information
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a classified error around an underlying cause
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// IsRetryable checks if an error type should be retried within one cycle
func IsRetryable(t ErrorType) bool {
	switch t {
	case ErrorTypeActionFailed, ErrorTypeDeviceUnavailable:
		return true
	case ErrorTypeInvalidTransition, ErrorTypeNotFound, ErrorTypeAmbiguousCheck, ErrorTypeStoreUnavailable:
		return false
	default:
		return false
	}
}
