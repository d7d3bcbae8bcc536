package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Scribe error code.
type ErrorCode string

const (
	ErrInvalidRequest           ErrorCode = "INVALID_REQUEST"           // 400
	ErrNotFound                 ErrorCode = "NOT_FOUND"                 // 404
	ErrInvalidTransition        ErrorCode = "INVALID_TRANSITION"        // 409
	ErrSessionActive            ErrorCode = "SESSION_ACTIVE"            // 409
	ErrNoActiveSession          ErrorCode = "NO_ACTIVE_SESSION"         // 409
	ErrDeviceUnavailable        ErrorCode = "DEVICE_UNAVAILABLE"        // 424
	ErrTranscriptionUnreachable ErrorCode = "TRANSCRIPTION_UNREACHABLE" // 503
	ErrUpstreamFailure          ErrorCode = "UPSTREAM_FAILURE"          // 502
	ErrProviderConfig           ErrorCode = "PROVIDER_CONFIG"           // 500
	ErrCorruptState             ErrorCode = "CORRUPT_STATE"             // 500
	ErrInternal                 ErrorCode = "INTERNAL"                  // 500
)

// ScribeError represents a structured error with code, status, and details.
type ScribeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *ScribeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *ScribeError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ScribeError {
	return &ScribeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a visit cannot be found.
func NewNotFound(identifier string) *ScribeError {
	return &ScribeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("visit not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewInvalidTransition creates a 409 error for an event the current view does not accept.
func NewInvalidTransition(view, event string) *ScribeError {
	return &ScribeError{
		Code:    ErrInvalidTransition,
		Status:  409,
		Message: fmt.Sprintf("cannot %s while in %s", event, view),
		Details: map[string]any{"view": view, "event": event},
	}
}

// NewSessionActive creates a 409 error when a recording session is already in flight.
func NewSessionActive(state string) *ScribeError {
	return &ScribeError{
		Code:    ErrSessionActive,
		Status:  409,
		Message: fmt.Sprintf("a recording session is already %s", state),
		Details: map[string]any{"state": state},
	}
}

// NewNoActiveSession creates a 409 error when an operation needs a recording session.
func NewNoActiveSession() *ScribeError {
	return &ScribeError{
		Code:    ErrNoActiveSession,
		Status:  409,
		Message: "no active recording session",
	}
}

// NewDeviceUnavailable creates a 424 error when the microphone cannot be acquired.
func NewDeviceUnavailable(err error) *ScribeError {
	return &ScribeError{
		Code:    ErrDeviceUnavailable,
		Status:  424,
		Message: "Could not access microphone. Please check permissions.",
		cause:   err,
	}
}

// NewTranscriptionUnreachable creates a 503 error when the relay cannot be reached at all.
func NewTranscriptionUnreachable(err error) *ScribeError {
	return &ScribeError{
		Code:    ErrTranscriptionUnreachable,
		Status:  503,
		Message: "Unable to connect to transcription service. Please check your internet connection.",
		cause:   err,
	}
}

// NewUpstreamFailure creates a 502 error carrying whatever detail the relay reported.
func NewUpstreamFailure(status int, msg string) *ScribeError {
	return &ScribeError{
		Code:    ErrUpstreamFailure,
		Status:  502,
		Message: msg,
		Details: map[string]any{"upstream_status": status},
	}
}

// NewProviderConfig creates a 500 error for a missing or rejected provider credential.
func NewProviderConfig(err error) *ScribeError {
	return &ScribeError{
		Code:    ErrProviderConfig,
		Status:  500,
		Message: "Invalid or missing GEMINI_API_KEY. Please check your API key in the .env file",
		cause:   err,
	}
}

// NewCorruptState creates a 500 error when the persisted visit document cannot be decoded.
func NewCorruptState(key string, err error) *ScribeError {
	return &ScribeError{
		Code:    ErrCorruptState,
		Status:  500,
		Message: fmt.Sprintf("persisted session state %q is corrupt; run 'scribe reset' to re-seed", key),
		Details: map[string]any{"key": key},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ScribeError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ScribeError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) a ScribeError with the given code.
func Is(err error, code ErrorCode) bool {
	var sErr *ScribeError
	if stderrors.As(err, &sErr) {
		return sErr.Code == code
	}
	return false
}

// As returns the ScribeError in err's chain, wrapping anything else as internal.
func As(err error) *ScribeError {
	var sErr *ScribeError
	if stderrors.As(err, &sErr) {
		return sErr
	}
	return NewInternal(err)
}
