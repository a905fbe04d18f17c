// Package apperror holds the error kinds the detection gateway reports to callers.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for status mapping.
type Kind int

const (
	KindInput Kind = iota + 1
	KindUnavailable
	KindInference
	KindLogWrite
	KindDevice
)

// Error carries a kind, a message for the client and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	// Reason is a machine-readable hint, only set for unavailable errors.
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// InputError reports a missing or undecodable image.
func InputError(message string, cause error) *Error {
	return &Error{Kind: KindInput, Message: message, Cause: cause}
}

// ServiceUnavailable reports that the detector is not in the Ready state.
func ServiceUnavailable(reason string) *Error {
	return &Error{Kind: KindUnavailable, Message: "Model not available", Reason: reason}
}

// InferenceError wraps a fault raised by the detection backend.
func InferenceError(cause error) *Error {
	return &Error{Kind: KindInference, Message: "inference failed", Cause: cause}
}

// LogWriteError wraps a failed append to the detection log.
func LogWriteError(path string, cause error) *Error {
	return &Error{Kind: KindLogWrite, Message: fmt.Sprintf("append to %s failed", path), Cause: cause}
}

// DeviceError reports an unavailable or disconnected camera.
func DeviceError(message string, cause error) *Error {
	return &Error{Kind: KindDevice, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// HTTPStatus maps an error to the response status of the detect endpoint.
func HTTPStatus(err error) int {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}

	switch appErr.Kind {
	case KindInput:
		return http.StatusBadRequest
	case KindUnavailable, KindDevice:
		return http.StatusServiceUnavailable
	case KindLogWrite:
		// logging is best-effort; callers should never surface it as a status
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
