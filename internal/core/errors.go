// Package core provides the shared types, interfaces, and error taxonomy for
// the study-buddy service.
package core

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies the failures the service can surface to the user.
type ErrorKind string

const (
	// ErrorKindConfiguration indicates a missing or invalid credential. Fatal at startup.
	ErrorKindConfiguration ErrorKind = "configuration_error"
	// ErrorKindUpload indicates a rejected document (type, size) or a failed transfer.
	ErrorKindUpload ErrorKind = "upload_error"
	// ErrorKindTransport indicates a network or API failure talking to the assistant service.
	ErrorKindTransport ErrorKind = "transport_error"
	// ErrorKindRunTimeout indicates an assistant turn that did not finish in time.
	ErrorKindRunTimeout ErrorKind = "run_timeout_error"
	// ErrorKindRunFailed indicates an assistant turn that reached a failed terminal state.
	ErrorKindRunFailed ErrorKind = "run_failed_error"
	// ErrorKindNotFound indicates an unknown local resource (session).
	ErrorKindNotFound ErrorKind = "not_found_error"
)

// AppError is the error type surfaced at the API boundary. The wrapped cause
// is kept for logs and never rendered to clients.
type AppError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode maps the error kind to the status the API responds with.
func (e *AppError) HTTPStatusCode() int {
	switch e.Kind {
	case ErrorKindUpload:
		return http.StatusUnsupportedMediaType
	case ErrorKindNotFound:
		return http.StatusNotFound
	case ErrorKindTransport, ErrorKindRunFailed:
		return http.StatusBadGateway
	case ErrorKindRunTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func NewConfigurationError(message string, err error) *AppError {
	return &AppError{Kind: ErrorKindConfiguration, Message: message, Err: err}
}

func NewUploadError(message string, err error) *AppError {
	return &AppError{Kind: ErrorKindUpload, Message: message, Err: err}
}

func NewTransportError(message string, err error) *AppError {
	return &AppError{Kind: ErrorKindTransport, Message: message, Err: err}
}

func NewRunTimeoutError(message string, err error) *AppError {
	return &AppError{Kind: ErrorKindRunTimeout, Message: message, Err: err}
}

func NewRunFailedError(message string, err error) *AppError {
	return &AppError{Kind: ErrorKindRunFailed, Message: message, Err: err}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: ErrorKindNotFound, Message: message}
}

// KindOf returns the ErrorKind of err, or "" when err is not an AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
