// Package apperr defines the error taxonomy shared by every realtime component.
// Errors carry a stable Code that is reported to the initiating connection and
// mapped to HTTP status codes on the REST surface.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error category on the wire.
type Code string

const (
	CodeAuthenticationFailed Code = "authentication_failed"
	CodeSessionNotFound      Code = "session_not_found"
	CodeSessionEnded         Code = "session_ended"
	CodeInvalidTransition    Code = "invalid_transition"
	CodeNotAuthorized        Code = "not_authorized"
	CodeEmptyMessage         Code = "empty_message"
	CodeJobNotFound          Code = "job_not_found"
	CodeExternalService      Code = "external_service_error"
	CodeBadRequest           Code = "bad_request"
	CodeInternal             Code = "internal_error"
)

// Error is a categorized error. Two errors match under errors.Is when their codes match.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrAuthenticationFailed = &Error{Code: CodeAuthenticationFailed, Message: "authentication failed"}
	ErrSessionNotFound      = &Error{Code: CodeSessionNotFound, Message: "session not found"}
	ErrSessionEnded         = &Error{Code: CodeSessionEnded, Message: "session has ended"}
	ErrInvalidTransition    = &Error{Code: CodeInvalidTransition, Message: "invalid status transition"}
	ErrNotAuthorized        = &Error{Code: CodeNotAuthorized, Message: "only the session host may do this"}
	ErrEmptyMessage         = &Error{Code: CodeEmptyMessage, Message: "message body is empty"}
	ErrJobNotFound          = &Error{Code: CodeJobNotFound, Message: "recording job not found"}
)

// New builds an error of the given code with a custom message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a cause to a categorized error.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// External wraps a failure from the media or storage collaborators. The
// underlying message is preserved as the reported message.
func External(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Code: CodeExternalService, Message: err.Error(), Err: err}
}

// CodeOf returns the category of err, CodeInternal when it is uncategorized.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the message reported to clients for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps a code to a REST status code.
func HTTPStatus(code Code) int {
	switch code {
	case CodeAuthenticationFailed:
		return http.StatusUnauthorized
	case CodeNotAuthorized:
		return http.StatusForbidden
	case CodeSessionNotFound, CodeJobNotFound:
		return http.StatusNotFound
	case CodeSessionEnded, CodeInvalidTransition:
		return http.StatusConflict
	case CodeEmptyMessage, CodeBadRequest:
		return http.StatusBadRequest
	case CodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
