package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable failure class surfaced to callers.
type ErrorCode string

const (
	CodeUnauthenticated     ErrorCode = "UNAUTHENTICATED"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeRemoteRejected      ErrorCode = "REMOTE_REJECTED"
	CodeMalformedResponse   ErrorCode = "MALFORMED_RESPONSE"
	CodeCommentsUnavailable ErrorCode = "COMMENTS_UNAVAILABLE"
	CodeNetworkError        ErrorCode = "NETWORK_ERROR"
	CodeAlreadyInProgress   ErrorCode = "ALREADY_IN_PROGRESS"
	CodeVideoNotFound       ErrorCode = "VIDEO_NOT_FOUND"
	CodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
	CodeCancelled           ErrorCode = "CANCELLED"
	CodeUnknown             ErrorCode = "UNKNOWN"
)

// Error is the single error type for remote-protocol failures.
// Status is set only for REMOTE_REJECTED.
type Error struct {
	Code   ErrorCode
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrUnauthenticated     = &Error{Code: CodeUnauthenticated}
	ErrTimeout             = &Error{Code: CodeTimeout}
	ErrRemoteRejected      = &Error{Code: CodeRemoteRejected}
	ErrMalformedResponse   = &Error{Code: CodeMalformedResponse}
	ErrCommentsUnavailable = &Error{Code: CodeCommentsUnavailable}
	ErrNetwork             = &Error{Code: CodeNetworkError}
	ErrAlreadyInProgress   = &Error{Code: CodeAlreadyInProgress}
)

// NewError builds an *Error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code and message to a lower-level error.
func WrapError(code ErrorCode, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// Rejected reports a non-2xx response.
func Rejected(msg string, status int) *Error {
	return &Error{Code: CodeRemoteRejected, Status: status, Msg: msg}
}

// CodeOf returns the taxonomy code of err, UNKNOWN for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if errors.Is(err, context.Canceled) {
		return CodeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeUnknown
}

// StatusOf returns the HTTP status carried by a REMOTE_REJECTED error, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
