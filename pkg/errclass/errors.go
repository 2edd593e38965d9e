// Package errclass defines the stable, machine-readable error classes
// used across pgnest. Classes compare by code via errors.Is, so callers
// can branch on the class while messages stay free-form.
package errclass

import (
	"errors"
	"fmt"
)

// Error is a stable error class with an optional message and cause.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return e.Code
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithMessage returns a new Error with the same Code but a specific message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg}
}

// WithMessagef returns a new Error with a formatted message.
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a new Error with the same Code, a message, and a cause.
func (e *Error) Wrap(err error, msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Err: err}
}

// All stable error classes.
var (
	ErrInvalidArguments    = &Error{Code: "E_INVALID_ARGUMENTS"}
	ErrWorkerMissing       = &Error{Code: "E_WORKER_MISSING"}
	ErrWorkerNotFile       = &Error{Code: "E_WORKER_NOT_FILE"}
	ErrWorkerNotExecutable = &Error{Code: "E_WORKER_NOT_EXECUTABLE"}
	ErrOperationTimeout    = &Error{Code: "E_OPERATION_TIMEOUT"}
	ErrOperationFailed     = &Error{Code: "E_OPERATION_FAILED"}
	ErrPrivilege           = &Error{Code: "E_PRIVILEGE"}
	ErrConfigParse         = &Error{Code: "E_CONFIG_PARSE"}
	ErrPathInvalid         = &Error{Code: "E_PATH_INVALID"}
	ErrNameInvalid         = &Error{Code: "E_NAME_INVALID"}
)

// CodeOf returns the class code of err, or "" if err carries no class.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
