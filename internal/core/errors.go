package core

import "errors"

// AppError is an expected, client-attributable failure (wrong password, not
// found, out of range). It goes back to the caller verbatim and is logged at
// low severity; it never means the server is unhealthy.
type AppError struct {
	Message string
	Detail  any
}

func (e *AppError) Error() string { return e.Message }

func NewAppError(message string, detail ...any) *AppError {
	e := &AppError{Message: message}
	if len(detail) > 0 {
		e.Detail = detail[0]
	}
	return e
}

// SysError is an unexpected failure in a collaborator or an integrity breach
// (a write that should have succeeded failing, a socket with no record). It
// is surfaced to the caller too, but logged loudly.
type SysError struct {
	Message string
	Detail  any
	cause   error
}

func (e *SysError) Error() string { return e.Message }
func (e *SysError) Unwrap() error { return e.cause }

func NewSysError(message string, detail ...any) *SysError {
	e := &SysError{Message: message}
	if len(detail) > 0 {
		e.Detail = detail[0]
	}
	return e
}

// WrapSysError keeps the collaborator's error reachable through Unwrap.
func WrapSysError(cause error, message string) *SysError {
	return &SysError{Message: message, cause: cause}
}

func AsAppError(err error) (*AppError, bool) {
	var e *AppError
	ok := errors.As(err, &e)
	return e, ok
}
