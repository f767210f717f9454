package session

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is wrapped by every access-control failure
var ErrUnauthorized = errors.New("unauthorized")

// ErrBlankUser is returned when an edit names no acting user
var ErrBlankUser = errors.New("user must not be blank")

// Error is the structured failure of an editing-session call. Unauthorized
// separates "not allowed" from "bad input" for callers that render them
// differently; the graph is unmodified either way.
type Error struct {
	Op           string
	Message      string
	Unauthorized bool
	Err          error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is an access-control failure
func IsUnauthorized(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Unauthorized
}

func invalid(op string, err error) *Error {
	return &Error{Op: op, Message: err.Error(), Err: err}
}

func invalidf(op string, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Op: op, Message: err.Error(), Err: err}
}

func unauthorized(op string, user User, resource string) *Error {
	return &Error{
		Op:           op,
		Message:      fmt.Sprintf("user %s does not have write access to %s", user, resource),
		Unauthorized: true,
		Err:          ErrUnauthorized,
	}
}
