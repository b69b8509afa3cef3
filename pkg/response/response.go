package response

import (
	"errors"
)

// Error pairs an HTTP status with a stable machine-readable code, so the
// transport layer can map any domain failure without per-error branching.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Is(target error) bool {
	var t *Error
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return e.Status == t.Status && e.Code == t.Code
}

func NewError(status int, code string, err string) error {
	return &Error{status, code, errors.New(err)}
}

// CodeOf extracts the machine code from a domain error, or empty when the
// error does not carry one.
func CodeOf(err error) string {
	var respErr *Error
	if errors.As(err, &respErr) {
		return respErr.Code
	}
	return ""
}
