package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Application error codes. The set is closed: anything that is not a
// *Error is reported as EINTERNAL.
const (
	EINVALID      = "invalid"      // 400
	EUNAUTHORIZED = "unauthorized" // 401
	EFORBIDDEN    = "forbidden"    // 403
	ENOTFOUND     = "not_found"    // 404
	ECONFLICT     = "conflict"     // 409
	EINTERNAL     = "internal"     // 500
	EUNAVAILABLE  = "unavailable"  // 503, safe to retry
)

const internalMessage = "internal error"

// FieldError points at one offending input, e.g. "items[1].quantity".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	// Code is one of the E* constants.
	Code string

	// Message is safe to show to clients, except for EINTERNAL.
	Message string

	// Op names the operation that failed ("cart.add_item"). Logged only.
	Op string

	Details []FieldError

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	for _, d := range e.Details {
		fmt.Fprintf(&b, "; %s: %s", d.Field, d.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Errorf(code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError keeps err for logging behind a client-safe message.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// WithField returns a copy of e carrying one more field detail.
func (e *Error) WithField(field, format string, args ...any) *Error {
	cp := *e
	cp.Details = append(append([]FieldError(nil), e.Details...), FieldError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
	return &cp
}

func Invalid(op string, details ...FieldError) *Error {
	return &Error{Code: EINVALID, Op: op, Message: "validation failed", Details: details}
}

func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}
	return internalMessage
}

func ErrorDetails(err error) []FieldError {
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Details
	}
	return nil
}

func ErrorOp(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

func IsRetryable(err error) bool {
	return IsCode(err, EUNAVAILABLE)
}
