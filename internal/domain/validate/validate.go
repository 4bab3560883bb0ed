// Package validate holds the field-level validation error shared by the
// domain services.
package validate

import (
	"strings"

	"github.com/go-faster/errors"
)

// Error reports an invalid input field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}

// Required returns an *Error when value is blank.
func Required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &Error{Field: field, Message: "must not be blank"}
	}
	return nil
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Field extracts the offending field name from err, if err is an *Error.
func Field(err error) (string, bool) {
	var vErr *Error
	if errors.As(err, &vErr) {
		return vErr.Field, true
	}
	return "", false
}
