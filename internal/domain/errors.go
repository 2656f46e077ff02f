package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced record no longer exists.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a record already exists for the owner and date.
	ErrConflict = errors.New("record already exists for date")
	// ErrUnavailable indicates a transport failure reaching the record source.
	ErrUnavailable = errors.New("record source unavailable")
)

// ValidationError reports input rejected before or by the record source.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
