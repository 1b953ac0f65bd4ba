// internal/circulation/errors.go
package circulation

import (
	"context"
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound            = errors.New("circulation: not found")
	ErrResourceUnavailable = errors.New("circulation: book is already rented on these dates")
	ErrNotOwner            = errors.New("circulation: holder does not own reservation")
	ErrAlreadyPastDue      = errors.New("circulation: reservation period already lapsed")
	ErrAlreadyReturned     = errors.New("circulation: book already returned")
	// ErrLockTimeout is returned by stores when a row lock is not granted in time.
	ErrLockTimeout = errors.New("circulation: lock wait timed out")
)

// ValidationError captures field level validation issues found before any
// store interaction.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field, msg := range v.FieldErrors {
		fields = append(fields, field+": "+msg)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; !exists {
		v.FieldErrors[field] = message
	}
}

// ErrorKind maps circulation errors to a stable label for logs and metrics.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrResourceUnavailable):
		return "resource_unavailable"
	case errors.Is(err, ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrAlreadyPastDue):
		return "already_past_due"
	case errors.Is(err, ErrAlreadyReturned):
		return "already_returned"
	case errors.Is(err, ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	return "unexpected"
}
