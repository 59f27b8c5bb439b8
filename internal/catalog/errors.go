package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tourcatalog/internal/lock"
	"github.com/roach88/tourcatalog/internal/schema"
)

// ErrMalformedStore indicates the document exists but is not valid JSON.
var ErrMalformedStore = errors.New("malformed catalog document")

// MalformedError wraps the decode failure of an existing document.
type MalformedError struct {
	Path string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s %s: %v", ErrMalformedStore, e.Path, e.Err)
}

// Unwrap exposes both ErrMalformedStore and the underlying decode error.
func (e *MalformedError) Unwrap() []error {
	return []error{ErrMalformedStore, e.Err}
}

// ErrConflict indicates an insert-only batch named products that already exist.
var ErrConflict = errors.New("product already exists")

// ConflictError lists the existing product ids an insert-only batch named.
type ConflictError struct {
	IDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConflict, strings.Join(e.IDs, ", "))
}

// Unwrap lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// IsConflict reports whether err is an insert-only batch hitting existing ids.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsMalformed reports whether err signals an unreadable document.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedStore)
}

// IsValidation reports whether err is a rejected batch.
func IsValidation(err error) bool {
	return schema.IsValidationError(err)
}

// IsBusy reports whether err is lock contention.
func IsBusy(err error) bool {
	return lock.IsBusy(err)
}
