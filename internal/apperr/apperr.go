// internal/apperr/apperr.go
package apperr

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrNotFound signals that a memory or reel id does not resolve within the
// caller's user scope. The API layer maps it to its own status code.
var ErrNotFound = errors.New("record not found")

// ValidationError reports malformed caller input (unknown interaction type,
// inverted date range, ...). Lenient fields (theme, duration) are defaulted
// or clamped instead and never produce this error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validation creates a ValidationError for the given field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InsufficientPhotosError is raised synchronously when a reel request finds
// fewer eligible photos than the minimum. It is never downgraded to a
// smaller reel.
type InsufficientPhotosError struct {
	Need  int
	Found int
}

func (e *InsufficientPhotosError) Error() string {
	return fmt.Sprintf("not enough photos for reel: need at least %d, found %d", e.Need, e.Found)
}

// IsInsufficientPhotos reports whether err is (or wraps) an
// InsufficientPhotosError.
func IsInsufficientPhotos(err error) bool {
	var ie *InsufficientPhotosError
	return errors.As(err, &ie)
}

// Map converts repo/infra errors into domain errors.
// Keeps service layers clean by centralizing error translation.
func Map(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound

	default:
		return err
	}
}
