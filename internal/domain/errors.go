package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a code or problem id resolves to nothing.
	ErrNotFound = errors.New("problem not found")
	// ErrSelfSubmission is returned when an author answers their own problem.
	ErrSelfSubmission = errors.New("authors cannot submit answers to their own problem")
	// ErrWindowClosed is returned when a problem is outside its 24-hour window.
	ErrWindowClosed = errors.New("problem is not open for submissions")
	// ErrAlreadySolved is returned after a user's correct attempt was accepted.
	ErrAlreadySolved = errors.New("problem already solved")
	// ErrDuplicateCode is returned when a problem code is already taken.
	ErrDuplicateCode = errors.New("problem code already in use")
	// ErrCreateRateLimited is returned when an author exceeds one problem per 24h.
	ErrCreateRateLimited = errors.New("only one problem may be created per 24 hours")
	// ErrNotSolved is returned when a user rates a problem they have not solved.
	ErrNotSolved = errors.New("only solved problems can be rated")
	// ErrNotReleasable is returned by manual activation of a pending or already
	// opened problem.
	ErrNotReleasable = errors.New("problem is not releasable")
	// ErrExhausted signals that no approved, unopened problem remains.
	ErrExhausted = errors.New("no releasable problem available")
	// ErrConflict is a lost race on activation or the attempt gate, surfaced
	// after one internal retry.
	ErrConflict = errors.New("concurrent update conflict")
)

// ValidationError rejects malformed input before any mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
