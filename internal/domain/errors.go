package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced program, day or scheduled activity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the user is not actively enrolled in the program.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation is returned when a well-formed request violates a business rule.
	ErrValidation = errors.New("validation failed")
	// ErrRetryable marks storage failures (lock timeout, serialization failure, deadlock) that the
	// caller may retry after re-reading current state.
	ErrRetryable = errors.New("retryable storage conflict")
)

var (
	ErrNotEnrolled               = newError(ErrForbidden, "User is not enrolled in this program")
	ErrDayPlanNotFound           = newError(ErrNotFound, "Day plan not found")
	ErrScheduledActivityNotFound = newError(ErrNotFound, "Scheduled activity not found")
	ErrAllOccurrencesCompleted   = newError(ErrValidation, "All planned occurrences are already completed for this activity")
	ErrNoDayPlans                = newError(ErrValidation, "No day plans found for program")
)

// Error carries a user-facing reason and classifies it under one of the sentinel kinds.
type Error struct {
	Kind   error
	Reason string
}

func newError(kind error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Validationf builds a validation error with a formatted reason.
func Validationf(format string, args ...any) error {
	return newError(ErrValidation, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error { return e.Kind }
