package medication

import "errors"

var (
	// ErrNotFound is returned when a medication is absent or not owned by the
	// requesting user.
	ErrNotFound = errors.New("medication not found")

	// ErrReminderNotFound is returned when no unresolved reminder matches a
	// skip request, including when a concurrent caller already resolved it.
	ErrReminderNotFound = errors.New("reminder not found")

	// ErrInvalidRange is returned when an end date precedes the start date.
	ErrInvalidRange = errors.New("end date cannot be before start date")

	// ErrInvalidInput is returned for malformed recurrence fields.
	ErrInvalidInput = errors.New("invalid medication input")
)
