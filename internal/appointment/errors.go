package appointment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidValue is returned when a slot value fails validation.
	ErrInvalidValue = errors.New("appointment: invalid value")

	// ErrStore is returned when a confirmed record could not be persisted.
	ErrStore = errors.New("appointment: store failure")

	// ErrIncompleteRecord is returned when a record is missing required slots.
	ErrIncompleteRecord = errors.New("appointment: record is incomplete")

	// ErrAlreadyStored is returned alongside the existing id when a booking
	// with the same appointment id was stored before.
	ErrAlreadyStored = errors.New("appointment: already stored")
)

// ValidationError describes why a value was rejected for a slot.
type ValidationError struct {
	Slot   string
	Value  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("appointment: invalid %s %q: %s", e.Slot, e.Value, e.Reason)
}

// Unwrap lets errors.Is match both ErrInvalidValue and the underlying cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidValue, e.Err}
	}
	return []error{ErrInvalidValue}
}
