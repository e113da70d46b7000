package bookings

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidBooking is returned when required create fields are missing or malformed.
	ErrInvalidBooking = errors.New("invalid booking")

	// ErrSlotConflict is returned when a completed booking already holds the timestamp.
	ErrSlotConflict = errors.New("slot already booked")

	// ErrBookingNotFound is returned when an id does not reference a stored booking.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrInvalidTransition is returned for payment status changes other than pending -> completed|failed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// errConcurrentUpdate signals an optimistic write lost a race; stores retry on it.
	errConcurrentUpdate = errors.New("booking modified concurrently")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidBooking
}
