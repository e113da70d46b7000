package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/reginald441/reginaldkargbo-site/internal/bookings"
)

// ErrTransport matches every *TransportError.
var ErrTransport = errors.New("client: booking api unreachable")

// TransportError means the request never produced an HTTP response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("client: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// APIError is a non-2xx response from the booking API. It unwraps to the booking
// sentinel matching the status code, so errors.Is(err, bookings.ErrSlotConflict) works
// on both sides of the wire.
type APIError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("client: %s: %d %s: %s", e.Op, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("client: %s: %d %s", e.Op, e.StatusCode, e.Code)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusConflict:
		return bookings.ErrSlotConflict
	case http.StatusNotFound:
		return bookings.ErrBookingNotFound
	case http.StatusBadRequest:
		return bookings.ErrInvalidBooking
	case http.StatusUnprocessableEntity:
		return bookings.ErrInvalidTransition
	default:
		return nil
	}
}

const (
	conflictMessage = "This time slot has already been reserved. Please select another time."
	networkMessage  = "Network error. Please try again."
)

// UserMessage turns err into the sentence shown to a person booking.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, bookings.ErrSlotConflict):
		return conflictMessage
	case errors.Is(err, bookings.ErrBookingNotFound):
		return "Booking not found"
	case errors.Is(err, ErrTransport):
		return networkMessage
	case errors.Is(err, ErrIncompleteInfo):
		return "Please fill in all required fields."
	case errors.Is(err, ErrPolicyNotAccepted):
		return "Please acknowledge the non-refundable policy to continue."
	case errors.Is(err, bookings.ErrInvalidBooking):
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apiErr.Message
		}
		return "Please check your details and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
