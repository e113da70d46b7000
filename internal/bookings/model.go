package bookings

import (
	"strings"
	"time"
)

// PaymentStatus tracks the payment outcome recorded for a booking.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

// CanTransition reports whether a booking in status s may move to next.
// Re-applying the current status is allowed so callers can update other fields.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	if s == next {
		return true
	}
	return s == PaymentPending && (next == PaymentCompleted || next == PaymentFailed)
}

// Booking is the persisted reservation record. Only completed bookings hold a slot.
type Booking struct {
	ID              string        `json:"id" bson:"_id" dynamodbav:"id"`
	Timestamp       int64         `json:"timestamp" bson:"timestamp" dynamodbav:"timestamp"`
	SlotTime        string        `json:"slotTime" bson:"slotTime" dynamodbav:"slotTime"`
	SlotDate        string        `json:"slotDate" bson:"slotDate" dynamodbav:"slotDate"`
	FullTime        string        `json:"fullTime" bson:"fullTime" dynamodbav:"fullTime"`
	ClientName      string        `json:"clientName" bson:"clientName" dynamodbav:"clientName"`
	ClientEmail     string        `json:"clientEmail" bson:"clientEmail" dynamodbav:"clientEmail"`
	ClientPhone     string        `json:"clientPhone,omitempty" bson:"clientPhone,omitempty" dynamodbav:"clientPhone,omitempty"`
	PaymentStatus   PaymentStatus `json:"paymentStatus" bson:"paymentStatus" dynamodbav:"paymentStatus"`
	StripeSessionID string        `json:"stripeSessionId,omitempty" bson:"stripeSessionId,omitempty" dynamodbav:"stripeSessionId,omitempty"`
	CreatedAt       time.Time     `json:"createdAt" bson:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt" bson:"updatedAt" dynamodbav:"updatedAt"`
}

// HoldsSlot reports whether the booking reserves its timestamp.
func (b *Booking) HoldsSlot() bool {
	return b != nil && b.PaymentStatus == PaymentCompleted
}

// CreateRequest is the body accepted by POST /bookings.
type CreateRequest struct {
	Timestamp       int64  `json:"timestamp"`
	SlotTime        string `json:"slotTime"`
	SlotDate        string `json:"slotDate"`
	FullTime        string `json:"fullTime"`
	ClientName      string `json:"clientName"`
	ClientEmail     string `json:"clientEmail"`
	ClientPhone     string `json:"clientPhone,omitempty"`
	StripeSessionID string `json:"stripeSessionId,omitempty"`
}

// Validate checks the required fields before any store access.
func (r *CreateRequest) Validate() error {
	if r.Timestamp <= 0 {
		return &ValidationError{Field: "timestamp"}
	}
	if strings.TrimSpace(r.ClientName) == "" {
		return &ValidationError{Field: "clientName"}
	}
	if strings.TrimSpace(r.ClientEmail) == "" {
		return &ValidationError{Field: "clientEmail"}
	}
	return nil
}

// UpdateRequest is the body accepted by PUT /bookings. Empty fields leave the stored value alone.
type UpdateRequest struct {
	ID              string        `json:"id"`
	PaymentStatus   PaymentStatus `json:"paymentStatus,omitempty"`
	StripeSessionID string        `json:"stripeSessionId,omitempty"`
}

// Validate rejects unknown status values.
func (r *UpdateRequest) Validate() error {
	if r.PaymentStatus != "" && !r.PaymentStatus.Valid() {
		return &ValidationError{Field: "paymentStatus", Reason: "must be one of pending, completed, failed"}
	}
	return nil
}

// apply merges the request into b. It returns ErrInvalidTransition for disallowed status moves.
func (r *UpdateRequest) apply(b *Booking, now time.Time) error {
	if r.PaymentStatus != "" {
		if !b.PaymentStatus.CanTransition(r.PaymentStatus) {
			return ErrInvalidTransition
		}
		b.PaymentStatus = r.PaymentStatus
	}
	if r.StripeSessionID != "" {
		b.StripeSessionID = r.StripeSessionID
	}
	b.UpdatedAt = now
	return nil
}
