package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/reginald441/reginaldkargbo-site/internal/bookings"
	"github.com/reginald441/reginaldkargbo-site/internal/observability/metrics"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

const maxWebhookBody = 64 << 10

// BookingUpdater records payment outcomes against bookings.
type BookingUpdater interface {
	Update(ctx context.Context, req bookings.UpdateRequest) (*bookings.Booking, error)
}

// StripeWebhookHandler turns Checkout Session events into booking status updates.
// client_reference_id on the session must carry the booking id, so it applies to pending
// bookings created through POST /bookings before checkout. Sessions without one are acked.
type StripeWebhookHandler struct {
	webhookSecret string
	bookings      BookingUpdater
	metrics       *metrics.PaymentMetrics
	logger        *logging.Logger
}

// NewStripeWebhookHandler creates a new handler for Stripe webhooks.
func NewStripeWebhookHandler(webhookSecret string, updater BookingUpdater, m *metrics.PaymentMetrics, logger *logging.Logger) *StripeWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeWebhookHandler{
		webhookSecret: webhookSecret,
		bookings:      updater,
		metrics:       m,
		logger:        logger,
	}
}

// Handle processes incoming Stripe webhook events. Signature failures return 400. Events
// that cannot be applied to a booking are acknowledged so Stripe stops retrying; store
// failures return 500 so it tries again.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Warn("stripe signature verification failed", "error", err)
		h.metrics.ObserveWebhook("stripe", "unknown", "bad_signature")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	eventType := string(evt.Type)

	status, ok := statusForEvent(eventType)
	if !ok {
		h.metrics.ObserveWebhook("stripe", eventType, "ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	var session stripe.CheckoutSession
	if evt.Data == nil || json.Unmarshal(evt.Data.Raw, &session) != nil {
		h.logger.Error("failed to decode checkout session", "event_id", evt.ID)
		h.metrics.ObserveWebhook("stripe", eventType, "malformed")
		w.WriteHeader(http.StatusOK)
		return
	}
	// checkout.session.completed also fires for delayed methods that have not paid yet.
	if status == bookings.PaymentCompleted && eventType == "checkout.session.completed" &&
		session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
		session.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		h.metrics.ObserveWebhook("stripe", eventType, "unpaid")
		w.WriteHeader(http.StatusOK)
		return
	}

	bookingID := strings.TrimSpace(session.ClientReferenceID)
	if bookingID == "" {
		h.logger.Warn("stripe session without booking reference", "event_id", evt.ID, "session_id", session.ID)
		h.metrics.ObserveWebhook("stripe", eventType, "unmatched")
		w.WriteHeader(http.StatusOK)
		return
	}

	_, err = h.bookings.Update(r.Context(), bookings.UpdateRequest{
		ID:              bookingID,
		PaymentStatus:   status,
		StripeSessionID: session.ID,
	})
	switch {
	case err == nil:
		h.logger.Info("payment outcome recorded", "booking_id", bookingID, "status", status, "event_id", evt.ID)
		h.metrics.ObserveWebhook("stripe", eventType, string(status))
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, bookings.ErrBookingNotFound),
		errors.Is(err, bookings.ErrInvalidTransition),
		errors.Is(err, bookings.ErrSlotConflict),
		errors.Is(err, bookings.ErrInvalidBooking):
		h.logger.Warn("payment outcome not applied", "booking_id", bookingID, "event_id", evt.ID, "error", err)
		h.metrics.ObserveWebhook("stripe", eventType, "rejected")
		w.WriteHeader(http.StatusOK)
	default:
		h.logger.Error("failed to record payment outcome", "booking_id", bookingID, "error", err)
		h.metrics.ObserveWebhook("stripe", eventType, "error")
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func statusForEvent(eventType string) (bookings.PaymentStatus, bool) {
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return bookings.PaymentCompleted, true
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		return bookings.PaymentFailed, true
	default:
		return "", false
	}
}
