package bookings

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/reginald441/reginaldkargbo-site/internal/observability/metrics"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

var bookingsTracer = otel.Tracer("consult.internal.bookings")

// Service owns booking validation and lifecycle rules on top of a Store.
type Service struct {
	store   Store
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
	now     func() time.Time
	newID   func(time.Time) string
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides booking id generation.
func WithIDGenerator(fn func(time.Time) string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithMetrics records operation outcomes.
func WithMetrics(m *metrics.BookingMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs a bookings service.
func NewService(store Store, logger *logging.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("bookings: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  NewBookingID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every stored booking.
func (s *Service) List(ctx context.Context) ([]*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.list")
	defer span.End()

	start := time.Now()
	list, err := s.store.List(ctx)
	s.metrics.ObserveStoreLatency("list", time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		s.observe("list", err)
		return nil, err
	}
	if list == nil {
		list = []*Booking{}
	}
	s.observe("list", nil)
	return list, nil
}

// CheckAvailability reports whether no completed booking holds timestamp.
func (s *Service) CheckAvailability(ctx context.Context, timestamp int64) (bool, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.check_availability")
	defer span.End()
	span.SetAttributes(attribute.Int64("consult.slot_ts", timestamp))

	start := time.Now()
	taken, err := s.store.SlotTaken(ctx, timestamp)
	s.metrics.ObserveStoreLatency("slot_taken", time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		s.observe("check", err)
		return false, err
	}
	s.observe("check", nil)
	return !taken, nil
}

// Create validates req and persists a new booking with the submitted strings stored as
// given. A non-empty payment reference makes the booking completed; otherwise it starts pending.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()
	span.SetAttributes(attribute.Int64("consult.slot_ts", req.Timestamp))

	if err := req.Validate(); err != nil {
		s.observe("create", err)
		return nil, err
	}

	now := s.now().UTC()
	status := PaymentPending
	if req.StripeSessionID != "" {
		status = PaymentCompleted
	}
	b := &Booking{
		ID:              s.newID(now),
		Timestamp:       req.Timestamp,
		SlotTime:        req.SlotTime,
		SlotDate:        req.SlotDate,
		FullTime:        req.FullTime,
		ClientName:      req.ClientName,
		ClientEmail:     req.ClientEmail,
		ClientPhone:     req.ClientPhone,
		PaymentStatus:   status,
		StripeSessionID: req.StripeSessionID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	start := time.Now()
	err := s.store.Insert(ctx, b)
	s.metrics.ObserveStoreLatency("insert", time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		s.observe("create", err)
		if errors.Is(err, ErrSlotConflict) {
			s.logger.Warn("booking rejected, slot taken", "slot_ts", req.Timestamp)
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("consult.booking_id", b.ID))
	s.observe("create", nil)
	s.logger.Info("booking notification",
		"booking_id", b.ID,
		"client_name", b.ClientName,
		"client_email", b.ClientEmail,
		"full_time", b.FullTime,
		"payment_status", string(b.PaymentStatus),
	)
	return b, nil
}

// Update merges req into the stored booking.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.update")
	defer span.End()
	span.SetAttributes(attribute.String("consult.booking_id", req.ID))

	if strings.TrimSpace(req.ID) == "" {
		s.observe("update", ErrBookingNotFound)
		return nil, ErrBookingNotFound
	}
	if err := req.Validate(); err != nil {
		s.observe("update", err)
		return nil, err
	}

	now := s.now().UTC()
	start := time.Now()
	b, err := s.store.Update(ctx, req.ID, func(b *Booking) error {
		return req.apply(b, now)
	})
	s.metrics.ObserveStoreLatency("update", time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		s.observe("update", err)
		return nil, err
	}

	s.observe("update", nil)
	s.logger.Info("booking updated", "booking_id", b.ID, "payment_status", string(b.PaymentStatus))
	return b, nil
}

// Cancel removes a booking regardless of status.
func (s *Service) Cancel(ctx context.Context, id string) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("consult.booking_id", id))

	if strings.TrimSpace(id) == "" {
		s.observe("cancel", ErrBookingNotFound)
		return ErrBookingNotFound
	}

	start := time.Now()
	err := s.store.Delete(ctx, id)
	s.metrics.ObserveStoreLatency("delete", time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		s.observe("cancel", err)
		return err
	}
	s.observe("cancel", nil)
	s.logger.Info("booking cancelled", "booking_id", id)
	return nil
}

func (s *Service) observe(operation string, err error) {
	s.metrics.ObserveOperation(operation, outcome(err))
	if errors.Is(err, ErrSlotConflict) {
		s.metrics.ObserveConflict()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidBooking):
		return "invalid"
	case errors.Is(err, ErrBookingNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "error"
	}
}
