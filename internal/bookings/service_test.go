package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reginald441/reginaldkargbo-site/internal/observability/metrics"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

var fixedNow = time.Date(2026, time.October, 14, 13, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, store Store) *Service {
	t.Helper()
	if store == nil {
		store = NewMemoryStore()
	}
	n := 0
	return NewService(store, logging.Discard(),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func(time.Time) string {
			n++
			return fmt.Sprintf("BK-test-%d", n)
		}),
		WithMetrics(metrics.NewBookingMetrics(prometheus.NewRegistry())),
	)
}

func sampleRequest(ts int64) CreateRequest {
	return CreateRequest{
		Timestamp:   ts,
		SlotTime:    "12:00 PM",
		SlotDate:    "October 14",
		FullTime:    "Wednesday, October 14, 2026 at 12:00 PM ET",
		ClientName:  "Jane Doe",
		ClientEmail: "jane@example.com",
	}
}

func TestServiceCreateValidation(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		mut   func(*CreateRequest)
		field string
	}{
		{"missing timestamp", func(r *CreateRequest) { r.Timestamp = 0 }, "timestamp"},
		{"missing name", func(r *CreateRequest) { r.ClientName = "  " }, "clientName"},
		{"missing email", func(r *CreateRequest) { r.ClientEmail = "" }, "clientEmail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := sampleRequest(1791993600000)
			tt.mut(&req)
			_, err := svc.Create(ctx, req)
			require.ErrorIs(t, err, ErrInvalidBooking)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestServiceCreateRoundTrip(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	req := sampleRequest(1791993600000)
	req.ClientPhone = "(240) 616-5466"
	b, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "BK-test-1", b.ID)
	assert.Equal(t, PaymentPending, b.PaymentStatus)
	assert.Equal(t, fixedNow, b.CreatedAt)
	assert.Equal(t, b.CreatedAt, b.UpdatedAt)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, req.Timestamp, got.Timestamp)
	assert.Equal(t, req.SlotTime, got.SlotTime)
	assert.Equal(t, req.SlotDate, got.SlotDate)
	assert.Equal(t, req.FullTime, got.FullTime)
	assert.Equal(t, req.ClientName, got.ClientName)
	assert.Equal(t, req.ClientEmail, got.ClientEmail)
	assert.Equal(t, req.ClientPhone, got.ClientPhone)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestServiceCreateKeepsSubmittedStrings(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	req := sampleRequest(1791993600000)
	req.ClientName = " Jane Doe "
	req.ClientEmail = "jane@example.com "
	req.ClientPhone = " 555-0100"
	req.StripeSessionID = " "
	_, err := svc.Create(ctx, req)
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, " Jane Doe ", got.ClientName)
	assert.Equal(t, "jane@example.com ", got.ClientEmail)
	assert.Equal(t, " 555-0100", got.ClientPhone)
	assert.Equal(t, " ", got.StripeSessionID)
	assert.Equal(t, PaymentCompleted, got.PaymentStatus)
}

func TestServiceCreateWithPaymentReferenceIsCompleted(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	req := sampleRequest(1791993600000)
	req.StripeSessionID = "RK-93600000"
	b, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, PaymentCompleted, b.PaymentStatus)

	available, err := svc.CheckAvailability(ctx, req.Timestamp)
	require.NoError(t, err)
	assert.False(t, available)
}

func TestServicePendingDoesNotBlock(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, sampleRequest(1791993600000))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		available, err := svc.CheckAvailability(ctx, 1791993600000)
		require.NoError(t, err)
		assert.True(t, available)
	}

	_, err = svc.Create(ctx, sampleRequest(1791993600000))
	require.NoError(t, err)
}

// Generate-pick-book-promote-conflict flow for a single client.
func TestServiceJaneDoeScenario(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	ts := int64(1791993600000)

	b, err := svc.Create(ctx, sampleRequest(ts))
	require.NoError(t, err)
	assert.Equal(t, PaymentPending, b.PaymentStatus)

	updated, err := svc.Update(ctx, UpdateRequest{ID: b.ID, PaymentStatus: PaymentCompleted})
	require.NoError(t, err)
	assert.Equal(t, PaymentCompleted, updated.PaymentStatus)

	available, err := svc.CheckAvailability(ctx, ts)
	require.NoError(t, err)
	assert.False(t, available)

	second := sampleRequest(ts)
	second.ClientName = "John Roe"
	second.ClientEmail = "john@example.com"
	_, err = svc.Create(ctx, second)
	require.ErrorIs(t, err, ErrSlotConflict)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Jane Doe", list[0].ClientName)
}

func TestServiceUpdateMergesNonEmptyFields(t *testing.T) {
	later := fixedNow.Add(time.Hour)
	store := NewMemoryStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	b, err := svc.Create(ctx, sampleRequest(1791993600000))
	require.NoError(t, err)

	svc.now = func() time.Time { return later }
	updated, err := svc.Update(ctx, UpdateRequest{ID: b.ID, StripeSessionID: "cs_123"})
	require.NoError(t, err)
	assert.Equal(t, PaymentPending, updated.PaymentStatus)
	assert.Equal(t, "cs_123", updated.StripeSessionID)
	assert.Equal(t, later, updated.UpdatedAt)
	assert.Equal(t, fixedNow, updated.CreatedAt)

	updated, err = svc.Update(ctx, UpdateRequest{ID: b.ID, PaymentStatus: PaymentFailed})
	require.NoError(t, err)
	assert.Equal(t, PaymentFailed, updated.PaymentStatus)
	assert.Equal(t, "cs_123", updated.StripeSessionID)
}

func TestServiceUpdateErrors(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, UpdateRequest{ID: "BK-missing", PaymentStatus: PaymentCompleted})
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = svc.Update(ctx, UpdateRequest{ID: ""})
	assert.ErrorIs(t, err, ErrBookingNotFound)

	b, err := svc.Create(ctx, sampleRequest(1791993600000))
	require.NoError(t, err)

	_, err = svc.Update(ctx, UpdateRequest{ID: b.ID, PaymentStatus: "refunded"})
	assert.ErrorIs(t, err, ErrInvalidBooking)

	_, err = svc.Update(ctx, UpdateRequest{ID: b.ID, PaymentStatus: PaymentFailed})
	require.NoError(t, err)
	_, err = svc.Update(ctx, UpdateRequest{ID: b.ID, PaymentStatus: PaymentCompleted})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestServiceUpdatePromotionConflicts(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	ts := int64(1791993600000)

	first, err := svc.Create(ctx, sampleRequest(ts))
	require.NoError(t, err)
	second, err := svc.Create(ctx, sampleRequest(ts))
	require.NoError(t, err)

	_, err = svc.Update(ctx, UpdateRequest{ID: first.ID, PaymentStatus: PaymentCompleted})
	require.NoError(t, err)
	_, err = svc.Update(ctx, UpdateRequest{ID: second.ID, PaymentStatus: PaymentCompleted})
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestServiceCancel(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	ts := int64(1791993600000)

	req := sampleRequest(ts)
	req.StripeSessionID = "RK-1"
	b, err := svc.Create(ctx, req)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Cancel(ctx, "BK-nope"), ErrBookingNotFound)
	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Cancel(ctx, b.ID))
	available, err := svc.CheckAvailability(ctx, ts)
	require.NoError(t, err)
	assert.True(t, available)
}

type failingStore struct {
	Store
	err error
}

func (f failingStore) List(context.Context) ([]*Booking, error)       { return nil, f.err }
func (f failingStore) SlotTaken(context.Context, int64) (bool, error) { return false, f.err }
func (f failingStore) Insert(context.Context, *Booking) error         { return f.err }

func TestServicePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	svc := newTestService(t, failingStore{Store: NewMemoryStore(), err: boom})
	ctx := context.Background()

	_, err := svc.List(ctx)
	assert.ErrorIs(t, err, boom)
	_, err = svc.CheckAvailability(ctx, 1)
	assert.ErrorIs(t, err, boom)
	_, err = svc.Create(ctx, sampleRequest(1))
	assert.ErrorIs(t, err, boom)
}

func TestNewBookingIDFormat(t *testing.T) {
	id := NewBookingID(fixedNow)
	parts := strings.Split(id, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "BK", parts[0])
	assert.Equal(t, fmt.Sprint(fixedNow.UnixMilli()), parts[1])
	assert.Len(t, parts[2], 9)
	assert.NotEqual(t, id, NewBookingID(fixedNow))
}
