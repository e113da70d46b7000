package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reginald441/reginaldkargbo-site/internal/bookings"
	"github.com/reginald441/reginaldkargbo-site/internal/slots"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

var testNow = time.Date(2026, time.October, 14, 13, 0, 0, 0, time.UTC)

// newTestAPI serves the real booking handlers from a memory store.
func newTestAPI(t *testing.T) (*Client, *bookings.Service, *httptest.Server) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	svc := bookings.NewService(bookings.NewMemoryStore(), logging.Discard(),
		bookings.WithClock(func() time.Time { return testNow }),
	)
	h := bookings.NewHandler(svc, slots.Options{Location: loc}, logging.Discard())
	r := chi.NewRouter()
	r.Mount("/bookings", h.Routes())
	r.Get("/slots", h.ListSlots)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithLogger(logging.Discard()))
	require.NoError(t, err)
	return c, svc, srv
}

func janeRequest(ts int64, reference string) bookings.CreateRequest {
	return bookings.CreateRequest{
		Timestamp:       ts,
		SlotTime:        "12:00 PM",
		SlotDate:        "Oct 14",
		FullTime:        "Wednesday, October 14, 2026 at 12:00 PM ET",
		ClientName:      "Jane Doe",
		ClientEmail:     "jane@example.com",
		StripeSessionID: reference,
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "  ", "ftp://example.com", "://nope"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}
}

func TestClientRoundTrip(t *testing.T) {
	c, _, _ := newTestAPI(t)
	ctx := context.Background()

	list, err := c.ListBookings(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	ok, err := c.CheckAvailability(ctx, 1000)
	require.NoError(t, err)
	assert.True(t, ok)

	created, err := c.CreateBooking(ctx, janeRequest(1000, "RK-12345678"))
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, bookings.PaymentCompleted, created.PaymentStatus)

	ok, err = c.CheckAvailability(ctx, 1000)
	require.NoError(t, err)
	assert.False(t, ok)

	list, err = c.ListBookings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	require.NoError(t, c.CancelBooking(ctx, created.ID))
	ok, err = c.CheckAvailability(ctx, 1000)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClientUpdateBooking(t *testing.T) {
	c, _, _ := newTestAPI(t)
	ctx := context.Background()

	pending, err := c.CreateBooking(ctx, janeRequest(2000, ""))
	require.NoError(t, err)
	assert.Equal(t, bookings.PaymentPending, pending.PaymentStatus)

	updated, err := c.UpdateBooking(ctx, bookings.UpdateRequest{ID: pending.ID, PaymentStatus: bookings.PaymentCompleted, StripeSessionID: "cs_1"})
	require.NoError(t, err)
	assert.Equal(t, bookings.PaymentCompleted, updated.PaymentStatus)
	assert.Equal(t, "cs_1", updated.StripeSessionID)
}

func TestClientMapsAPIErrors(t *testing.T) {
	c, _, _ := newTestAPI(t)
	ctx := context.Background()

	_, err := c.CreateBooking(ctx, janeRequest(3000, "RK-1"))
	require.NoError(t, err)

	_, err = c.CreateBooking(ctx, janeRequest(3000, "RK-2"))
	require.ErrorIs(t, err, bookings.ErrSlotConflict)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, conflictMessage, UserMessage(err))

	bad := janeRequest(4000, "")
	bad.ClientEmail = ""
	_, err = c.CreateBooking(ctx, bad)
	assert.ErrorIs(t, err, bookings.ErrInvalidBooking)

	err = c.CancelBooking(ctx, "BK-missing")
	assert.ErrorIs(t, err, bookings.ErrBookingNotFound)
	assert.Equal(t, "Booking not found", UserMessage(err))
}

func TestClientTransportError(t *testing.T) {
	_, _, srv := newTestAPI(t)
	c, err := New(srv.URL, WithLogger(logging.Discard()))
	require.NoError(t, err)
	srv.Close()

	_, err = c.ListBookings(context.Background())
	require.ErrorIs(t, err, ErrTransport)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "list bookings", te.Op)
	assert.Equal(t, networkMessage, UserMessage(err))
}

func TestClientSlots(t *testing.T) {
	c, _, _ := newTestAPI(t)

	list, err := c.Slots(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, list)
	for _, s := range list {
		assert.True(t, s.Available)
	}
}

func TestUserMessageDefaults(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, conflictMessage, UserMessage(ErrSlotUnavailable))
	assert.Equal(t, "Something went wrong. Please try again.", UserMessage(assert.AnError))
}
