package bookings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every Store backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2026, time.October, 14, 13, 0, 0, 0, time.UTC)

	mk := func(id string, ts int64, status PaymentStatus) *Booking {
		return &Booking{
			ID:            id,
			Timestamp:     ts,
			SlotTime:      "10:00 AM",
			SlotDate:      "October 15",
			FullTime:      "Thursday, October 15, 2026 at 10:00 AM ET",
			ClientName:    "Client " + id,
			ClientEmail:   id + "@example.com",
			PaymentStatus: status,
			CreatedAt:     created,
			UpdatedAt:     created,
		}
	}

	t.Run("insert then list and get", func(t *testing.T) {
		s := newStore(t)
		want := mk("BK-1", 1000, PaymentPending)
		want.ClientPhone = "555-0100"
		require.NoError(t, s.Insert(ctx, want))

		list, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, want.ID, list[0].ID)
		assert.Equal(t, want.ClientPhone, list[0].ClientPhone)
		assert.True(t, want.CreatedAt.Equal(list[0].CreatedAt))

		got, err := s.Get(ctx, "BK-1")
		require.NoError(t, err)
		assert.Equal(t, want.ClientEmail, got.ClientEmail)
		assert.Equal(t, PaymentPending, got.PaymentStatus)
	})

	t.Run("empty list is not nil", func(t *testing.T) {
		s := newStore(t)
		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("pending does not hold the slot", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, mk("BK-1", 2000, PaymentPending)))
		require.NoError(t, s.Insert(ctx, mk("BK-2", 2000, PaymentFailed)))

		taken, err := s.SlotTaken(ctx, 2000)
		require.NoError(t, err)
		assert.False(t, taken)

		require.NoError(t, s.Insert(ctx, mk("BK-3", 2000, PaymentPending)))
	})

	t.Run("completed blocks any insert", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, mk("BK-1", 3000, PaymentCompleted)))

		taken, err := s.SlotTaken(ctx, 3000)
		require.NoError(t, err)
		assert.True(t, taken)

		err = s.Insert(ctx, mk("BK-2", 3000, PaymentPending))
		assert.ErrorIs(t, err, ErrSlotConflict)
		err = s.Insert(ctx, mk("BK-3", 3000, PaymentCompleted))
		assert.ErrorIs(t, err, ErrSlotConflict)

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("update promotes and conflicts", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, mk("BK-1", 4000, PaymentPending)))
		require.NoError(t, s.Insert(ctx, mk("BK-2", 4000, PaymentPending)))

		updated, err := s.Update(ctx, "BK-1", func(b *Booking) error {
			b.PaymentStatus = PaymentCompleted
			b.StripeSessionID = "cs_test_1"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, PaymentCompleted, updated.PaymentStatus)

		taken, err := s.SlotTaken(ctx, 4000)
		require.NoError(t, err)
		assert.True(t, taken)

		_, err = s.Update(ctx, "BK-2", func(b *Booking) error {
			b.PaymentStatus = PaymentCompleted
			return nil
		})
		assert.ErrorIs(t, err, ErrSlotConflict)

		other, err := s.Get(ctx, "BK-2")
		require.NoError(t, err)
		assert.Equal(t, PaymentPending, other.PaymentStatus)
	})

	t.Run("update error leaves record unchanged", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, mk("BK-1", 5000, PaymentFailed)))

		boom := errors.New("boom")
		_, err := s.Update(ctx, "BK-1", func(b *Booking) error {
			b.ClientName = "changed"
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.Get(ctx, "BK-1")
		require.NoError(t, err)
		assert.Equal(t, "Client BK-1", got.ClientName)
	})

	t.Run("unknown ids", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrBookingNotFound)
		_, err = s.Update(ctx, "missing", func(*Booking) error { return nil })
		assert.ErrorIs(t, err, ErrBookingNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrBookingNotFound)
	})

	t.Run("delete frees the slot", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, mk("BK-1", 6000, PaymentCompleted)))
		require.NoError(t, s.Delete(ctx, "BK-1"))

		taken, err := s.SlotTaken(ctx, 6000)
		require.NoError(t, err)
		assert.False(t, taken)
		require.NoError(t, s.Insert(ctx, mk("BK-2", 6000, PaymentCompleted)))
	})

	t.Run("concurrent completed inserts reserve once", func(t *testing.T) {
		s := newStore(t)
		const attempts = 8

		var wg sync.WaitGroup
		errs := make(chan error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.Insert(ctx, mk(NewBookingID(created.Add(time.Duration(i))), 7000, PaymentCompleted))
			}(i)
		}
		wg.Wait()
		close(errs)

		var ok, conflicts int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrSlotConflict):
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, attempts-1, conflicts)
	})
}
