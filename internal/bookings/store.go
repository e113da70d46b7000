package bookings

import "context"

// Store persists bookings. Implementations must make the slot-conflict check and the
// write that depends on it a single atomic step.
type Store interface {
	List(ctx context.Context) ([]*Booking, error)
	// SlotTaken reports whether a completed booking holds timestamp.
	SlotTaken(ctx context.Context, timestamp int64) (bool, error)
	// Insert stores b, failing with ErrSlotConflict if a completed booking already holds b.Timestamp.
	Insert(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	// Update loads the booking, applies fn and stores the result. Promoting the booking to
	// completed fails with ErrSlotConflict if another completed booking holds the slot.
	Update(ctx context.Context, id string, fn func(*Booking) error) (*Booking, error)
	Delete(ctx context.Context, id string) error
}

// conflictsWith reports whether other holds the slot b wants to hold.
func conflictsWith(b, other *Booking) bool {
	return other.ID != b.ID && other.Timestamp == b.Timestamp && other.HoldsSlot()
}

func cloneBooking(b *Booking) *Booking {
	if b == nil {
		return nil
	}
	cp := *b
	return &cp
}

const maxOptimisticRetries = 5
