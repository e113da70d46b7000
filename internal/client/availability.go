package client

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/reginald441/reginaldkargbo-site/internal/bookings"
	"github.com/reginald441/reginaldkargbo-site/pkg/logging"
)

// BookingsReader is the read side of the booking API.
type BookingsReader interface {
	ListBookings(ctx context.Context) ([]*bookings.Booking, error)
	CheckAvailability(ctx context.Context, timestamp int64) (bool, error)
}

// Availability is the client's view of which slots are taken. The server's completed
// bookings win whenever it is reachable; the mirror fills in only on transport errors.
type Availability struct {
	api    BookingsReader
	mirror Mirror
	logger *logging.Logger
	now    func() time.Time

	mu          sync.RWMutex
	booked      map[int64]struct{}
	degraded    bool
	refreshedAt time.Time
}

func NewAvailability(api BookingsReader, mirror Mirror, logger *logging.Logger) *Availability {
	if mirror == nil {
		mirror = NewMemoryMirror()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Availability{
		api:    api,
		mirror: mirror,
		logger: logger,
		now:    time.Now,
		booked: map[int64]struct{}{},
	}
}

// Refresh reloads the booked set. On a transport error the mirror is used and the view
// is marked degraded; other API errors leave the previous view in place.
func (a *Availability) Refresh(ctx context.Context) error {
	list, err := a.api.ListBookings(ctx)
	if err == nil {
		set := make(map[int64]struct{}, len(list))
		for _, b := range list {
			if b.HoldsSlot() {
				set[b.Timestamp] = struct{}{}
			}
		}
		a.replace(set, false)
		return nil
	}
	if !errors.Is(err, ErrTransport) {
		return err
	}

	local, mirrorErr := a.mirror.BookedSlots(ctx)
	if mirrorErr != nil {
		return errors.Join(err, mirrorErr)
	}
	set := make(map[int64]struct{}, len(local))
	for _, ts := range local {
		set[ts] = struct{}{}
	}
	a.replace(set, true)
	a.logger.Warn("availability degraded to local history", "error", err)
	return nil
}

// Check asks the server about one slot, falling back to the mirror when unreachable.
func (a *Availability) Check(ctx context.Context, timestamp int64) (bool, error) {
	available, err := a.api.CheckAvailability(ctx, timestamp)
	if err == nil {
		a.mu.Lock()
		a.degraded = false
		if available {
			delete(a.booked, timestamp)
		} else {
			a.booked[timestamp] = struct{}{}
		}
		a.mu.Unlock()
		return available, nil
	}
	if !errors.Is(err, ErrTransport) {
		return false, err
	}

	local, mirrorErr := a.mirror.BookedSlots(ctx)
	if mirrorErr != nil {
		return false, errors.Join(err, mirrorErr)
	}
	a.mu.Lock()
	a.degraded = true
	a.mu.Unlock()
	for _, ts := range local {
		if ts == timestamp {
			return false, nil
		}
	}
	return true, nil
}

// MarkBooked records a slot this client just reserved, locally and in the mirror.
func (a *Availability) MarkBooked(ctx context.Context, timestamp int64) error {
	a.mu.Lock()
	a.booked[timestamp] = struct{}{}
	a.mu.Unlock()
	return a.mirror.RecordBooked(ctx, timestamp)
}

// IsBooked reports whether the current view has timestamp taken.
func (a *Availability) IsBooked(timestamp int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.booked[timestamp]
	return ok
}

// Booked returns the taken timestamps in ascending order.
func (a *Availability) Booked() []int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]int64, 0, len(a.booked))
	for ts := range a.booked {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Degraded is true while the view comes from local history.
func (a *Availability) Degraded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.degraded
}

// RefreshedAt is when the last successful Refresh finished.
func (a *Availability) RefreshedAt() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.refreshedAt
}

func (a *Availability) replace(set map[int64]struct{}, degraded bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.booked = set
	a.degraded = degraded
	a.refreshedAt = a.now()
}
