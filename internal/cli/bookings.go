package cli

import (
	"fmt"

	"github.com/reginald441/reginaldkargbo-site/internal/bookings"
)

type BookingsCmd struct {
	Status string `help:"Only show bookings with this payment status (pending, completed, failed)."`
}

func (c *BookingsCmd) Validate() error {
	if c.Status != "" && !bookings.PaymentStatus(c.Status).Valid() {
		return fmt.Errorf("status must be one of pending, completed, failed")
	}
	return nil
}

func (c *BookingsCmd) Run(ctx *Context) error {
	list, err := ctx.API.ListBookings(ctx.Ctx)
	if err != nil {
		return userError(err)
	}

	totals := map[bookings.PaymentStatus]int{}
	for _, b := range list {
		totals[b.PaymentStatus]++
		if c.Status != "" && string(b.PaymentStatus) != c.Status {
			continue
		}
		ctx.printf("%-20s  %-9s  %-40s  %s <%s>\n", b.ID, b.PaymentStatus, b.FullTime, b.ClientName, b.ClientEmail)
	}
	ctx.printf("\nTotal: %d  completed: %d  pending: %d  failed: %d\n",
		len(list), totals[bookings.PaymentCompleted], totals[bookings.PaymentPending], totals[bookings.PaymentFailed])
	return nil
}

type CheckCmd struct {
	Timestamp int64 `arg:"" help:"Slot start in unix milliseconds."`
}

func (c *CheckCmd) Run(ctx *Context) error {
	available, err := ctx.Avail.Check(ctx.Ctx, c.Timestamp)
	if err != nil {
		return userError(err)
	}
	suffix := ""
	if ctx.Avail.Degraded() {
		suffix = " (local history only)"
	}
	if available {
		ctx.printf("Slot %d is available%s.\n", c.Timestamp, suffix)
	} else {
		ctx.printf("Slot %d is booked%s.\n", c.Timestamp, suffix)
	}
	return nil
}

type CancelCmd struct {
	ID string `arg:"" help:"Booking id."`
}

func (c *CancelCmd) Run(ctx *Context) error {
	if err := ctx.API.CancelBooking(ctx.Ctx, c.ID); err != nil {
		return userError(err)
	}
	ctx.printf("Booking %s cancelled.\n", c.ID)
	return nil
}

type MarkCmd struct {
	ID      string `arg:"" help:"Booking id."`
	Status  string `help:"New payment status." required:"" enum:"pending,completed,failed"`
	Session string `help:"Payment session reference to record."`
}

func (c *MarkCmd) Run(ctx *Context) error {
	updated, err := ctx.API.UpdateBooking(ctx.Ctx, bookings.UpdateRequest{
		ID:              c.ID,
		PaymentStatus:   bookings.PaymentStatus(c.Status),
		StripeSessionID: c.Session,
	})
	if err != nil {
		return userError(err)
	}
	ctx.printf("Booking %s is now %s.\n", updated.ID, updated.PaymentStatus)
	return nil
}
