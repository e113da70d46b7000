package cli

import (
	"errors"

	"github.com/reginald441/reginaldkargbo-site/internal/bookings"
	"github.com/reginald441/reginaldkargbo-site/internal/client"
	"github.com/reginald441/reginaldkargbo-site/internal/slots"
)

type SlotsCmd struct {
	All bool `help:"Include booked slots."`
}

func (c *SlotsCmd) Run(ctx *Context) error {
	list, degraded, err := ctx.calendar()
	if err != nil {
		return err
	}
	if degraded {
		ctx.printf("Booking service unreachable, showing local history.\n")
	}

	shown := 0
	for _, s := range list {
		if !s.Available && !c.All {
			continue
		}
		mark := "open"
		if !s.Available {
			mark = "booked"
		}
		ctx.printf("%-14d  %-6s  %s\n", s.Timestamp, mark, s.FullTime)
		shown++
	}
	if shown == 0 {
		ctx.printf("No open slots.\n")
	}
	return nil
}

// calendar returns the server calendar, or one built locally from the mirror when the
// API is unreachable.
func (ctx *Context) calendar() ([]bookings.SlotView, bool, error) {
	list, err := ctx.API.Slots(ctx.Ctx)
	if err == nil {
		return list, false, nil
	}
	if !errors.Is(err, client.ErrTransport) {
		return nil, false, err
	}
	if err := ctx.Avail.Refresh(ctx.Ctx); err != nil {
		return nil, false, err
	}
	generated := slots.Generate(ctx.Now(), ctx.SlotOpts)
	out := make([]bookings.SlotView, 0, len(generated))
	for _, s := range generated {
		out = append(out, bookings.SlotView{TimeSlot: s, Available: !ctx.Avail.IsBooked(s.Timestamp)})
	}
	return out, true, nil
}
