package cli

import (
	"slices"
	"time"

	"github.com/reginald441/reginaldkargbo-site/internal/client"
)

type WatchCmd struct {
	Interval time.Duration `help:"Refresh interval." default:"30s"`
}

func (c *WatchCmd) Run(ctx *Context) error {
	poller := client.NewPoller(ctx.Avail, c.Interval, ctx.Logger)

	var last map[int64]struct{}
	poller.OnRefresh(func(err error) {
		if err != nil {
			if ctx.Ctx.Err() == nil {
				ctx.printf("refresh failed: %s\n", client.UserMessage(err))
			}
			return
		}
		current := map[int64]struct{}{}
		for _, ts := range ctx.Avail.Booked() {
			current[ts] = struct{}{}
			if _, seen := last[ts]; !seen && last != nil {
				ctx.printf("booked: %d\n", ts)
			}
		}
		released := make([]int64, 0)
		for ts := range last {
			if _, still := current[ts]; !still {
				released = append(released, ts)
			}
		}
		slices.Sort(released)
		for _, ts := range released {
			ctx.printf("released: %d\n", ts)
		}
		if last == nil {
			ctx.printf("%d slot(s) booked", len(current))
			if ctx.Avail.Degraded() {
				ctx.printf(" (local history only)")
			}
			ctx.printf("\n")
		}
		last = current
	})
	poller.Run(ctx.Ctx)
	return nil
}
