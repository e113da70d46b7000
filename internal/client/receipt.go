package client

import (
	"strconv"
	"time"
)

// NewReceiptID returns RK- followed by the last eight digits of the unix millisecond clock.
func NewReceiptID(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	return "RK-" + ms
}
