package bookings

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewBookingID returns an id of the form BK-<unix ms>-<9 lowercase alphanumerics>.
func NewBookingID(now time.Time) string {
	return fmt.Sprintf("BK-%d-%s", now.UnixMilli(), randomSuffix(9))
}

func randomSuffix(n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	return b.String()[:n]
}
