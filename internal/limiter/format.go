package limiter

import (
	"fmt"
	"time"
)

// FormatUntil renders the time remaining until t as a short human-readable
// cooldown, e.g. "3h 12m", "45m", or "now" once t has passed.
func FormatUntil(now, t time.Time) string {
	diff := t.Sub(now)
	if diff <= 0 {
		return "now"
	}

	hours := int(diff / time.Hour)
	minutes := int((diff % time.Hour) / time.Minute)

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
