package tools

import (
	"fmt"
	"time"
)

// FormatElapsed renders a duration as a practice-timer display: "m:ss" under
// an hour, "h:mm:ss" from one hour up. Negative durations render as "0:00".
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// TruncateBase64 shortens an encoded frame for log output, keeping the first
// max characters plus an ellipsis. Payloads at or under max pass through.
func TruncateBase64(encoded string, max int) string {
	if max <= 0 || len(encoded) <= max {
		return encoded
	}
	return encoded[:max] + "..."
}
