package types

import (
	"fmt"
	"time"
)

// Elapsed formats d as HH:MM:SS. Hours are not capped at 24 and widen past
// two digits; sub-second precision is truncated. Negative durations render as
// 00:00:00.
func Elapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
