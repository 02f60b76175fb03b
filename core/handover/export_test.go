package handover

import "time"

// SetNow replaces the clock and returns a func restoring it.
func SetNow(now func() time.Time) func() {
	prev := nowFunc
	nowFunc = now
	return func() { nowFunc = prev }
}
