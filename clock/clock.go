// Package clock abstracts time so retry scheduling can be driven by a fake
// clock in tests.
package clock

import "time"

// Clock is the subset of the time package used by the SDK.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for d, then calls f. The returned Timer can cancel
	// the pending call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer represents a scheduled call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the Timer from firing. It reports whether the call was
// stopped before it fired.
func (t *Timer) Stop() bool { return t.stopFunc() }
