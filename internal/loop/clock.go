package loop

import "time"

// Clock abstracts wall time and timer arming so the control loop can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time
	// After returns a channel that delivers once after d. Arming a cycle is
	// a deferred timer wait, never a busy loop.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
