package orchestrator

import "time"

// Clock abstracts time so that execution delays and the periodic tick
// are deterministic in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// After returns a channel that fires once the duration has elapsed.
	After(d time.Duration) <-chan time.Time
}

// realClock is the wall-clock implementation used outside tests.
type realClock struct{}

// NewRealClock returns a Clock backed by the system clock.
func NewRealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
