// Package internal provides internal utilities for the rtcvideo package.
package internal

import "time"

// Clock is an interface for obtaining monotonic time. The abstraction lets
// rate limiters and timeouts be tested deterministically.
type Clock interface {
	// Now returns the current time. Implementations must return
	// monotonically increasing values.
	Now() time.Time
}

// MonotonicClock is a Clock backed by the system clock. Go's time.Now()
// carries a monotonic reading, so elapsed-time math is immune to wall-clock
// adjustments.
type MonotonicClock struct{}

// Now returns the current system time.
func (MonotonicClock) Now() time.Time {
	return time.Now()
}

// MockClock is a Clock for tests with manually advanced time. Not safe for
// concurrent use.
type MockClock struct {
	current time.Time
}

// NewMockClock creates a MockClock starting at t, or at a fixed non-zero
// default when t is the zero time.
func NewMockClock(t time.Time) *MockClock {
	if t.IsZero() {
		t = time.Unix(1700000000, 0)
	}
	return &MockClock{current: t}
}

// Now returns the mock clock's current time.
func (m *MockClock) Now() time.Time {
	return m.current
}

// Advance moves the clock forward by d. Panics if d is negative.
func (m *MockClock) Advance(d time.Duration) {
	if d < 0 {
		panic("MockClock.Advance: duration must be non-negative")
	}
	m.current = m.current.Add(d)
}
