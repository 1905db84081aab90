package scheduler

import (
	"sync"
	"time"
)

// Clock defines an interface for getting the current time.
// This allows us to inject a fake time during unit tests.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the actual server system time.
type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now()
}

// MockClock implements Clock for testing specific scenarios.
// e.g., "the host went quiet 800ms ago"
type MockClock struct {
	mu       sync.Mutex
	MockTime time.Time
}

// NewMockClock starts a mock clock at t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{MockTime: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.MockTime
}

// Advance moves the mock time forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.MockTime = m.MockTime.Add(d)
	m.mu.Unlock()
}

// Set jumps the mock time to t.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	m.MockTime = t
	m.mu.Unlock()
}

// Millis returns c's time as Unix milliseconds, the unit every sync component works in.
func Millis(c Clock) int64 {
	return c.Now().UnixMilli()
}
