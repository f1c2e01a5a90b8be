// Package clock abstracts the wall clock so time-sensitive ledger rules
// (weekend, check-in windows, month rollover, claimable periods) can be
// driven by a synthetic clock in tests.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time. Production code injects Real();
// tests inject Fake() and move time explicitly.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Real returns a Clock backed by time.Now, in UTC.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now().UTC() }

// FakeClock is a deterministic Clock. Time stands still until Set or
// Advance is called. Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// Fake returns a FakeClock initialized to the given time.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Advance moves the clock forward by d.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Set jumps the clock to t. Moving backwards is allowed; the ledger
// makes no monotonicity assumption about the clock itself.
func (f *FakeClock) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}
