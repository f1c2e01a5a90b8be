package payroll

import (
	"time"
)

const (
	windowCheckIn  = "check-in"
	windowCheckOut = "check-out"
)

// TimeWindow is a wall-clock target with a symmetric tolerance. A time
// t is inside the window when |t - target| <= Tolerance, where target is
// Hour:Minute:Second on t's own calendar day in the ledger location.
type TimeWindow struct {
	Hour      int           `json:"hour" yaml:"hour"`
	Minute    int           `json:"minute" yaml:"minute"`
	Second    int           `json:"second" yaml:"second"`
	Tolerance time.Duration `json:"tolerance" yaml:"tolerance"`
}

func (w TimeWindow) Valid() bool {
	return w.Hour >= 0 && w.Hour < 24 &&
		w.Minute >= 0 && w.Minute < 60 &&
		w.Second >= 0 && w.Second < 60 &&
		w.Tolerance >= 0
}

// Target returns the window's target instant on t's day in loc.
func (w TimeWindow) Target(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), w.Hour, w.Minute, w.Second, 0, loc)
}

// Contains reports whether t falls inside the window. Both edges are inclusive.
func (w TimeWindow) Contains(t time.Time, loc *time.Location) bool {
	diff := t.Sub(w.Target(t, loc))
	if diff < 0 {
		diff = -diff
	}
	return diff <= w.Tolerance
}

func (w TimeWindow) check(name string, t time.Time, loc *time.Location) error {
	if w.Contains(t, loc) {
		return nil
	}
	return &WindowError{Window: name, At: t, Target: w.Target(t, loc), Tolerance: w.Tolerance}
}

// IsWeekend reports whether t is a Saturday or Sunday in loc.
func IsWeekend(t time.Time, loc *time.Location) bool {
	wd := t.In(loc).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
