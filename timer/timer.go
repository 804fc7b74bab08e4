// Package timer wraps time.Timer with the one-shot/periodic,
// fire-and-call semantics every FSM in this module needs: BGP's
// ConnectRetry/Hold/Keepalive/IdleHold timers, IS-IS's Hello/CSNP/SRM/
// SSN timers, and OSPF's Hello/wait/inactivity timers are all built on
// this type.
package timer

import "time"

// Timer is a cancellable, resettable wrapper around time.AfterFunc.
type Timer struct {
	timer    *time.Timer
	interval time.Duration
	running  bool
	periodic bool
	fn       func()
}

// New creates a one-shot timer that calls f after d elapses.
func New(d time.Duration, f func()) *Timer {
	t := &Timer{interval: d, running: true, fn: f}
	t.timer = time.AfterFunc(d, t.fire)
	return t
}

// NewPeriodic creates a timer that calls f every d until Stop is
// called. Unlike time.Ticker, f runs via AfterFunc so a slow handler
// does not cause overlapping calls to pile up.
func NewPeriodic(d time.Duration, f func()) *Timer {
	t := &Timer{interval: d, running: true, periodic: true, fn: f}
	t.timer = time.AfterFunc(d, t.fire)
	return t
}

func (t *Timer) fire() {
	t.running = t.periodic
	t.fn()
	if t.periodic {
		t.timer.Reset(t.interval)
	}
}

// Reset restarts the timer with a new interval. It is legal to call
// Reset after the timer has fired (e.g. refreshing the BGP hold timer
// on every KEEPALIVE/UPDATE).
func (t *Timer) Reset(d time.Duration) {
	t.timer.Stop()
	t.interval = d
	t.running = true
	t.timer.Reset(d)
}

// Stop cancels the timer. Safe to call more than once.
func (t *Timer) Stop() {
	t.timer.Stop()
	t.running = false
}

// Running reports whether the timer is currently counting down.
func (t *Timer) Running() bool {
	return t.running
}

// Interval returns the timer's current configured period.
func (t *Timer) Interval() time.Duration {
	return t.interval
}
