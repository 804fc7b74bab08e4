package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	var ran atomic.Bool
	ts := New(50*time.Millisecond, func() { ran.Store(true) })
	if !ts.Running() {
		t.Errorf("expected timer to be running but it's not")
	}
	time.Sleep(100 * time.Millisecond)
	if !ran.Load() {
		t.Errorf("timer did not call our function")
	}
}

func TestReset(t *testing.T) {
	var ran atomic.Bool
	ts := New(80*time.Millisecond, func() { ran.Store(true) })
	time.Sleep(40 * time.Millisecond)
	ts.Reset(80 * time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	if ran.Load() {
		t.Errorf("timer called our function but it shouldn't have yet")
	}
	time.Sleep(60 * time.Millisecond)
	if !ran.Load() {
		t.Errorf("timer did not call our function but should have")
	}
}

func TestStop(t *testing.T) {
	var ran atomic.Bool
	ts := New(50*time.Millisecond, func() { ran.Store(true) })
	ts.Stop()
	if ts.Running() {
		t.Errorf("expected timer to be stopped but it's not")
	}
	time.Sleep(100 * time.Millisecond)
	if ran.Load() {
		t.Errorf("timer called our function but it shouldn't have")
	}
}

func TestRunning(t *testing.T) {
	ts := New(50*time.Millisecond, func() {})
	if !ts.Running() {
		t.Errorf("expected timer to be running but it's not")
	}
	ts.Stop()
	if ts.Running() {
		t.Errorf("expected timer to be stopped but it's not")
	}
}

func TestPeriodic(t *testing.T) {
	var count atomic.Int32
	ts := NewPeriodic(20*time.Millisecond, func() { count.Add(1) })
	time.Sleep(110 * time.Millisecond)
	ts.Stop()
	if count.Load() < 3 {
		t.Errorf("expected at least 3 periodic fires, got %d", count.Load())
	}
}
