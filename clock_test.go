package viewmux

import (
	"slices"
	"sync"
	"testing"
	"time"
)

// manualClock is a Clock driven by the test. Frame callbacks run on frame
// and timers on advance, both on the calling goroutine.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	frames []*manualTimer
	timers []*manualTimer
}

type manualTimer struct {
	c    *manualClock
	at   time.Time
	fn   func()
	done bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFrame(fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, at: c.now, fn: fn}
	c.frames = append(c.frames, t)
	return t
}

func (c *manualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{c: c, at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// frame runs every pending frame callback and returns how many ran.
func (c *manualClock) frame() int {
	c.mu.Lock()
	var due []*manualTimer
	for _, t := range c.frames {
		if !t.done {
			t.done = true
			due = append(due, t)
		}
	}
	c.frames = nil
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
	return len(due)
}

// next pops the earliest live timer due at or before deadline.
func (c *manualClock) next(deadline time.Time) *manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timers = slices.DeleteFunc(c.timers, func(t *manualTimer) bool { return t.done })
	var first *manualTimer
	for _, t := range c.timers {
		if !t.at.After(deadline) && (first == nil || t.at.Before(first.at)) {
			first = t
		}
	}
	if first == nil {
		c.now = deadline
		return nil
	}
	first.done = true
	c.now = first.at
	return first
}

// advance moves time forward by d, firing timers in order. settle runs
// after every timer.
func (c *manualClock) advance(d time.Duration, settle func()) {
	deadline := c.Now().Add(d)
	for t := c.next(deadline); t != nil; t = c.next(deadline) {
		t.fn()
		settle()
	}
}

// pending returns the number of armed timers, frame callbacks included.
func (c *manualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range slices.Concat(c.frames, c.timers) {
		if !t.done {
			n++
		}
	}
	return n
}

func TestSystemClock(t *testing.T) {
	c := SystemClock(time.Millisecond)

	fired := make(chan struct{})
	c.AfterFrame(func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("AfterFrame callback did not run")
	}

	timer := c.AfterFunc(time.Hour, func() { t.Error("stopped timer fired") })
	if !timer.Stop() {
		t.Error("Stop() = false for a pending timer")
	}
	if timer.Stop() {
		t.Error("second Stop() = true")
	}
}

func TestManualClockOrdersTimers(t *testing.T) {
	c := newManualClock()
	start := c.Now()

	var got []int
	c.AfterFunc(300*time.Millisecond, func() { got = append(got, 3) })
	c.AfterFunc(100*time.Millisecond, func() { got = append(got, 1) })
	stopped := c.AfterFunc(200*time.Millisecond, func() { got = append(got, 2) })
	stopped.Stop()

	c.advance(time.Second, func() {})
	if want := []int{1, 3}; !slices.Equal(got, want) {
		t.Errorf("fired %v, want %v", got, want)
	}
	if d := c.Now().Sub(start); d != time.Second {
		t.Errorf("clock advanced %v, want 1s", d)
	}
	if n := c.pending(); n != 0 {
		t.Errorf("pending() = %d, want 0", n)
	}
}
