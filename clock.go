package viewmux

import "time"

// Clock drives the scheduler: a per-frame callback for frame ticks and
// timers for idle ticks. Callbacks run on their own goroutine.
type Clock interface {
	Now() time.Time

	// AfterFrame calls fn on the next display frame.
	AfterFrame(fn func()) Timer

	// AfterFunc calls fn after d.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a pending clock callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the
	// call stopped it.
	Stop() bool
}

// SystemClock returns a Clock on wall time that treats every frame
// interval as a display frame.
func SystemClock(frame time.Duration) Clock {
	return systemClock{frame: frame}
}

type systemClock struct {
	frame time.Duration
}

func (systemClock) Now() time.Time { return time.Now() }

func (c systemClock) AfterFrame(fn func()) Timer {
	return time.AfterFunc(c.frame, fn)
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
