// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package lease

// Future is the pending result of a leased operation.
//
// A Future settles exactly once. Settle hooks registered with OnSettle run
// under the runner lock, immediately before Done is closed.
type Future[T any] struct {
	done  chan struct{}
	val   T
	err   error
	hooks []func()
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns an already settled future.
func Resolved[T any](v T, err error) *Future[T] {
	f := newFuture[T]()
	f.settle(v, err)
	return f
}

func (f *Future[T]) settle(v T, err error) {
	if f.Settled() {
		return
	}
	f.val, f.err = v, err
	for _, h := range f.hooks {
		h()
	}
	f.hooks = nil
	close(f.done)
}

// Done returns a channel closed when the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has a result.
func (f *Future[T]) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result blocks until the future settles and returns its result.
// Never call Result while holding the runner lock: the operation that
// settles the future needs it.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}

// OnSettle registers fn to run when the future settles. It must be called
// with the runner lock held. It returns false, without registering, if the
// future has already settled.
func (f *Future[T]) OnSettle(fn func()) bool {
	if f.Settled() {
		return false
	}
	f.hooks = append(f.hooks, fn)
	return true
}
