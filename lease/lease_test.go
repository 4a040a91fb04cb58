// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package lease

import (
	"errors"
	"sync"
	"testing"
)

// testRunner serializes operations behind mu and runs polls on tick.
type testRunner struct {
	mu    sync.Mutex
	polls []func() bool
	wg    sync.WaitGroup
}

func (r *testRunner) Go(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		fn()
	}()
}

func (r *testRunner) Poll(fn func() bool) {
	r.polls = append(r.polls, fn)
}

func (r *testRunner) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	polls := r.polls
	r.polls = nil
	var keep []func() bool
	for _, fn := range polls {
		if fn() {
			keep = append(keep, fn)
		}
	}
	r.polls = append(keep, r.polls...)
}

// suspend releases the runner lock until gate is closed, the way an
// operation yields while waiting on the backend.
func (r *testRunner) suspend(gate <-chan struct{}) {
	r.mu.Unlock()
	<-gate
	r.mu.Lock()
}

func acquireLocked[T any](r *testRunner, m *Manager[int], key int, op func(Lease[int]) (T, error)) *Future[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Acquire(m, key, op)
}

func TestAcquireFreeKeyRunsImmediately(t *testing.T) {
	r := &testRunner{}
	m := NewManager[int]("target", r, nil)

	f := acquireLocked(r, m, 0, func(l Lease[int]) (int, error) {
		if l.Key != 0 {
			t.Errorf("lease key = %d, want 0", l.Key)
		}
		return 42, nil
	})

	v, err := f.Result()
	if err != nil || v != 42 {
		t.Fatalf("Result() = %d, %v, want 42, nil", v, err)
	}
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Held(0) {
		t.Error("lease should be released after the operation returns")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestAcquireQueuesUntilReleased(t *testing.T) {
	r := &testRunner{}
	m := NewManager[int]("target", r, nil)

	gate := make(chan struct{})
	var (
		inside    int
		maxInside int
	)
	op := func(Lease[int]) (int, error) {
		inside++
		if inside > maxInside {
			maxInside = inside
		}
		r.suspend(gate)
		inside--
		return inside, nil
	}

	first := acquireLocked(r, m, 1, op)
	second := acquireLocked(r, m, 1, op)

	r.mu.Lock()
	if got := m.Waiting(); got != 1 {
		t.Errorf("Waiting() = %d, want 1", got)
	}
	r.mu.Unlock()

	// The key is still held, so ticking must not start the second op.
	r.tick()
	if second.Settled() {
		t.Fatal("second acquisition settled while the key was held")
	}

	close(gate)
	if _, err := first.Result(); err != nil {
		t.Fatalf("first Result() error = %v", err)
	}

	r.tick()
	if _, err := second.Result(); err != nil {
		t.Fatalf("second Result() error = %v", err)
	}
	r.wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Waiting() != 0 || m.Held(1) {
		t.Errorf("manager not drained: waiting=%d held=%v", m.Waiting(), m.Held(1))
	}
}

func TestAcquireDistinctKeysDoNotContend(t *testing.T) {
	r := &testRunner{}
	m := NewManager[int]("target", r, nil)

	gate := make(chan struct{})
	a := acquireLocked(r, m, 0, func(Lease[int]) (string, error) {
		r.suspend(gate)
		return "a", nil
	})
	b := acquireLocked(r, m, 1, func(Lease[int]) (string, error) {
		return "b", nil
	})

	if v, _ := b.Result(); v != "b" {
		t.Errorf("b = %q, want b", v)
	}
	close(gate)
	if v, _ := a.Result(); v != "a" {
		t.Errorf("a = %q, want a", v)
	}
	r.wg.Wait()
}

func TestAcquireReleasesOnError(t *testing.T) {
	r := &testRunner{}
	m := NewManager[int]("viewer", r, nil)
	boom := errors.New("render failed")

	f := acquireLocked(r, m, 3, func(Lease[int]) (struct{}, error) {
		return struct{}{}, boom
	})
	if _, err := f.Result(); !errors.Is(err, boom) {
		t.Fatalf("Result() error = %v, want %v", err, boom)
	}
	r.wg.Wait()

	// A failed operation must not keep the key.
	next := acquireLocked(r, m, 3, func(Lease[int]) (int, error) { return 1, nil })
	if v, err := next.Result(); err != nil || v != 1 {
		t.Fatalf("next Result() = %d, %v", v, err)
	}
	r.wg.Wait()
}

func TestLeaseTokensAreUnique(t *testing.T) {
	r := &testRunner{}
	m := NewManager[int]("target", r, nil)

	var tokens []string
	for range 3 {
		f := acquireLocked(r, m, 0, func(l Lease[int]) (string, error) {
			return l.Token.String(), nil
		})
		tok, _ := f.Result()
		r.wg.Wait()
		tokens = append(tokens, tok)
	}
	seen := map[string]bool{}
	for _, tok := range tokens {
		if seen[tok] {
			t.Errorf("duplicate lease token %s", tok)
		}
		seen[tok] = true
	}
}

func TestAbortSettlesQueued(t *testing.T) {
	r := &testRunner{}
	m := NewManager[int]("viewer", r, nil)

	gate := make(chan struct{})
	running := acquireLocked(r, m, 0, func(Lease[int]) (int, error) {
		r.suspend(gate)
		return 1, nil
	})
	queued := acquireLocked(r, m, 0, func(Lease[int]) (int, error) {
		t.Error("aborted operation must not run")
		return 2, nil
	})

	closed := errors.New("closed")
	r.mu.Lock()
	m.Abort(closed)
	r.mu.Unlock()

	if _, err := queued.Result(); !errors.Is(err, closed) {
		t.Errorf("queued Result() error = %v, want %v", err, closed)
	}

	close(gate)
	if v, err := running.Result(); err != nil || v != 1 {
		t.Errorf("running Result() = %d, %v", v, err)
	}
	r.tick()
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.polls) != 0 {
		t.Errorf("aborted acquisition still polling: %d callbacks", len(r.polls))
	}
}

func TestAbortDefaultError(t *testing.T) {
	r := &testRunner{}
	m := NewManager[int]("viewer", r, nil)

	gate := make(chan struct{})
	defer close(gate)
	acquireLocked(r, m, 0, func(Lease[int]) (int, error) {
		r.suspend(gate)
		return 0, nil
	})
	queued := acquireLocked(r, m, 0, func(Lease[int]) (int, error) { return 0, nil })

	r.mu.Lock()
	m.Abort(nil)
	r.mu.Unlock()

	if _, err := queued.Result(); !errors.Is(err, ErrAborted) {
		t.Errorf("Result() error = %v, want ErrAborted", err)
	}
}

func TestWhen(t *testing.T) {
	r := &testRunner{}

	r.mu.Lock()
	ready := Resolved(struct{}{}, nil)
	immediate := When(r, func() bool { return true })
	r.mu.Unlock()
	if !ready.Settled() || !immediate.Settled() {
		t.Fatal("When with a true predicate should settle immediately")
	}

	signaled := false
	r.mu.Lock()
	f := When(r, func() bool { return signaled })
	r.mu.Unlock()

	r.tick()
	if f.Settled() {
		t.Fatal("When settled before the predicate held")
	}

	r.mu.Lock()
	signaled = true
	r.mu.Unlock()
	r.tick()
	if !f.Settled() {
		t.Fatal("When did not settle after the predicate held")
	}
}

func TestOnSettle(t *testing.T) {
	r := &testRunner{}
	m := NewManager[int]("target", r, nil)

	gate := make(chan struct{})
	r.mu.Lock()
	f := Acquire(m, 0, func(Lease[int]) (int, error) {
		r.suspend(gate)
		return 7, nil
	})
	calls := 0
	if !f.OnSettle(func() { calls++ }) {
		t.Error("OnSettle on a pending future should register")
	}
	r.mu.Unlock()

	close(gate)
	f.Result()
	r.wg.Wait()

	if calls != 1 {
		t.Errorf("hook calls = %d, want 1", calls)
	}
	if f.OnSettle(func() {}) {
		t.Error("OnSettle on a settled future should report false")
	}
}
