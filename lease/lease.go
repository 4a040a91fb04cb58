// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package lease

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// ErrAborted is settled into queued acquisitions by Abort when no more
// specific error is given.
var ErrAborted = errors.New("lease: acquisition aborted")

// Runner executes operations on behalf of a Manager.
//
// Go must run fn on a new goroutine with the runner's state lock held.
// Poll must call fn under the same lock once per scheduler tick until fn
// returns false. Acquire, Held, Abort and When must themselves be called
// with the lock held.
type Runner interface {
	Go(fn func())
	Poll(fn func() bool)
}

// Lease is the ownership token handed to a leased operation.
type Lease[K comparable] struct {
	Key   K
	Token uuid.UUID
}

// Manager grants at most one outstanding lease per key.
//
// Manager is not safe for concurrent use on its own; it relies on the
// Runner lock for serialization.
type Manager[K comparable] struct {
	name   string
	runner Runner
	log    *slog.Logger
	held   map[K]uuid.UUID
	queued []*pending
}

// pending is a queued acquisition.
type pending struct {
	started bool
	abort   func(error)
}

// NewManager creates a manager for one resource class. name only labels
// log records. A nil logger discards output.
func NewManager[K comparable](name string, r Runner, log *slog.Logger) *Manager[K] {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Manager[K]{
		name:   name,
		runner: r,
		log:    log,
		held:   make(map[K]uuid.UUID),
	}
}

// Held reports whether key is currently leased.
func (m *Manager[K]) Held(key K) bool {
	_, ok := m.held[key]
	return ok
}

// Len returns the number of outstanding leases.
func (m *Manager[K]) Len() int {
	return len(m.held)
}

// Waiting returns the number of queued acquisitions.
func (m *Manager[K]) Waiting() int {
	return len(m.queued)
}

// Abort settles every queued acquisition with err (ErrAborted if nil).
// Operations already running keep their leases until they return.
func (m *Manager[K]) Abort(err error) {
	if err == nil {
		err = ErrAborted
	}
	queued := m.queued
	m.queued = nil
	for _, p := range queued {
		p.abort(err)
	}
}

func (m *Manager[K]) release(key K, token uuid.UUID) {
	if m.held[key] == token {
		delete(m.held, key)
		m.log.Debug("lease released", "class", m.name, "key", key, "token", token)
	}
}

func (m *Manager[K]) dequeue(p *pending) {
	for i, q := range m.queued {
		if q == p {
			m.queued = append(m.queued[:i], m.queued[i+1:]...)
			return
		}
	}
}

// Acquire runs op under a lease on key and returns its future.
//
// If key is free, op starts immediately on a runner goroutine. Otherwise the
// acquisition is re-attempted on every tick until the key is released. The
// lease is released when op returns, whether it fails or not, before the
// future settles.
func Acquire[K comparable, T any](m *Manager[K], key K, op func(Lease[K]) (T, error)) *Future[T] {
	f := newFuture[T]()
	p := &pending{}

	try := func() bool {
		if p.started {
			return true
		}
		if m.Held(key) {
			return false
		}
		l := Lease[K]{Key: key, Token: uuid.New()}
		m.held[key] = l.Token
		p.started = true
		m.log.Debug("lease acquired", "class", m.name, "key", key, "token", l.Token)

		m.runner.Go(func() {
			var (
				v   T
				err error
			)
			func() {
				defer m.release(key, l.Token)
				v, err = op(l)
			}()
			f.settle(v, err)
		})
		return true
	}

	if try() {
		return f
	}

	p.abort = func(err error) {
		p.started = true
		var zero T
		f.settle(zero, err)
	}
	m.queued = append(m.queued, p)
	m.runner.Poll(func() bool {
		if !try() {
			return true
		}
		m.dequeue(p)
		return false
	})
	return f
}

// When returns a future that settles once pred reports true. pred is
// checked immediately and then once per tick.
func When(r Runner, pred func() bool) *Future[struct{}] {
	if pred() {
		return Resolved(struct{}{}, nil)
	}
	f := newFuture[struct{}]()
	r.Poll(func() bool {
		if !pred() {
			return true
		}
		f.settle(struct{}{}, nil)
		return false
	})
	return f
}
