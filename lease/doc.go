// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package lease implements cooperative mutual exclusion over shared
// resource keys.
//
// A [Manager] hands out at most one [Lease] per key. Operations that find
// their key taken are not blocked on a mutex; they are re-attempted once per
// scheduler tick through the [Runner] until the key frees up. This mirrors
// the single-threaded scheduling model of the viewport multiplexer: all
// manager state is guarded by the runner's lock, and suspension happens only
// while waiting for a lease or for the backend.
//
// Only mutual exclusion is guaranteed. Waiters are retried in registration
// order on every tick, but a key released between ticks may be taken by a
// fresh acquisition first.
//
// Example:
//
//	targets := lease.NewManager[int]("target", runner, logger)
//	f := lease.Acquire(targets, 0, func(l lease.Lease[int]) (*image.RGBA, error) {
//	    return snapshot(l.Key)
//	})
//	img, err := f.Result()
package lease
