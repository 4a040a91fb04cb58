// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rpc

import "context"

// Backend is the native render service.
//
// Setup creates the rendering context and must be called before the first
// command, and again after Destroy or a context loss. Call executes one
// encoded [Request] and returns the encoded [Response].
type Backend interface {
	Setup() error
	Destroy() error
	ContextLost() bool
	Call(ctx context.Context, req []byte) ([]byte, error)

	// Memory returns size bytes of backend memory starting at ptr. The
	// slice is only valid until the next Call.
	Memory(ptr uint64, size int) ([]byte, error)
}

// ContextLoser is implemented by backends that can force a context loss
// signal after their globals are freed.
type ContextLoser interface {
	LoseContext()
}

// Fence is a GPU sync object.
type Fence interface {
	// Signaled reports whether all commands issued before the fence have
	// completed.
	Signaled() bool

	// Delete releases the fence.
	Delete()
}

// Fencer is implemented by backends that expose fence sync. FenceSync
// returns false if no fence could be created, in which case callers
// proceed without waiting.
type Fencer interface {
	FenceSync() (Fence, bool)
}
