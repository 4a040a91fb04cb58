// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package rpctest provides an in-memory render backend that records every
// command it receives.
package rpctest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/viewmux/rpc"
)

// ErrNotSetUp is returned by Call before Setup or after Destroy.
var ErrNotSetUp = errors.New("rpctest: backend not set up")

// memBase is the data pointer of the pixel buffer.
const memBase = 0x1000

// Call is one recorded command.
type Call struct {
	At  time.Time
	Req rpc.Request
}

// Backend is a recording rpc.Backend. The zero value is not usable; use New.
type Backend struct {
	mu sync.Mutex

	// Now timestamps recorded calls.
	Now func() time.Time

	// Hook, if set, is called with every request before it is answered,
	// without the backend lock held.
	Hook func(rpc.Request)

	// SceneInfo builds the loadScene answer. The default returns
	// {"name": name}. Returning nil answers JSON null.
	SceneInfo func(name string) json.RawMessage

	// Format is reported for getPixels buffers.
	Format gputypes.TextureFormat

	// Fill is the RGBA value written to every read-back pixel.
	Fill [4]byte

	// FencePolls is the number of Signaled calls a fence answers false
	// before it signals.
	FencePolls int

	calls    []Call
	errs     map[rpc.Command]string
	mem      []byte
	ready    bool
	lost     bool
	setups   int
	destroys int
	losses   int
	fences   int
}

// New returns a backend that needs Setup before use.
func New() *Backend {
	return &Backend{
		Now:    time.Now,
		Format: gputypes.TextureFormatRGBA8Unorm,
		Fill:   [4]byte{0x40, 0x80, 0xc0, 0xff},
		errs:   make(map[rpc.Command]string),
	}
}

var (
	_ rpc.Backend      = (*Backend)(nil)
	_ rpc.ContextLoser = (*Backend)(nil)
	_ rpc.Fencer       = (*Backend)(nil)
)

// Setup creates the context and clears any context loss.
func (b *Backend) Setup() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready = true
	b.lost = false
	b.setups++
	return nil
}

// Destroy tears down the context.
func (b *Backend) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready = false
	b.destroys++
	return nil
}

// ContextLost reports a simulated context loss.
func (b *Backend) ContextLost() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lost
}

// LoseContext simulates a context loss.
func (b *Backend) LoseContext() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lost = true
	b.ready = false
	b.losses++
}

// FenceSync returns a fence that signals after FencePolls polls.
func (b *Backend) FenceSync() (rpc.Fence, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fences++
	return &fence{left: b.FencePolls}, true
}

// SetError makes every subsequent cmd fail with msg. An empty msg clears it.
func (b *Backend) SetError(cmd rpc.Command, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg == "" {
		delete(b.errs, cmd)
		return
	}
	b.errs[cmd] = msg
}

// Call answers one encoded request.
func (b *Backend) Call(_ context.Context, body []byte) ([]byte, error) {
	var req rpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("rpctest: bad request: %w", err)
	}
	if hook := b.Hook; hook != nil {
		hook(req)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	b.calls = append(b.calls, Call{At: now(), Req: req})

	if !b.ready {
		return nil, ErrNotSetUp
	}
	if msg, ok := b.errs[req.Cmd]; ok {
		return json.Marshal(rpc.Response{Error: msg})
	}

	var resp rpc.Response
	switch req.Cmd {
	case rpc.CmdLoadScene:
		info := json.RawMessage(fmt.Sprintf(`{"name":%q}`, req.Name))
		if b.SceneInfo != nil {
			info = b.SceneInfo(req.Name)
		}
		if info == nil {
			info = json.RawMessage("null")
		}
		resp.Scene = info
	case rpc.CmdGetPixels:
		n := req.Width * req.Height * 4
		if cap(b.mem) < n {
			b.mem = make([]byte, n)
		}
		b.mem = b.mem[:n]
		for i := 0; i < n; i += 4 {
			copy(b.mem[i:i+4], b.Fill[:])
		}
		resp.DataPointer = memBase
		resp.Format = b.Format
	case rpc.CmdFreeResources:
		if req.Globals {
			b.ready = false
		}
	}
	return json.Marshal(resp)
}

// Memory returns the last getPixels buffer.
func (b *Backend) Memory(ptr uint64, size int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ptr != memBase || size > len(b.mem) {
		return nil, fmt.Errorf("rpctest: bad memory range %#x+%d", ptr, size)
	}
	return b.mem[:size], nil
}

// Calls returns a copy of the recorded calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Commands returns the recorded command names in order.
func (b *Backend) Commands() []rpc.Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	cmds := make([]rpc.Command, len(b.calls))
	for i, c := range b.calls {
		cmds[i] = c.Req.Cmd
	}
	return cmds
}

// Count returns how many times cmd was received.
func (b *Backend) Count(cmd rpc.Command) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Req.Cmd == cmd {
			n++
		}
	}
	return n
}

// Reset forgets the recorded calls.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// Setups returns how many times Setup was called.
func (b *Backend) Setups() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.setups
}

// Destroys returns how many times Destroy was called.
func (b *Backend) Destroys() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroys
}

// Losses returns how many times LoseContext was called.
func (b *Backend) Losses() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.losses
}

// Fences returns how many fences were created.
func (b *Backend) Fences() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fences
}

type fence struct {
	mu      sync.Mutex
	left    int
	deleted bool
}

func (f *fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.left > 0 {
		f.left--
		return false
	}
	return true
}

func (f *fence) Delete() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = true
}
