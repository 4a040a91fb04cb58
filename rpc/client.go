// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoBackend is returned by NewClient for a nil backend.
var ErrNoBackend = errors.New("rpc: no backend")

// Client encodes commands for a Backend. Calls are serialized: the backend
// is single-threaded and getPixels memory is only valid until the next call.
type Client struct {
	mu      sync.Mutex
	backend Backend
	log     *slog.Logger
}

// NewClient wraps b. A nil logger discards output.
func NewClient(b Backend, log *slog.Logger) (*Client, error) {
	if b == nil {
		return nil, ErrNoBackend
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Client{backend: b, log: log}, nil
}

// Backend returns the wrapped backend.
func (c *Client) Backend() Backend {
	return c.backend
}

func (c *Client) call(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode %s: %w", req.Cmd, err)
	}

	c.mu.Lock()
	out, err := c.backend.Call(ctx, body)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("rpc: %s: %w", req.Cmd, err)
	}

	var resp Response
	if len(bytes.TrimSpace(out)) > 0 {
		if err := json.Unmarshal(out, &resp); err != nil {
			return nil, fmt.Errorf("rpc: decode %s response: %w", req.Cmd, err)
		}
	}
	if resp.Error != "" {
		c.log.Warn("rpc: backend error", "cmd", req.Cmd, "error", resp.Error)
		return &resp, &Error{Cmd: req.Cmd, Message: resp.Error}
	}
	return &resp, nil
}

// Init (re)initializes backend globals.
func (c *Client) Init(ctx context.Context) error {
	_, err := c.call(ctx, &Request{Cmd: CmdInit})
	return err
}

// LoadScene asks the backend to parse data as scene name. The returned
// info is nil when the backend answers null.
func (c *Client) LoadScene(ctx context.Context, name string, data []byte) (json.RawMessage, error) {
	resp, err := c.call(ctx, &Request{Cmd: CmdLoadScene, Name: name, Data: data})
	if err != nil {
		return nil, err
	}
	if len(resp.Scene) == 0 || bytes.Equal(resp.Scene, []byte("null")) {
		return nil, nil
	}
	return resp.Scene, nil
}

// Render renders desc into the given target. desc is encoded with
// encoding/json.
func (c *Client) Render(ctx context.Context, target TargetDesc, desc any) error {
	raw, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("rpc: encode descriptor: %w", err)
	}
	_, err = c.call(ctx, &Request{Cmd: CmdRender, Target: &target, Desc: raw})
	return err
}

// Present shows a rendered target on the live surface.
func (c *Client) Present(ctx context.Context, target, width, height int) error {
	_, err := c.call(ctx, &Request{Cmd: CmdPresent, TargetIndex: target, Width: width, Height: height})
	return err
}

// GetPixels reads back width*height RGBA8 or BGRA8 pixels of target. The
// returned data is a copy.
func (c *Client) GetPixels(ctx context.Context, target, width, height int) (*Pixels, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := json.Marshal(&Request{Cmd: CmdGetPixels, TargetIndex: target, Width: width, Height: height})
	if err != nil {
		return nil, fmt.Errorf("rpc: encode getPixels: %w", err)
	}
	out, err := c.backend.Call(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("rpc: getPixels: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("rpc: decode getPixels response: %w", err)
	}
	if resp.Error != "" {
		c.log.Warn("rpc: backend error", "cmd", CmdGetPixels, "error", resp.Error)
		return nil, &Error{Cmd: CmdGetPixels, Message: resp.Error}
	}

	// Memory is only valid until the next call, so copy while still
	// holding the call lock.
	mem, err := c.backend.Memory(resp.DataPointer, width*height*4)
	if err != nil {
		return nil, fmt.Errorf("rpc: getPixels memory: %w", err)
	}
	return &Pixels{
		Data:   bytes.Clone(mem),
		Width:  width,
		Height: height,
		Format: resp.Format,
	}, nil
}

// FreeResources releases the selected tiers.
func (c *Client) FreeResources(ctx context.Context, tiers Tiers) error {
	c.log.Info("rpc: freeing backend resources", "tiers", tiers.String())
	_, err := c.call(ctx, &Request{
		Cmd:     CmdFreeResources,
		Targets: tiers.Targets,
		Scenes:  tiers.Scenes,
		Globals: tiers.Globals,
	})
	return err
}
