// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/viewmux/rpc"
	"github.com/gogpu/viewmux/rpc/rpctest"
)

func newClient(t *testing.T) (*rpc.Client, *rpctest.Backend) {
	t.Helper()
	b := rpctest.New()
	if err := b.Setup(); err != nil {
		t.Fatal(err)
	}
	c, err := rpc.NewClient(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c, b
}

func TestNewClientNilBackend(t *testing.T) {
	if _, err := rpc.NewClient(nil, nil); !errors.Is(err, rpc.ErrNoBackend) {
		t.Errorf("NewClient(nil) error = %v, want ErrNoBackend", err)
	}
}

func TestClientCommands(t *testing.T) {
	c, b := newClient(t)
	ctx := context.Background()

	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	desc := map[string]any{"sceneName": "cube.fbx"}
	if err := c.Render(ctx, rpc.TargetDesc{TargetIndex: 1, Width: 64, Height: 32, Samples: 4, PixelScale: 2}, desc); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := c.Present(ctx, 1, 64, 32); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if err := c.FreeResources(ctx, rpc.Tiers{Targets: true}); err != nil {
		t.Fatalf("FreeResources: %v", err)
	}

	want := []rpc.Command{rpc.CmdInit, rpc.CmdRender, rpc.CmdPresent, rpc.CmdFreeResources}
	got := b.Commands()
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	calls := b.Calls()
	render := calls[1].Req
	if render.Target == nil || *render.Target != (rpc.TargetDesc{TargetIndex: 1, Width: 64, Height: 32, Samples: 4, PixelScale: 2}) {
		t.Errorf("render target = %+v", render.Target)
	}
	var gotDesc map[string]any
	if err := json.Unmarshal(render.Desc, &gotDesc); err != nil || gotDesc["sceneName"] != "cube.fbx" {
		t.Errorf("render desc = %s (%v)", render.Desc, err)
	}
	if p := calls[2].Req; p.TargetIndex != 1 || p.Width != 64 || p.Height != 32 {
		t.Errorf("present = %+v", p)
	}
	if tiers := calls[3].Req.Tiers(); tiers != (rpc.Tiers{Targets: true}) {
		t.Errorf("free tiers = %v", tiers)
	}
}

func TestClientLoadScene(t *testing.T) {
	c, b := newClient(t)
	ctx := context.Background()

	info, err := c.LoadScene(ctx, "cube.fbx", []byte("data"))
	if err != nil {
		t.Fatal(err)
	}
	if string(info) != `{"name":"cube.fbx"}` {
		t.Errorf("info = %s", info)
	}
	if got := b.Calls()[0].Req; got.Name != "cube.fbx" || string(got.Data) != "data" {
		t.Errorf("loadScene request = %+v", got)
	}

	b.SceneInfo = func(string) json.RawMessage { return nil }
	info, err = c.LoadScene(ctx, "empty.fbx", nil)
	if err != nil || info != nil {
		t.Errorf("null scene = %s, %v; want nil, nil", info, err)
	}
}

func TestClientErrorResponse(t *testing.T) {
	c, b := newClient(t)
	b.SetError(rpc.CmdRender, "no such scene")

	err := c.Render(context.Background(), rpc.TargetDesc{}, nil)
	var rerr *rpc.Error
	if !errors.As(err, &rerr) {
		t.Fatalf("error = %v, want *rpc.Error", err)
	}
	if rerr.Cmd != rpc.CmdRender || rerr.Message != "no such scene" {
		t.Errorf("error = %+v", rerr)
	}
	if rerr.Error() != "rpc: render: no such scene" {
		t.Errorf("Error() = %q", rerr.Error())
	}

	b.SetError(rpc.CmdRender, "")
	if err := c.Render(context.Background(), rpc.TargetDesc{}, nil); err != nil {
		t.Errorf("after clearing: %v", err)
	}
}

func TestClientTransportError(t *testing.T) {
	b := rpctest.New()
	c, err := rpc.NewClient(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Init(context.Background()); !errors.Is(err, rpctest.ErrNotSetUp) {
		t.Errorf("Init before Setup = %v, want ErrNotSetUp", err)
	}
}

func TestClientGetPixels(t *testing.T) {
	c, b := newClient(t)
	b.Format = gputypes.TextureFormatBGRA8Unorm
	b.Fill = [4]byte{1, 2, 3, 4}

	px, err := c.GetPixels(context.Background(), 0, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if px.Width != 3 || px.Height != 2 || len(px.Data) != 24 {
		t.Fatalf("pixels = %dx%d, %d bytes", px.Width, px.Height, len(px.Data))
	}
	if px.Format != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("format = %v", px.Format)
	}
	if px.Data[20] != 1 || px.Data[23] != 4 {
		t.Errorf("data tail = %v", px.Data[20:])
	}

	// The copy must survive the next read-back.
	b.Fill = [4]byte{9, 9, 9, 9}
	if _, err := c.GetPixels(context.Background(), 0, 3, 2); err != nil {
		t.Fatal(err)
	}
	if px.Data[0] != 1 {
		t.Error("pixels alias backend memory")
	}

	b.SetError(rpc.CmdGetPixels, "lost")
	if _, err := c.GetPixels(context.Background(), 0, 3, 2); err == nil {
		t.Error("expected getPixels error")
	}
}

func TestTiersString(t *testing.T) {
	tests := []struct {
		tiers rpc.Tiers
		want  string
	}{
		{rpc.Tiers{}, "none"},
		{rpc.Tiers{Targets: true}, "targets"},
		{rpc.Tiers{Scenes: true, Globals: true}, "scenes+globals"},
		{rpc.Tiers{Targets: true, Scenes: true, Globals: true}, "targets+scenes+globals"},
	}
	for _, tt := range tests {
		if got := tt.tiers.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.tiers, got, tt.want)
		}
	}
}
