// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Command names a backend command.
type Command string

// Backend commands.
const (
	CmdInit          Command = "init"
	CmdLoadScene     Command = "loadScene"
	CmdRender        Command = "render"
	CmdPresent       Command = "present"
	CmdGetPixels     Command = "getPixels"
	CmdFreeResources Command = "freeResources"
)

// TargetDesc describes the render target of a render command.
type TargetDesc struct {
	TargetIndex int     `json:"targetIndex"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Samples     int     `json:"samples,omitempty"`
	PixelScale  float64 `json:"pixelScale,omitempty"`
}

// Tiers selects the resource tiers released by freeResources.
type Tiers struct {
	Targets bool `json:"targets,omitempty"`
	Scenes  bool `json:"scenes,omitempty"`
	Globals bool `json:"globals,omitempty"`
}

// String lists the selected tiers.
func (t Tiers) String() string {
	s := ""
	add := func(on bool, name string) {
		if !on {
			return
		}
		if s != "" {
			s += "+"
		}
		s += name
	}
	add(t.Targets, "targets")
	add(t.Scenes, "scenes")
	add(t.Globals, "globals")
	if s == "" {
		return "none"
	}
	return s
}

// Request is the wire form of every command. Fields that a command does
// not use are left zero and omitted.
type Request struct {
	Cmd Command `json:"cmd"`

	// loadScene
	Name string `json:"name,omitempty"`
	Data []byte `json:"data,omitempty"`

	// render
	Target *TargetDesc     `json:"target,omitempty"`
	Desc   json.RawMessage `json:"desc,omitempty"`

	// present, getPixels
	TargetIndex int `json:"targetIndex,omitempty"`
	Width       int `json:"width,omitempty"`
	Height      int `json:"height,omitempty"`

	// freeResources
	Targets bool `json:"targets,omitempty"`
	Scenes  bool `json:"scenes,omitempty"`
	Globals bool `json:"globals,omitempty"`
}

// Tiers returns the tiers selected by a freeResources request.
func (r *Request) Tiers() Tiers {
	return Tiers{Targets: r.Targets, Scenes: r.Scenes, Globals: r.Globals}
}

// Response is the wire form of every reply.
type Response struct {
	// Error is set when the backend rejected the command.
	Error string `json:"error,omitempty"`

	// Scene is the scene info returned by loadScene. It may be JSON null.
	Scene json.RawMessage `json:"scene,omitempty"`

	// DataPointer locates the pixel buffer returned by getPixels.
	DataPointer uint64 `json:"dataPointer,omitempty"`

	// Format is the pixel format of the getPixels buffer. Undefined means
	// RGBA8.
	Format gputypes.TextureFormat `json:"format,omitempty"`
}

// Error is a backend error response.
type Error struct {
	Cmd     Command
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc: %s: %s", e.Cmd, e.Message)
}

// Pixels is a pixel buffer read back from a render target.
type Pixels struct {
	Data   []byte
	Width  int
	Height int
	Format gputypes.TextureFormat
}
