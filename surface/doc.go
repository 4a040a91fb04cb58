// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface holds the visual elements a viewer shows and the host
// capability they are shown in.
//
// The host owns a [Display] for every on-screen viewport placeholder. The
// scheduler owns the elements placed in it:
//
//   - Canvas: a static surface holding the last snapshot read back from
//     the backend at render resolution
//   - Image: a frozen, compressed bitmap at display resolution that needs
//     no backend resources at all
//   - Live: the one shared surface the backend presents realtime frames to
//
// Elements remember their parent display. [Attach] moves an element
// between displays, detaching it from the previous one first.
//
// # Headless use
//
// [Placeholder] is an in-memory Display for tests and headless hosts:
//
//	d := surface.NewPlaceholder(render.Resolution{Width: 640, Height: 480})
//	c := surface.NewCanvas(render.Resolution{Width: 1280, Height: 960})
//	surface.Attach(d, c)
package surface
