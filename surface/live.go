// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import "github.com/gogpu/viewmux/render"

// Live is the single shared surface the backend presents realtime frames
// to. It moves between displays as the realtime slot changes hands.
type Live struct {
	node
	res       render.Resolution
	display   render.Resolution
	visible   bool
	presents  int
	destroyed bool
}

// NewLive creates a hidden live surface.
func NewLive() *Live {
	return &Live{}
}

// Kind returns KindLive.
func (l *Live) Kind() Kind { return KindLive }

// Resolution returns the drawing buffer resolution.
func (l *Live) Resolution() render.Resolution { return l.res }

// DisplaySize returns the resolution the surface is shown at.
func (l *Live) DisplaySize() render.Resolution { return l.display }

// SetDisplaySize sets the resolution the surface is shown at.
func (l *Live) SetDisplaySize(res render.Resolution) { l.display = res }

// Resize changes the drawing buffer resolution and reports whether it
// changed.
func (l *Live) Resize(res render.Resolution) bool {
	if res == l.res {
		return false
	}
	l.res = res
	return true
}

// Show makes the surface visible or hides it.
func (l *Live) Show(visible bool) { l.visible = visible }

// Visible reports whether the surface is shown.
func (l *Live) Visible() bool { return l.visible }

// Presented records a frame presented by the backend.
func (l *Live) Presented() { l.presents++ }

// Presents returns how many frames were presented.
func (l *Live) Presents() int { return l.presents }

// Destroy detaches and hides the surface.
func (l *Live) Destroy() {
	Detach(l)
	l.visible = false
	l.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (l *Live) Destroyed() bool { return l.destroyed }
