// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/viewmux/render"
)

// ErrDestroyed is returned by operations on a destroyed element.
var ErrDestroyed = errors.New("surface: element destroyed")

// Canvas is a static surface holding a backend snapshot.
//
// The backing bitmap is sized to the render resolution; the display size
// is the resolution the host shows it at, which differs on HiDPI screens.
type Canvas struct {
	node
	res       render.Resolution
	display   render.Resolution
	bitmap    *image.RGBA
	paints    int
	destroyed bool
}

// NewCanvas allocates a canvas at render resolution res.
func NewCanvas(res render.Resolution) *Canvas {
	c := &Canvas{}
	c.Resize(res)
	return c
}

// Kind returns KindCanvas.
func (c *Canvas) Kind() Kind { return KindCanvas }

// Resolution returns the render resolution.
func (c *Canvas) Resolution() render.Resolution { return c.res }

// DisplaySize returns the resolution the canvas is shown at.
func (c *Canvas) DisplaySize() render.Resolution { return c.display }

// SetDisplaySize sets the resolution the canvas is shown at.
func (c *Canvas) SetDisplaySize(res render.Resolution) { c.display = res }

// Resize reallocates the bitmap if res differs from the current render
// resolution. It reports whether anything changed.
func (c *Canvas) Resize(res render.Resolution) bool {
	if c.bitmap != nil && res == c.res {
		return false
	}
	c.res = res
	w, h := max(res.Width, 0), max(res.Height, 0)
	c.bitmap = image.NewRGBA(image.Rect(0, 0, w, h))
	return true
}

// Paint copies img into the canvas. img must match the render resolution.
func (c *Canvas) Paint(img *image.RGBA) error {
	if c.destroyed {
		return ErrDestroyed
	}
	b := img.Bounds()
	if b.Dx() != c.res.Width || b.Dy() != c.res.Height {
		return fmt.Errorf("surface: paint %dx%d into %s canvas", b.Dx(), b.Dy(), c.res)
	}
	for y := 0; y < c.res.Height; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(c.bitmap.Pix[y*c.bitmap.Stride:], img.Pix[off:off+c.res.Width*4])
	}
	c.paints++
	return nil
}

// Paints returns how many snapshots were painted.
func (c *Canvas) Paints() int { return c.paints }

// Bitmap returns the backing bitmap. It is nil after Destroy.
func (c *Canvas) Bitmap() *image.RGBA { return c.bitmap }

// Destroy detaches the canvas and drops its bitmap.
func (c *Canvas) Destroy() {
	Detach(c)
	c.bitmap = nil
	c.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (c *Canvas) Destroyed() bool { return c.destroyed }
