// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"math"

	"github.com/gogpu/gpucontext"
)

// Resolution is a width/height pair in pixels. Equality is exact.
type Resolution struct {
	Width  int
	Height int
}

// Empty reports whether the resolution has no area.
func (r Resolution) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Scale multiplies both dimensions by f, rounding to the nearest pixel.
func (r Resolution) Scale(f float64) Resolution {
	return Resolution{
		Width:  int(math.Round(float64(r.Width) * f)),
		Height: int(math.Round(float64(r.Height) * f)),
	}
}

// String returns "WxH".
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Policy derives render resolutions from display resolutions.
type Policy struct {
	// MaxPixelRatio caps the device pixel ratio used for static snapshots.
	// Zero means no cap.
	MaxPixelRatio float64

	// RealtimePixelRatio caps the device pixel ratio used by the realtime
	// slot. Zero or less is treated as 1.
	RealtimePixelRatio float64
}

// DefaultPolicy returns the policy used when none is configured: full
// device pixel ratio for snapshots, no supersampling for the realtime slot.
func DefaultPolicy() Policy {
	return Policy{MaxPixelRatio: 0, RealtimePixelRatio: 1}
}

// PixelRatio returns the scale factor applied to a display resolution.
// The device ratio is read from wp and never goes below 1.
func (p Policy) PixelRatio(wp gpucontext.WindowProvider, realtime bool) float64 {
	ratio := 1.0
	if wp != nil {
		ratio = math.Max(1, wp.ScaleFactor())
	}
	if p.MaxPixelRatio > 0 {
		ratio = math.Min(ratio, p.MaxPixelRatio)
	}
	if realtime {
		limit := p.RealtimePixelRatio
		if limit <= 0 {
			limit = 1
		}
		ratio = math.Max(1, math.Min(ratio, limit))
	}
	return ratio
}

// RenderResolution returns the resolution a viewer of the given display
// resolution renders at.
func (p Policy) RenderResolution(display Resolution, wp gpucontext.WindowProvider, realtime bool) Resolution {
	return display.Scale(p.PixelRatio(wp, realtime))
}

// PixelScale returns the ratio of render width to display width, the
// pixelScale field of a render request. A display with no width yields 1.
func PixelScale(renderRes, display Resolution) float64 {
	if display.Width <= 0 {
		return 1
	}
	return float64(renderRes.Width) / float64(display.Width)
}
