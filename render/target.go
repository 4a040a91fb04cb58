// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
)

// Target is one of the backend's fixed render-target slots.
type Target int

const (
	// Snapshot is the slot rendered and read back into static canvases.
	Snapshot Target = 0

	// Realtime is the slot presented directly to the shared live surface.
	Realtime Target = 1
)

// String returns the slot name.
func (t Target) String() string {
	switch t {
	case Snapshot:
		return "snapshot"
	case Realtime:
		return "realtime"
	default:
		return fmt.Sprintf("target(%d)", int(t))
	}
}

// Pixel buffer errors.
var (
	// ErrUnsupportedFormat is returned for formats that are not 8-bit RGBA or BGRA.
	ErrUnsupportedFormat = errors.New("render: unsupported pixel format")

	// ErrShortBuffer is returned when a buffer holds fewer bytes than the
	// resolution requires.
	ErrShortBuffer = errors.New("render: pixel buffer too small")
)

// BitmapFromPixels copies a tightly packed pixel buffer into a new RGBA
// image. TextureFormatUndefined is read as RGBA8. BGRA formats are swizzled.
func BitmapFromPixels(pix []byte, res Resolution, format gputypes.TextureFormat) (*image.RGBA, error) {
	if res.Empty() {
		return nil, fmt.Errorf("render: empty bitmap resolution %s", res)
	}

	swap := false
	switch format {
	case gputypes.TextureFormatUndefined,
		gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureFormatRGBA8UnormSrgb:
	case gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatBGRA8UnormSrgb:
		swap = true
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	need := res.Width * res.Height * 4
	if len(pix) < need {
		return nil, fmt.Errorf("%w: have %d bytes, need %d for %s", ErrShortBuffer, len(pix), need, res)
	}

	img := image.NewRGBA(image.Rect(0, 0, res.Width, res.Height))
	copy(img.Pix, pix[:need])
	if swap {
		for i := 0; i < need; i += 4 {
			img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		}
	}
	return img, nil
}
