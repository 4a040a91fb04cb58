// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"errors"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestTargetString(t *testing.T) {
	tests := []struct {
		target Target
		want   string
	}{
		{Snapshot, "snapshot"},
		{Realtime, "realtime"},
		{Target(7), "target(7)"},
	}
	for _, tt := range tests {
		if got := tt.target.String(); got != tt.want {
			t.Errorf("Target(%d).String() = %q, want %q", int(tt.target), got, tt.want)
		}
	}
}

func TestBitmapFromPixels(t *testing.T) {
	// Two pixels: opaque red then half-transparent blue, in RGBA order.
	rgba := []byte{255, 0, 0, 255, 0, 0, 255, 128}
	bgra := []byte{0, 0, 255, 255, 255, 0, 0, 128}
	res := Resolution{Width: 2, Height: 1}

	tests := []struct {
		name   string
		pix    []byte
		format gputypes.TextureFormat
	}{
		{"rgba", rgba, gputypes.TextureFormatRGBA8Unorm},
		{"rgba srgb", rgba, gputypes.TextureFormatRGBA8UnormSrgb},
		{"undefined reads as rgba", rgba, gputypes.TextureFormatUndefined},
		{"bgra swizzles", bgra, gputypes.TextureFormatBGRA8Unorm},
		{"bgra srgb swizzles", bgra, gputypes.TextureFormatBGRA8UnormSrgb},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := BitmapFromPixels(tt.pix, res, tt.format)
			if err != nil {
				t.Fatalf("BitmapFromPixels() error = %v", err)
			}
			if got := img.RGBAAt(0, 0); got != (color.RGBA{255, 0, 0, 255}) {
				t.Errorf("pixel 0 = %v, want red", got)
			}
			if got := img.RGBAAt(1, 0); got != (color.RGBA{0, 0, 255, 128}) {
				t.Errorf("pixel 1 = %v, want blue", got)
			}
		})
	}
}

func TestBitmapFromPixelsDoesNotAlias(t *testing.T) {
	pix := []byte{1, 2, 3, 4}
	img, err := BitmapFromPixels(pix, Resolution{1, 1}, gputypes.TextureFormatRGBA8Unorm)
	if err != nil {
		t.Fatal(err)
	}
	pix[0] = 99
	if img.Pix[0] != 1 {
		t.Error("bitmap must copy the backend buffer")
	}
}

func TestBitmapFromPixelsErrors(t *testing.T) {
	if _, err := BitmapFromPixels(make([]byte, 4), Resolution{2, 2}, gputypes.TextureFormatRGBA8Unorm); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("short buffer error = %v, want ErrShortBuffer", err)
	}
	if _, err := BitmapFromPixels(make([]byte, 16), Resolution{2, 2}, gputypes.TextureFormatR32Float); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("float format error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := BitmapFromPixels(nil, Resolution{}, gputypes.TextureFormatRGBA8Unorm); err == nil {
		t.Error("empty resolution should fail")
	}
}
