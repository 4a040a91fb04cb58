// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"testing"

	"github.com/gogpu/gpucontext"
)

func TestResolutionScale(t *testing.T) {
	tests := []struct {
		name string
		res  Resolution
		f    float64
		want Resolution
	}{
		{"identity", Resolution{640, 480}, 1, Resolution{640, 480}},
		{"retina", Resolution{640, 480}, 2, Resolution{1280, 960}},
		{"fractional rounds", Resolution{101, 33}, 1.5, Resolution{152, 50}},
		{"zero", Resolution{0, 0}, 3, Resolution{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Scale(tt.f); got != tt.want {
				t.Errorf("Scale(%v) = %v, want %v", tt.f, got, tt.want)
			}
		})
	}
}

func TestResolutionEmpty(t *testing.T) {
	if !(Resolution{}).Empty() {
		t.Error("zero resolution should be empty")
	}
	if !(Resolution{Width: 10}).Empty() {
		t.Error("zero height should be empty")
	}
	if (Resolution{Width: 1, Height: 1}).Empty() {
		t.Error("1x1 should not be empty")
	}
	if got := (Resolution{Width: 3, Height: 4}).String(); got != "3x4" {
		t.Errorf("String() = %q, want 3x4", got)
	}
}

func TestPolicyRenderResolution(t *testing.T) {
	display := Resolution{Width: 400, Height: 300}

	tests := []struct {
		name     string
		policy   Policy
		scale    float64
		realtime bool
		want     Resolution
	}{
		{"default snapshot hidpi", DefaultPolicy(), 2, false, Resolution{800, 600}},
		{"default realtime hidpi", DefaultPolicy(), 2, true, Resolution{400, 300}},
		{"low dpi never shrinks", DefaultPolicy(), 0.5, false, Resolution{400, 300}},
		{"snapshot cap", Policy{MaxPixelRatio: 1.5, RealtimePixelRatio: 1}, 3, false, Resolution{600, 450}},
		{"realtime cap above one", Policy{RealtimePixelRatio: 1.25}, 2, true, Resolution{500, 375}},
		{"realtime cap unset", Policy{}, 2, true, Resolution{400, 300}},
		{"realtime bounded by device", Policy{RealtimePixelRatio: 4}, 2, true, Resolution{800, 600}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wp := gpucontext.NullWindowProvider{W: 400, H: 300, SF: tt.scale}
			if got := tt.policy.RenderResolution(display, wp, tt.realtime); got != tt.want {
				t.Errorf("RenderResolution() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicyNilWindow(t *testing.T) {
	if got := DefaultPolicy().PixelRatio(nil, false); got != 1 {
		t.Errorf("PixelRatio(nil) = %v, want 1", got)
	}
}

func TestPixelScale(t *testing.T) {
	if got := PixelScale(Resolution{800, 600}, Resolution{400, 300}); got != 2 {
		t.Errorf("PixelScale = %v, want 2", got)
	}
	if got := PixelScale(Resolution{800, 600}, Resolution{}); got != 1 {
		t.Errorf("PixelScale with empty display = %v, want 1", got)
	}
}
