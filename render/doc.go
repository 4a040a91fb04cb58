// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render holds the pixel-level vocabulary shared by the viewport
// multiplexer and its rendering backend.
//
// # Target Slots
//
// The backend owns exactly two render targets:
//
//   - Snapshot (slot 0): rendered, then read back with getPixels into a
//     static canvas owned by one viewer
//   - Realtime (slot 1): rendered, then presented directly to the single
//     shared live surface without read-back
//
// # Resolution Policy
//
// A viewer's display resolution is measured in logical points. Static
// snapshots render at display resolution times the device pixel ratio, taken
// from a [gpucontext.WindowProvider]. The realtime slot renders with a lower
// pixel-ratio cap to keep latency down. Both are recomputed on every refresh.
//
// # Pixel Buffers
//
// BitmapFromPixels turns a read-back buffer in any 8-bit RGBA or BGRA
// [gputypes.TextureFormat] into an *image.RGBA.
package render
