// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package rpc is the outbound protocol between the viewport scheduler and
// the native render backend.
//
// The backend is an opaque service that accepts JSON requests of the form
// {"cmd": "...", ...} and answers with a JSON response that may carry an
// "error" field. Pixel data is not inlined in responses: getPixels returns
// a pointer into backend memory which is read through [Backend.Memory].
//
// # Commands
//
//   - init: (re)create backend globals
//   - loadScene {name, data}: parse a scene, returns scene info or null
//   - render {target, desc}: render a descriptor into target slot 0 or 1
//   - present {targetIndex, width, height}: show target 1 on the live surface
//   - getPixels {targetIndex, width, height}: read back target 0
//   - freeResources {targets, scenes, globals}: release resource tiers
//
// # Backends
//
// Backends register themselves by name:
//
//	func init() {
//	    rpc.Register("software", func() rpc.Backend { return newSoftware() })
//	}
//
// [Best] selects "native" over "software" when both are registered.
//
// # Optional capabilities
//
// A backend may also implement [ContextLoser] (forced context loss when
// globals are freed) and [Fencer] (GPU fence sync used to gate pixel
// read-back until rendering has finished).
package rpc
