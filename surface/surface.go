// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"fmt"

	"github.com/gogpu/viewmux/render"
)

// Display is a host-owned viewport placeholder.
//
// Size reports the display resolution the host wants the viewport shown
// at. Attach and Detach add and remove a scheduler-owned element; the host
// decides how to composite it.
type Display interface {
	Size() render.Resolution
	Attach(e Element)
	Detach(e Element)
}

// Kind identifies an element type.
type Kind int

// Element kinds.
const (
	KindCanvas Kind = iota
	KindImage
	KindLive
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCanvas:
		return "canvas"
	case KindImage:
		return "image"
	case KindLive:
		return "live"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Element is a visual owned by the scheduler and placed in a Display.
// Only this package implements Element.
type Element interface {
	Kind() Kind

	// Parent returns the display the element is attached to, or nil.
	Parent() Display

	base() *node
}

// node is the parent link shared by all elements.
type node struct {
	parent Display
}

func (n *node) Parent() Display { return n.parent }
func (n *node) base() *node     { return n }

// Attach places e in d. If e is in another display it is detached from it
// first. Attaching to the current parent does nothing.
func Attach(d Display, e Element) {
	n := e.base()
	if n.parent == d {
		return
	}
	if n.parent != nil {
		n.parent.Detach(e)
	}
	n.parent = d
	if d != nil {
		d.Attach(e)
	}
}

// Detach removes e from its display, if any.
func Detach(e Element) {
	n := e.base()
	if n.parent == nil {
		return
	}
	p := n.parent
	n.parent = nil
	p.Detach(e)
}
