// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"slices"
	"sync"

	"github.com/gogpu/viewmux/render"
)

// Placeholder is an in-memory Display. It is safe for concurrent use.
type Placeholder struct {
	mu       sync.Mutex
	size     render.Resolution
	elements []Element
}

// NewPlaceholder creates a display of the given size.
func NewPlaceholder(size render.Resolution) *Placeholder {
	return &Placeholder{size: size}
}

// Size returns the display resolution.
func (p *Placeholder) Size() render.Resolution {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// SetSize changes the display resolution.
func (p *Placeholder) SetSize(size render.Resolution) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.size = size
}

// Attach adds e.
func (p *Placeholder) Attach(e Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !slices.Contains(p.elements, e) {
		p.elements = append(p.elements, e)
	}
}

// Detach removes e.
func (p *Placeholder) Detach(e Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = slices.DeleteFunc(p.elements, func(x Element) bool { return x == e })
}

// Elements returns the attached elements in attach order.
func (p *Placeholder) Elements() []Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.elements)
}

// Shows reports whether an element of kind k is attached.
func (p *Placeholder) Shows(k Kind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.elements {
		if e.Kind() == k {
			return true
		}
	}
	return false
}
