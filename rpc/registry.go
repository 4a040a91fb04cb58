// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rpc

import (
	"errors"
	"sort"

	"github.com/gogpu/gpucontext"
)

// ErrBackendNotFound is returned by Open for an unregistered name.
var ErrBackendNotFound = errors.New("rpc: backend not registered")

// Standard backend names, in preference order.
const (
	Native   = "native"
	Software = "software"
)

// globalRegistry holds the registered backend factories.
var globalRegistry = gpucontext.NewRegistry[Backend](gpucontext.WithPriority(Native, Software))

// Register adds a backend factory. Registering an existing name replaces
// the previous factory.
func Register(name string, factory func() Backend) {
	globalRegistry.Register(name, factory)
}

// Unregister removes a backend factory.
func Unregister(name string) {
	globalRegistry.Unregister(name)
}

// Lookup creates the backend registered as name.
func Lookup(name string) (Backend, bool) {
	if !globalRegistry.Has(name) {
		return nil, false
	}
	b := globalRegistry.Get(name)
	return b, b != nil
}

// Best creates the preferred registered backend and returns its name.
// It returns nil and "" if nothing is registered.
func Best() (Backend, string) {
	name := globalRegistry.BestName()
	if name == "" {
		return nil, ""
	}
	return globalRegistry.Get(name), name
}

// Open creates the named backend, or the best one if name is empty.
func Open(name string) (Backend, error) {
	if name == "" {
		b, _ := Best()
		if b == nil {
			return nil, ErrBackendNotFound
		}
		return b, nil
	}
	b, ok := Lookup(name)
	if !ok {
		return nil, ErrBackendNotFound
	}
	return b, nil
}

// Available returns the registered backend names, sorted.
func Available() []string {
	names := globalRegistry.Available()
	sort.Strings(names)
	return names
}
