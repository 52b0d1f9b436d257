// Package flightio moves tensors between a device host and a comparison
// host over Arrow Flight, so conformance references can be checked from a
// different machine than the one driving the device.
package flightio

import (
	"fmt"
	"sync"

	"github.com/23skdu/longbow-bodkin/internal/tile"
)

// Entry is one published tensor: decoded dense values plus the metadata a
// peer needs to re-tilize or re-quantize it.
type Entry struct {
	Shape tile.Shape
	DType tile.DType
	Data  []float32
}

// Registry is the set of tensors a server exposes, keyed by name.
type Registry struct {
	mu      sync.RWMutex
	tensors map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{tensors: make(map[string]Entry)}
}

func (r *Registry) Put(name string, e Entry) error {
	if len(e.Data) != e.Shape.NumElements() {
		return fmt.Errorf("tensor %q: data length %d does not match shape %s", name, len(e.Data), e.Shape)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tensors[name] = e
	return nil
}

func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tensors[name]
	return e, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tensors))
	for n := range r.tensors {
		names = append(names, n)
	}
	return names
}
