package capability

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps capability names to descriptors.
//
// A Registry is populated during session construction and read-only
// afterwards. Reads are safe for concurrent use across runs; the lock only
// matters during the build phase.
type Registry struct {
	mu    sync.RWMutex
	caps  map[string]Descriptor
	order []string
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{
		caps: make(map[string]Descriptor),
	}
}

// Register adds a capability to the registry. A descriptor with an empty
// name or nil Execute is rejected. Registering a name that already exists
// replaces the previous descriptor (last-registered-wins); the winning
// descriptor's Source stays visible in every trace record, so collisions
// among bridged sources remain diagnosable.
func (r *Registry) Register(d Descriptor) error {
	if d.Name() == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDescriptor)
	}
	if d.Execute == nil {
		return fmt.Errorf("%w: %s has no Execute", ErrInvalidDescriptor, d.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.caps[d.Name()]; !exists {
		r.order = append(r.order, d.Name())
	}
	r.caps[d.Name()] = d
	return nil
}

// Get retrieves a capability by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.caps[name]
	return d, ok
}

// List returns all capabilities in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.caps[name])
	}
	return out
}

// Names returns capability names sorted for deterministic output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.order))
	out = append(out, r.order...)
	sort.Strings(out)
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}

// CountByOrigin returns how many capabilities carry the given origin.
func (r *Registry) CountByOrigin(origin Origin) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, d := range r.caps {
		if d.Origin == origin {
			n++
		}
	}
	return n
}
