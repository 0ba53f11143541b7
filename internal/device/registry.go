package device

import (
	"fmt"
	"strings"
)

// Registry is the read-only set of configured devices.
// Iteration order is configuration order. It is safe for concurrent use
// because nothing mutates it after NewRegistry returns.
type Registry struct {
	ordered []Descriptor
	byID    map[string]int
}

// NewRegistry validates descriptors and builds a Registry.
//
// Every descriptor needs a non-empty id, name and protocol and a known
// class; ids must be unique. An empty AddressSource is accepted: such a
// device is simply never connected.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	r := &Registry{
		ordered: make([]Descriptor, 0, len(descriptors)),
		byID:    make(map[string]int, len(descriptors)),
	}

	for i, d := range descriptors {
		if err := validateDescriptor(d); err != nil {
			return nil, fmt.Errorf("device %d: %w", i, err)
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDevice, d.ID)
		}
		r.byID[d.ID] = len(r.ordered)
		r.ordered = append(r.ordered, d)
	}

	return r, nil
}

func validateDescriptor(d Descriptor) error {
	switch {
	case strings.TrimSpace(d.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidDescriptor)
	case strings.TrimSpace(d.Name) == "":
		return fmt.Errorf("%w: %s: name is required", ErrInvalidDescriptor, d.ID)
	case !d.Class.Valid():
		return fmt.Errorf("%w: %s: unknown class %q", ErrInvalidDescriptor, d.ID, d.Class)
	case d.Protocol == "":
		return fmt.Errorf("%w: %s: protocol is required", ErrInvalidDescriptor, d.ID)
	}
	return nil
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.ordered[i], true
}

// All returns every descriptor in configuration order.
// The returned slice is a copy.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of configured devices.
func (r *Registry) Len() int {
	return len(r.ordered)
}
