package device

import (
	"fmt"
	"math"
)

// ResourceType is the kind of I/O resource a node claims.
type ResourceType uint8

const (
	ResourcePort ResourceType = iota + 1
	ResourceMemory
	ResourceIRQ
)

var resourceTypeNames = []string{"", "port", "memory", "irq"}

// String returns the resource type name.
func (t ResourceType) String() string {
	if int(t) < len(resourceTypeNames) && t != 0 {
		return resourceTypeNames[t]
	}
	return fmt.Sprintf("ResourceType(%d)", t)
}

// ParseResourceType parses a name returned by ResourceType.String.
func ParseResourceType(s string) (ResourceType, error) {
	for i, name := range resourceTypeNames {
		if i > 0 && name == s {
			return ResourceType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: resource type %q", ErrInvalidArgument, s)
}

// Resource is an I/O range claimed by a node for its lifetime.
type Resource struct {
	Type   ResourceType
	Base   uint64
	Length uint64
}

// Validate checks the resource is well-formed.
func (r Resource) Validate() error {
	if r.Type < ResourcePort || r.Type > ResourceIRQ {
		return fmt.Errorf("%w: resource type %d", ErrInvalidArgument, r.Type)
	}
	if r.Length == 0 {
		return fmt.Errorf("%w: zero-length %s resource", ErrInvalidArgument, r.Type)
	}
	if r.Length-1 > math.MaxUint64-r.Base {
		return fmt.Errorf("%w: %s resource wraps around", ErrInvalidArgument, r.Type)
	}
	return nil
}

// Last returns the address of the last unit in the range.
func (r Resource) Last() uint64 {
	return r.Base + (r.Length - 1)
}

// Overlaps reports whether r and o are of the same type and share a unit.
// Empty ranges overlap nothing.
func (r Resource) Overlaps(o Resource) bool {
	if r.Type != o.Type || r.Length == 0 || o.Length == 0 {
		return false
	}
	return r.Base <= o.Last() && o.Base <= r.Last()
}

func (r Resource) String() string {
	return fmt.Sprintf("%s 0x%x-0x%x", r.Type, r.Base, r.Last())
}

// acquireResources validates res and checks it against every resource held
// by a live node. Caller holds m.mu.
func (m *Manager) acquireResources(n *Node, res []Resource) error {
	for i, r := range res {
		if err := r.Validate(); err != nil {
			return err
		}
		for _, other := range res[:i] {
			if r.Overlaps(other) {
				return fmt.Errorf("%w: %s overlaps %s", ErrResourceBusy, r, other)
			}
		}
		for _, held := range m.resources {
			if r.Overlaps(held.res) {
				return fmt.Errorf("%w: %s held by node %d", ErrResourceBusy, r, held.owner.id)
			}
		}
	}
	for _, r := range res {
		m.resources = append(m.resources, heldResource{owner: n, res: r})
	}
	n.resources = append([]Resource(nil), res...)
	return nil
}

// releaseResources drops every resource held by n. Caller holds m.mu.
func (m *Manager) releaseResources(n *Node) {
	kept := m.resources[:0]
	for _, held := range m.resources {
		if held.owner != n {
			kept = append(kept, held)
		}
	}
	m.resources = kept
}

type heldResource struct {
	owner *Node
	res   Resource
}
