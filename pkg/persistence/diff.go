package persistence

import (
	"fmt"
	"slices"
	"strings"
)

// ChangeKind tells how a node differs between two snapshots.
type ChangeKind uint8

const (
	// ChangeAdded marks a node present only in the newer snapshot.
	ChangeAdded ChangeKind = iota
	// ChangeMissing marks a node present only in the older snapshot.
	ChangeMissing
)

// String returns the change kind name.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeMissing:
		return "missing"
	default:
		return fmt.Sprintf("ChangeKind(%d)", k)
	}
}

// Change is one node that appeared or disappeared between snapshots.
type Change struct {
	Kind ChangeKind
	Key  string
}

func (c Change) String() string {
	return c.Kind.String() + " " + c.Key
}

// Diff compares two snapshots. Node IDs are not stable across boots, so a
// node is identified by the module and pretty names on its path from the
// root. Either snapshot may be nil. Changes are sorted by key.
func Diff(prev, cur *TreeState) []Change {
	before := prev.keys()
	after := cur.keys()

	var changes []Change
	for key := range after {
		if _, ok := before[key]; !ok {
			changes = append(changes, Change{Kind: ChangeAdded, Key: key})
		}
	}
	for key := range before {
		if _, ok := after[key]; !ok {
			changes = append(changes, Change{Kind: ChangeMissing, Key: key})
		}
	}
	slices.SortFunc(changes, func(a, b Change) int {
		if c := strings.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return int(a.Kind) - int(b.Kind)
	})
	return changes
}

// keys returns the path key of every live node.
func (s *TreeState) keys() map[string]struct{} {
	out := make(map[string]struct{})
	if s == nil {
		return out
	}
	byID := make(map[uint32]*NodeState, len(s.Nodes))
	for i := range s.Nodes {
		byID[s.Nodes[i].ID] = &s.Nodes[i]
	}
	for i := range s.Nodes {
		n := &s.Nodes[i]
		if n.Removed || !n.Registered {
			continue
		}
		out[pathKey(n, byID)] = struct{}{}
	}
	return out
}

func pathKey(n *NodeState, byID map[uint32]*NodeState) string {
	var parts []string
	for cur := n; cur != nil && len(parts) <= len(byID); {
		part := cur.Module
		if name := cur.PrettyName(); name != "" {
			part += "[" + name + "]"
		}
		parts = append(parts, part)
		if cur.Root {
			break
		}
		cur = byID[cur.ParentID]
	}
	slices.Reverse(parts)
	return strings.Join(parts, " > ")
}
