package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/devmgr-go/devmgr/pkg/attr"
	"github.com/devmgr-go/devmgr/pkg/device"
	"github.com/devmgr-go/devmgr/pkg/inspect"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// ErrInvalidState is returned for snapshot entries that cannot be converted
// back into attributes or resources.
var ErrInvalidState = errors.New("invalid tree state")

// TreeState is a snapshot of a device tree.
type TreeState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// SessionID identifies the manager session that produced the snapshot.
	SessionID string `json:"session_id,omitempty"`

	// Nodes lists every node, parents before their children.
	Nodes []NodeState `json:"nodes,omitempty"`
}

// NodeState is one node of a snapshot.
type NodeState struct {
	ID         uint32          `json:"id"`
	ParentID   uint32          `json:"parent_id,omitempty"`
	Root       bool            `json:"root,omitempty"`
	Module     string          `json:"module"`
	Registered bool            `json:"registered"`
	InitCount  int             `json:"init_count,omitempty"`
	Removed    bool            `json:"removed,omitempty"`
	Deferred   bool            `json:"deferred,omitempty"`
	Score      float32         `json:"score,omitempty"`
	Attributes []AttrState     `json:"attributes,omitempty"`
	Resources  []ResourceState `json:"resources,omitempty"`
}

// AttrState is the JSON form of an attribute. Exactly one value member is
// set, chosen by Type.
type AttrState struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Number *uint64 `json:"number,omitempty"`
	String *string `json:"string,omitempty"`
	Raw    []byte  `json:"raw,omitempty"`
}

// ResourceState is the JSON form of a hardware resource.
type ResourceState struct {
	Type   string `json:"type"`
	Base   uint64 `json:"base"`
	Length uint64 `json:"length"`
}

// NewAttrState converts an attribute.
func NewAttrState(a attr.Attr) AttrState {
	s := AttrState{Name: a.Name, Type: a.Type.String()}
	switch v := a.Value().(type) {
	case uint8:
		n := uint64(v)
		s.Number = &n
	case uint16:
		n := uint64(v)
		s.Number = &n
	case uint32:
		n := uint64(v)
		s.Number = &n
	case uint64:
		s.Number = &v
	case string:
		s.String = &v
	case []byte:
		s.Raw = v
	}
	return s
}

// Attr converts the state back into an attribute.
func (s AttrState) Attr() (attr.Attr, error) {
	typ, err := attr.ParseType(s.Type)
	if err != nil {
		return attr.Attr{}, fmt.Errorf("%w: attribute %q: %w", ErrInvalidState, s.Name, err)
	}

	var a attr.Attr
	switch typ {
	case attr.TypeString:
		if s.String == nil {
			return attr.Attr{}, fmt.Errorf("%w: attribute %q has no string value", ErrInvalidState, s.Name)
		}
		a = attr.String(s.Name, *s.String)
	case attr.TypeRaw:
		a = attr.Raw(s.Name, s.Raw)
	default:
		if s.Number == nil {
			return attr.Attr{}, fmt.Errorf("%w: attribute %q has no numeric value", ErrInvalidState, s.Name)
		}
		n := *s.Number
		switch typ {
		case attr.TypeUint8:
			a = attr.Uint8(s.Name, uint8(n))
		case attr.TypeUint16:
			a = attr.Uint16(s.Name, uint16(n))
		case attr.TypeUint32:
			a = attr.Uint32(s.Name, uint32(n))
		default:
			a = attr.Uint64(s.Name, n)
		}
	}
	if err := a.Validate(); err != nil {
		return attr.Attr{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return a, nil
}

// Attrs converts every attribute of the node.
func (n NodeState) Attrs() ([]attr.Attr, error) {
	out := make([]attr.Attr, 0, len(n.Attributes))
	for _, s := range n.Attributes {
		a, err := s.Attr()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// PrettyName returns the node's pretty name, or "".
func (n NodeState) PrettyName() string {
	for _, a := range n.Attributes {
		if a.Name == attr.DevicePrettyName && a.String != nil {
			return *a.String
		}
	}
	return ""
}

// FromTree converts an inspection snapshot. Nodes are listed depth first.
func FromTree(tree *inspect.TreeInfo) *TreeState {
	state := &TreeState{Version: StateVersion}
	if tree == nil {
		return state
	}
	state.SessionID = tree.SessionID
	if tree.Root == nil {
		return state
	}
	tree.Root.Walk(func(n *inspect.NodeInfo, depth int) bool {
		ns := NodeState{
			ID:         n.ID,
			ParentID:   n.ParentID,
			Root:       depth == 0,
			Module:     n.Module,
			Registered: n.Registered,
			InitCount:  n.InitCount,
			Removed:    n.Removed,
			Deferred:   n.Deferred,
			Score:      n.Score,
		}
		for _, a := range n.Attributes {
			ns.Attributes = append(ns.Attributes, NewAttrState(a))
		}
		for _, r := range n.Resources {
			ns.Resources = append(ns.Resources, ResourceState{Type: r.Type.String(), Base: r.Base, Length: r.Length})
		}
		state.Nodes = append(state.Nodes, ns)
		return true
	})
	return state
}

// TreeStateStore manages persistence of tree snapshots to a JSON file.
type TreeStateStore struct {
	mu   sync.Mutex
	path string
}

// NewTreeStateStore creates a new tree state store.
func NewTreeStateStore(path string) *TreeStateStore {
	return &TreeStateStore{path: path}
}

// Path returns the file the store writes.
func (s *TreeStateStore) Path() string {
	return s.path
}

// Save persists the tree state to disk.
func (s *TreeStateStore) Save(state *TreeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure parent directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

// Load reads the tree state from disk.
// Returns nil, nil if the file doesn't exist (no previous boot).
func (s *TreeStateStore) Load() (*TreeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &TreeState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("%w: version %d is newer than %d", ErrInvalidState, state.Version, StateVersion)
	}

	return state, nil
}

// Clear removes the state file.
func (s *TreeStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ResourceList converts the node's resources back.
func (n NodeState) ResourceList() ([]device.Resource, error) {
	out := make([]device.Resource, 0, len(n.Resources))
	for _, r := range n.Resources {
		typ, err := device.ParseResourceType(r.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
		out = append(out, device.Resource{Type: typ, Base: r.Base, Length: r.Length})
	}
	return out, nil
}
