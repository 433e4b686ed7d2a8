package inspect

import (
	"errors"
	"fmt"

	"github.com/devmgr-go/devmgr/pkg/attr"
	"github.com/devmgr-go/devmgr/pkg/device"
)

// Inspector errors.
var (
	ErrNoRoot            = errors.New("device tree has no root")
	ErrNodeNotFound      = errors.New("node not found")
	ErrAttributeNotFound = errors.New("attribute not found")
)

// Inspector provides read access to a device manager's tree.
type Inspector struct {
	manager *device.Manager
}

// NewInspector creates a new Inspector for the given manager.
func NewInspector(m *device.Manager) *Inspector {
	return &Inspector{manager: m}
}

// Manager returns the underlying device manager.
func (i *Inspector) Manager() *device.Manager {
	return i.manager
}

// TreeInfo is a snapshot of the whole device tree.
type TreeInfo struct {
	SessionID string
	NodeCount int
	Root      *NodeInfo
}

// NodeInfo is a snapshot of one node and its subtree.
type NodeInfo struct {
	ID         uint32
	ParentID   uint32
	Module     string
	Registered bool
	InitCount  int
	Removed    bool
	Deferred   bool
	Score      float32
	Attributes []attr.Attr
	Resources  []device.Resource
	Children   []NodeInfo
}

// Walk calls fn for ni and every node below it, depth first. Returning false
// stops the walk.
func (ni *NodeInfo) Walk(fn func(n *NodeInfo, depth int) bool) {
	ni.walk(0, fn)
}

func (ni *NodeInfo) walk(depth int, fn func(*NodeInfo, int) bool) bool {
	if !fn(ni, depth) {
		return false
	}
	for k := range ni.Children {
		if !ni.Children[k].walk(depth+1, fn) {
			return false
		}
	}
	return true
}

// PrettyName returns the node's pretty name attribute, or "".
func (ni *NodeInfo) PrettyName() string {
	a, ok := attr.Find(ni.Attributes, attr.DevicePrettyName, attr.TypeString)
	if !ok {
		return ""
	}
	s, _ := a.Str()
	return s
}

// InspectTree returns a snapshot of the complete tree. Root is nil before the
// root node is registered.
func (i *Inspector) InspectTree() *TreeInfo {
	tree := &TreeInfo{
		SessionID: i.manager.SessionID(),
		NodeCount: i.manager.NodeCount(),
	}
	if root := i.manager.Root(); root != nil {
		info := i.InspectNode(root)
		tree.Root = &info
	}
	return tree
}

// InspectNode returns a snapshot of n and its subtree.
func (i *Inspector) InspectNode(n *device.Node) NodeInfo {
	info := NodeInfo{
		ID:         n.ID(),
		Module:     n.ModuleName(),
		Registered: n.IsRegistered(),
		InitCount:  n.InitCount(),
		Removed:    n.IsRemoved(),
		Deferred:   n.IsDeferred(),
		Score:      n.SupportScore(),
		Attributes: n.Attrs(),
		Resources:  n.Resources(),
	}
	if p := n.Parent(); p != nil {
		info.ParentID = p.ID()
	}
	for _, c := range n.Children() {
		info.Children = append(info.Children, i.InspectNode(c))
	}
	return info
}

// Resolve returns the node a path names.
func (i *Inspector) Resolve(path *Path) (*device.Node, error) {
	if path == nil {
		return nil, ErrInvalidPath
	}
	root := i.manager.Root()
	if root == nil {
		return nil, ErrNoRoot
	}

	if path.ByID {
		var found *device.Node
		i.manager.Walk(func(n *device.Node, _ int) bool {
			if n.ID() == path.NodeID {
				found = n
				return false
			}
			return true
		})
		if found == nil {
			return nil, fmt.Errorf("%w: #%d", ErrNodeNotFound, path.NodeID)
		}
		return found, nil
	}

	n := root
	for depth, idx := range path.Indices {
		children := n.Children()
		if idx >= len(children) {
			return nil, fmt.Errorf("%w: index %d at level %d of %q", ErrNodeNotFound, idx, depth+1, path.String())
		}
		n = children[idx]
	}
	return n, nil
}

// ResolveString parses and resolves a path string.
func (i *Inspector) ResolveString(s string) (*device.Node, error) {
	path, err := ParsePath(s)
	if err != nil {
		return nil, err
	}
	return i.Resolve(path)
}

// ReadAttribute looks up an attribute of the node a path names. name may be
// a short alias. A recursive lookup continues up the parent chain.
func (i *Inspector) ReadAttribute(path *Path, name string, recursive bool) (attr.Attr, error) {
	n, err := i.Resolve(path)
	if err != nil {
		return attr.Attr{}, err
	}
	full := ResolveAttributeName(name)
	a, ok := n.FindAttr(full, attr.TypeAny, recursive)
	if !ok {
		return attr.Attr{}, fmt.Errorf("%w: %q on %s", ErrAttributeNotFound, full, n)
	}
	return a, nil
}
