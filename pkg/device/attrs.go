package device

import (
	"fmt"

	"github.com/devmgr-go/devmgr/pkg/attr"
)

// GetAttrUint8 returns the uint8 attribute name of n. See Node.FindAttr for
// the recursive lookup. Widths never convert: a uint16 attribute of the same
// name is reported as ErrAttrNotFound.
func (m *Manager) GetAttrUint8(n *Node, name string, recursive bool) (uint8, error) {
	a, err := m.findAttr(n, name, attr.TypeUint8, recursive)
	if err != nil {
		return 0, err
	}
	v, _ := a.Uint8()
	return v, nil
}

// GetAttrUint16 returns the uint16 attribute name of n.
func (m *Manager) GetAttrUint16(n *Node, name string, recursive bool) (uint16, error) {
	a, err := m.findAttr(n, name, attr.TypeUint16, recursive)
	if err != nil {
		return 0, err
	}
	v, _ := a.Uint16()
	return v, nil
}

// GetAttrUint32 returns the uint32 attribute name of n.
func (m *Manager) GetAttrUint32(n *Node, name string, recursive bool) (uint32, error) {
	a, err := m.findAttr(n, name, attr.TypeUint32, recursive)
	if err != nil {
		return 0, err
	}
	v, _ := a.Uint32()
	return v, nil
}

// GetAttrUint64 returns the uint64 attribute name of n.
func (m *Manager) GetAttrUint64(n *Node, name string, recursive bool) (uint64, error) {
	a, err := m.findAttr(n, name, attr.TypeUint64, recursive)
	if err != nil {
		return 0, err
	}
	v, _ := a.Uint64()
	return v, nil
}

// GetAttrString returns the string attribute name of n.
func (m *Manager) GetAttrString(n *Node, name string, recursive bool) (string, error) {
	a, err := m.findAttr(n, name, attr.TypeString, recursive)
	if err != nil {
		return "", err
	}
	v, _ := a.Str()
	return v, nil
}

// GetAttrRaw returns a copy of the raw attribute name of n.
func (m *Manager) GetAttrRaw(n *Node, name string, recursive bool) ([]byte, error) {
	a, err := m.findAttr(n, name, attr.TypeRaw, recursive)
	if err != nil {
		return nil, err
	}
	v, _ := a.Bytes()
	return v, nil
}

func (m *Manager) findAttr(n *Node, name string, typ attr.Type, recursive bool) (attr.Attr, error) {
	if n == nil {
		return attr.Attr{}, fmt.Errorf("%w: nil node", ErrInvalidArgument)
	}
	a, ok := n.FindAttr(name, typ, recursive)
	if !ok {
		return attr.Attr{}, fmt.Errorf("%w: %q (%s) on %s", ErrAttrNotFound, name, typ, n)
	}
	return a, nil
}

// AttrCursor iterates over the attributes of one node. The zero value starts
// at the first attribute.
type AttrCursor struct {
	node *Node
	next int
}

// Reset restarts the iteration.
func (c *AttrCursor) Reset() {
	*c = AttrCursor{}
}

// GetNextAttr returns the next attribute of n, or ErrEndOfList. Ancestors
// are never visited. Using the cursor with another node restarts it.
func (m *Manager) GetNextAttr(n *Node, c *AttrCursor) (attr.Attr, error) {
	if n == nil || c == nil {
		return attr.Attr{}, fmt.Errorf("%w: nil node or cursor", ErrInvalidArgument)
	}
	if c.node != n {
		c.node = n
		c.next = 0
	}
	if c.next >= len(n.attrs) {
		return attr.Attr{}, ErrEndOfList
	}
	a := n.attrs[c.next]
	c.next++
	return a.Clone(), nil
}
