// Package inspect provides device tree inspection and formatting utilities.
//
// The inspect package offers:
//   - Parsing node paths (e.g., "0/1/0" or "#12")
//   - Resolving paths and attribute aliases against a device manager
//   - Snapshots of the tree for display and persistence
//   - Formatting output in the classic tree dump layout
package inspect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path errors.
var (
	ErrInvalidPath   = errors.New("invalid path format")
	ErrInvalidNumber = errors.New("invalid numeric value in path")
)

// Path addresses one node of the device tree.
// Format: child indices from the root ("0/1/0"), the root ("" or "/"),
// or a node ID ("#12").
type Path struct {
	// Indices lists the child index at each level below the root.
	Indices []int

	// NodeID is the node ID when ByID is set.
	NodeID uint32

	// ByID indicates the path names a node ID instead of a position.
	ByID bool

	// Raw stores the original input string.
	Raw string
}

// ParsePath parses a path string into a Path.
//
// Supported formats:
//   - "" or "/" - the root node
//   - "0/1/0" - child indices walked from the root, optionally with a
//     leading "/"
//   - "#12" - the node with ID 12 (decimal or 0x hex)
func ParsePath(input string) (*Path, error) {
	input = strings.TrimSpace(input)
	p := &Path{Raw: input}

	if id, ok := strings.CutPrefix(input, "#"); ok {
		v, err := strconv.ParseUint(id, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, id)
		}
		p.NodeID = uint32(v)
		p.ByID = true
		return p, nil
	}

	rest := strings.TrimPrefix(input, "/")
	if rest == "" {
		return p, nil
	}
	if strings.Contains(rest, "//") || strings.HasSuffix(rest, "/") {
		return nil, ErrInvalidPath
	}

	for _, part := range strings.Split(rest, "/") {
		i, err := strconv.Atoi(part)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, part)
		}
		p.Indices = append(p.Indices, i)
	}
	return p, nil
}

// IsRoot reports whether the path names the root node.
func (p *Path) IsRoot() bool {
	return !p.ByID && len(p.Indices) == 0
}

// String returns the canonical form of the path.
func (p *Path) String() string {
	if p.ByID {
		return fmt.Sprintf("#%d", p.NodeID)
	}
	if len(p.Indices) == 0 {
		return "/"
	}
	parts := make([]string, len(p.Indices))
	for i, idx := range p.Indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, "/")
}

// Child returns the path of the i-th child of p.
func (p *Path) Child(i int) *Path {
	indices := append(append([]int(nil), p.Indices...), i)
	return &Path{Indices: indices}
}
