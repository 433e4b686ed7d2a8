package inspect

import (
	"fmt"
	"io"
	"strings"

	"github.com/devmgr-go/devmgr/pkg/attr"
)

// Formatter formats inspection output.
type Formatter struct {
	// ShowMetadata includes init count, state and score on node lines
	ShowMetadata bool

	// ShowIDs includes node IDs alongside module names
	ShowIDs bool

	// IndentWidth is the number of spaces per indent level
	IndentWidth int
}

// NewFormatter creates a new Formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		ShowMetadata: true,
		ShowIDs:      false,
		IndentWidth:  2,
	}
}

// Indent returns the content with indentation.
func (f *Formatter) Indent(depth int, content string) string {
	width := f.IndentWidth
	if width == 0 {
		width = 2
	}
	indent := strings.Repeat(" ", depth*width)
	return indent + content
}

// FormatTree writes the tree in dump layout: one line per node, followed by
// its attributes indented two levels deeper, followed by its children.
func (f *Formatter) FormatTree(w io.Writer, tree *TreeInfo) error {
	if tree == nil || tree.Root == nil {
		_, err := io.WriteString(w, "(no root)\n")
		return err
	}
	var sb strings.Builder
	tree.Root.Walk(func(n *NodeInfo, depth int) bool {
		f.writeNode(&sb, n, depth)
		return true
	})
	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatNode formats a single node without its children.
func (f *Formatter) FormatNode(n *NodeInfo) string {
	var sb strings.Builder
	f.writeNode(&sb, n, 0)
	return sb.String()
}

func (f *Formatter) writeNode(sb *strings.Builder, n *NodeInfo, depth int) {
	line := fmt.Sprintf("(%d) %q", depth, n.Module)
	if f.ShowIDs {
		line += fmt.Sprintf(" #%d", n.ID)
	}
	if f.ShowMetadata {
		line += " (" + f.FormatState(n) + ")"
	}
	sb.WriteString(f.Indent(depth, line))
	sb.WriteString("\n")

	for _, a := range n.Attributes {
		sb.WriteString(f.Indent(depth+2, f.FormatAttr(a)))
		sb.WriteString("\n")
	}
	for _, r := range n.Resources {
		sb.WriteString(f.Indent(depth+1, "resource: "+r.String()))
		sb.WriteString("\n")
	}
}

// FormatState formats the lifecycle state of a node.
func (f *Formatter) FormatState(n *NodeInfo) string {
	parts := []string{fmt.Sprintf("init %d", n.InitCount)}
	if n.Registered {
		parts = append(parts, "registered")
	} else {
		parts = append(parts, "unregistered")
	}
	if n.Removed {
		parts = append(parts, "removed")
	}
	if n.Deferred {
		parts = append(parts, "deferred")
	}
	if n.Score > 0 {
		parts = append(parts, "score "+FormatScore(n.Score))
	}
	return strings.Join(parts, ", ")
}

// FormatAttr formats an attribute as `"name" : type : value`. Device class
// values get their class name appended.
func (f *Formatter) FormatAttr(a attr.Attr) string {
	s := a.Format()
	if a.Name == attr.DeviceType {
		if v, ok := a.Uint16(); ok {
			if name := GetClassName(v); name != "" {
				s += " " + name
			}
		}
	}
	return s
}

// FormatScore formats a support score.
func FormatScore(score float32) string {
	return fmt.Sprintf("%.2f", score)
}

// AttributeRow represents a formatted attribute for display.
type AttributeRow struct {
	Name  string
	Alias string
	Type  string
	Value string
}

// AttributeRows converts attributes into display rows.
func AttributeRows(attrs []attr.Attr) []AttributeRow {
	rows := make([]AttributeRow, 0, len(attrs))
	for _, a := range attrs {
		rows = append(rows, AttributeRow{
			Name:  a.Name,
			Alias: GetAttributeAlias(a.Name),
			Type:  a.Type.String(),
			Value: FormatValue(a),
		})
	}
	return rows
}

// FormatValue formats only the value of an attribute.
func FormatValue(a attr.Attr) string {
	switch v := a.Value().(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case []byte:
		return fmt.Sprintf("0x%x", v)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%d", v)
	}
}

// FormatAttributeTable formats a list of attribute rows.
func (f *Formatter) FormatAttributeTable(rows []AttributeRow) string {
	if len(rows) == 0 {
		return "  (no attributes)"
	}

	var sb strings.Builder
	for _, row := range rows {
		name := row.Name
		if f.ShowIDs && row.Alias != "" {
			name = fmt.Sprintf("[%s] %s", row.Alias, row.Name)
		}
		sb.WriteString(fmt.Sprintf("  %s: %s", name, row.Value))
		if f.ShowMetadata {
			sb.WriteString(fmt.Sprintf(" (%s)", row.Type))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
