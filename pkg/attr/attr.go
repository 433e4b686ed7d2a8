package attr

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Attribute errors.
var (
	ErrInvalidName = errors.New("attribute name is empty")
	ErrInvalidType = errors.New("invalid attribute type")
)

// Type identifies which value member of an attribute is valid.
type Type uint8

const (
	// TypeAny matches every type in a lookup. It is never stored.
	TypeAny Type = iota
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeString
	TypeRaw
)

// String returns the type name.
func (t Type) String() string {
	names := []string{"any", "uint8", "uint16", "uint32", "uint64", "string", "raw"}
	if int(t) < len(names) {
		return names[t]
	}
	return "unknown"
}

// ParseType parses a type name as returned by Type.String.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "uint8", "u8":
		return TypeUint8, nil
	case "uint16", "u16":
		return TypeUint16, nil
	case "uint32", "u32":
		return TypeUint32, nil
	case "uint64", "u64":
		return TypeUint64, nil
	case "string", "str":
		return TypeString, nil
	case "raw", "bytes":
		return TypeRaw, nil
	default:
		return TypeAny, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// valid reports whether t may be stored in an attribute.
func (t Type) valid() bool {
	return t >= TypeUint8 && t <= TypeRaw
}

// Attr is a named, typed attribute value.
type Attr struct {
	// Name is the attribute name, e.g. "device/vendor".
	Name string

	// Type selects the valid value member.
	Type Type

	num uint64
	str string
	raw []byte
}

// Uint8 creates a uint8 attribute.
func Uint8(name string, v uint8) Attr {
	return Attr{Name: name, Type: TypeUint8, num: uint64(v)}
}

// Uint16 creates a uint16 attribute.
func Uint16(name string, v uint16) Attr {
	return Attr{Name: name, Type: TypeUint16, num: uint64(v)}
}

// Uint32 creates a uint32 attribute.
func Uint32(name string, v uint32) Attr {
	return Attr{Name: name, Type: TypeUint32, num: uint64(v)}
}

// Uint64 creates a uint64 attribute.
func Uint64(name string, v uint64) Attr {
	return Attr{Name: name, Type: TypeUint64, num: v}
}

// String creates a string attribute.
func String(name, v string) Attr {
	return Attr{Name: name, Type: TypeString, str: v}
}

// Raw creates a raw attribute holding a copy of data.
func Raw(name string, data []byte) Attr {
	return Attr{Name: name, Type: TypeRaw, raw: bytes.Clone(data)}
}

// Uint8 returns the value of a uint8 attribute.
func (a Attr) Uint8() (uint8, bool) {
	return uint8(a.num), a.Type == TypeUint8
}

// Uint16 returns the value of a uint16 attribute.
func (a Attr) Uint16() (uint16, bool) {
	return uint16(a.num), a.Type == TypeUint16
}

// Uint32 returns the value of a uint32 attribute.
func (a Attr) Uint32() (uint32, bool) {
	return uint32(a.num), a.Type == TypeUint32
}

// Uint64 returns the value of a uint64 attribute.
func (a Attr) Uint64() (uint64, bool) {
	return a.num, a.Type == TypeUint64
}

// Str returns the value of a string attribute.
func (a Attr) Str() (string, bool) {
	return a.str, a.Type == TypeString
}

// Bytes returns a copy of the data of a raw attribute.
func (a Attr) Bytes() ([]byte, bool) {
	if a.Type != TypeRaw {
		return nil, false
	}
	return bytes.Clone(a.raw), true
}

// Value returns the value as a Go value of the natural type
// (uint8, uint16, uint32, uint64, string or []byte).
func (a Attr) Value() any {
	switch a.Type {
	case TypeUint8:
		return uint8(a.num)
	case TypeUint16:
		return uint16(a.num)
	case TypeUint32:
		return uint32(a.num)
	case TypeUint64:
		return a.num
	case TypeString:
		return a.str
	case TypeRaw:
		return bytes.Clone(a.raw)
	default:
		return nil
	}
}

// Clone returns a deep copy of the attribute.
func (a Attr) Clone() Attr {
	c := a
	if a.raw != nil {
		c.raw = bytes.Clone(a.raw)
	}
	return c
}

// Validate checks that the attribute can be stored on a node.
func (a Attr) Validate() error {
	if a.Name == "" {
		return ErrInvalidName
	}
	if !a.Type.valid() {
		return fmt.Errorf("%w: %q has type %d", ErrInvalidType, a.Name, a.Type)
	}
	return nil
}

// Format returns a one-line description used by tree dumps.
func (a Attr) Format() string {
	switch a.Type {
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return fmt.Sprintf("%q : %s : %d (%#x)", a.Name, a.Type, a.num, a.num)
	case TypeString:
		return fmt.Sprintf("%q : string : %q", a.Name, a.str)
	case TypeRaw:
		return fmt.Sprintf("%q : raw : %d bytes", a.Name, len(a.raw))
	default:
		return fmt.Sprintf("%q : unknown", a.Name)
	}
}

// String implements fmt.Stringer.
func (a Attr) String() string {
	return a.Format()
}

// CopyList copies every attribute in list. It fails atomically: on error no
// copy is returned.
func CopyList(list []Attr) ([]Attr, error) {
	out := make([]Attr, 0, len(list))
	for i, a := range list {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}
		out = append(out, a.Clone())
	}
	return out, nil
}

// Find returns the first attribute in list with the given name and type.
// TypeAny matches any type. Entries whose name matches but whose type does
// not are skipped.
func Find(list []Attr, name string, typ Type) (Attr, bool) {
	for _, a := range list {
		if typ != TypeAny && a.Type != typ {
			continue
		}
		if a.Name == name {
			return a, true
		}
	}
	return Attr{}, false
}

// Compare orders two attribute values. Attributes of different types always
// compare as -1, as do raw values of different length.
func Compare(a, b Attr) int {
	if a.Type != b.Type {
		return -1
	}

	switch a.Type {
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		switch {
		case a.num > b.num:
			return 1
		case a.num < b.num:
			return -1
		}
		return 0
	case TypeString:
		return strings.Compare(a.str, b.str)
	case TypeRaw:
		if len(a.raw) != len(b.raw) {
			return -1
		}
		return bytes.Compare(a.raw, b.raw)
	}
	return -1
}
