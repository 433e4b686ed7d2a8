// Package attr implements the typed, named attributes attached to device nodes.
//
// An attribute carries one value whose Go representation is selected by its
// Type:
//
//	TypeUint8, TypeUint16, TypeUint32, TypeUint64  fixed-width unsigned integers
//	TypeString                                     UTF-8 text
//	TypeRaw                                        opaque bytes (owned copy)
//
// Attributes serve two purposes on a node:
//   - Identification: bus name, vendor and device IDs, class codes
//   - Configuration: fixed children, child search flags, device flags
//
// # Lookup
//
// Lookups match on the exact name AND the exact type. A name match with a
// different type is treated as a miss, which lets a child node shadow a parent
// attribute of a different type without ambiguity. There is no implicit
// widening: a uint16 query never returns a uint32 attribute.
//
// # Ownership
//
// Attributes are values. Raw data is copied on construction and on Clone, so
// a node never aliases caller memory.
package attr
