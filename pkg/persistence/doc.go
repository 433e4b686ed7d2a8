// Package persistence provides snapshot persistence for device trees.
//
// This package handles the JSON serialization of a device tree snapshot
// (nodes, attributes, resources and driver state) so a later run can be
// compared against the hardware found at the previous boot.
package persistence
