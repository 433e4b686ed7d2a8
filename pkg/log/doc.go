// Package log provides structured event capture for the device manager.
//
// This package defines the Logger interface and Event types for recording
// what the device manager does while it builds the node tree: node
// registrations, driver init/uninit transitions, driver match scoring, and
// failures. It is separate from operational logging (slog) - event capture
// provides a complete machine-readable trace for debugging and analysis.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.EventLog = log.NewSlogAdapter(slog.Default())
//
//	// For analysis: write to binary file
//	cfg.EventLog, _ = log.NewFileLogger("/var/log/devmgr/boot.dmlog")
//
//	// Both: use MultiLogger
//	cfg.EventLog = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Registration: a node was attached, registered or rolled back
//   - Driver: a node's driver was initialized or uninitialized
//   - Match: a candidate driver was scored during dynamic matching
//   - Removal: a node was reported removed
//   - Error: an operation failed
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys. The
// devmgr-log command views and summarizes them.
package log
