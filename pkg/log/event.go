package log

import (
	"time"
)

// Event represents a device manager event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the manager instance (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"3,keyasint"`

	// NodeID is the node the event is about (0 before the node exists).
	NodeID uint32 `cbor:"4,keyasint,omitempty"`

	// ParentID is the node's parent (0 for the root).
	ParentID uint32 `cbor:"5,keyasint,omitempty"`

	// Module is the node's module name.
	Module string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Registration *RegistrationEvent `cbor:"10,keyasint,omitempty"`
	Driver       *DriverEvent       `cbor:"11,keyasint,omitempty"`
	Match        *MatchEvent        `cbor:"12,keyasint,omitempty"`
	Error        *ErrorEventData    `cbor:"13,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryRegistration indicates a node registration step.
	CategoryRegistration Category = 0
	// CategoryDriver indicates a driver init/uninit transition.
	CategoryDriver Category = 1
	// CategoryMatch indicates a dynamic matching decision.
	CategoryMatch Category = 2
	// CategoryRemoval indicates a removal notification.
	CategoryRemoval Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryRegistration:
		return "REGISTRATION"
	case CategoryDriver:
		return "DRIVER"
	case CategoryMatch:
		return "MATCH"
	case CategoryRemoval:
		return "REMOVAL"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// RegistrationEvent captures a step of node registration.
type RegistrationEvent struct {
	// Stage is the registration step.
	Stage Stage `cbor:"1,keyasint"`

	// Attributes is the number of attributes on the node.
	Attributes int `cbor:"2,keyasint,omitempty"`

	// Children is the number of children after the step.
	Children int `cbor:"3,keyasint,omitempty"`

	// Detail names the module or reason involved (if any).
	Detail string `cbor:"4,keyasint,omitempty"`
}

// Stage is a registration step.
type Stage uint8

const (
	// StageAttached indicates the node was attached to its parent.
	StageAttached Stage = 0
	// StageFixedChild indicates a fixed child driver was bound.
	StageFixedChild Stage = 1
	// StageChildDevices indicates the driver published its own children.
	StageChildDevices Stage = 2
	// StageDynamic indicates dynamic matching ran.
	StageDynamic Stage = 3
	// StageDeferred indicates dynamic matching was deferred until probing.
	StageDeferred Stage = 4
	// StageRegistered indicates the node completed registration.
	StageRegistered Stage = 5
	// StageRolledBack indicates the node was discarded after a failure.
	StageRolledBack Stage = 6
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageAttached:
		return "ATTACHED"
	case StageFixedChild:
		return "FIXED_CHILD"
	case StageChildDevices:
		return "CHILD_DEVICES"
	case StageDynamic:
		return "DYNAMIC"
	case StageDeferred:
		return "DEFERRED"
	case StageRegistered:
		return "REGISTERED"
	case StageRolledBack:
		return "ROLLED_BACK"
	default:
		return "UNKNOWN"
	}
}

// DriverEvent captures a driver init/uninit transition.
type DriverEvent struct {
	// Action is what happened to the driver.
	Action DriverAction `cbor:"1,keyasint"`

	// InitCount is the node's init count after the action.
	InitCount int `cbor:"2,keyasint"`
}

// DriverAction is a driver lifecycle transition.
type DriverAction uint8

const (
	// DriverLoaded indicates the module was loaded and init_driver ran.
	DriverLoaded DriverAction = 0
	// DriverUnloaded indicates uninit_driver ran and the module was released.
	DriverUnloaded DriverAction = 1
)

// String returns the action name.
func (a DriverAction) String() string {
	switch a {
	case DriverLoaded:
		return "LOADED"
	case DriverUnloaded:
		return "UNLOADED"
	default:
		return "UNKNOWN"
	}
}

// MatchEvent captures the scoring of one candidate driver.
type MatchEvent struct {
	// Candidate is the candidate driver module name.
	Candidate string `cbor:"1,keyasint"`

	// Score is the value returned by supports_device.
	Score float32 `cbor:"2,keyasint"`

	// Selected is set when the candidate was registered.
	Selected bool `cbor:"3,keyasint,omitempty"`

	// Multiple is set when the node accepts multiple children.
	Multiple bool `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures a failed operation.
type ErrorEventData struct {
	// Op is the operation that failed (e.g. "register", "init_driver").
	Op string `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`
}
