package device

import "errors"

// Manager and node errors.
var (
	// ErrInvalidArgument is returned for a nil node, an empty module name or
	// malformed resources.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRootExists is returned when a second node without parent is registered.
	ErrRootExists = errors.New("root node already registered")

	// ErrNameInUse is returned when the parent already has a child with the
	// same attributes.
	ErrNameInUse = errors.New("device already registered")

	// ErrAttrNotFound is returned when no attribute has the requested name and type.
	ErrAttrNotFound = errors.New("attribute not found")

	// ErrEndOfList ends an attribute or child iteration.
	ErrEndOfList = errors.New("end of list")

	// ErrNoInit is returned when the node's driver is not initialized.
	ErrNoInit = errors.New("driver not initialized")

	// ErrInvalidConfig is returned by NewManager for an unusable Config.
	ErrInvalidConfig = errors.New("invalid device manager config")

	// ErrNotSupported is returned when a fixed child driver does not
	// support its parent.
	ErrNotSupported = errors.New("driver does not support device")

	// ErrAlreadyRegistered is returned when Register runs twice on a node.
	ErrAlreadyRegistered = errors.New("node already registered")

	// ErrResourceBusy is returned when an I/O resource overlaps one held by
	// another node.
	ErrResourceBusy = errors.New("resource busy")

	// ErrUnsupported is returned by UnregisterDevice, which is not supported.
	ErrUnsupported = errors.New("operation not supported")

	// ErrShutdown is returned after the manager has been shut down.
	ErrShutdown = errors.New("device manager shut down")
)
