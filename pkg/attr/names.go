package attr

// Well-known attribute names.
const (
	// DeviceBus names the bus a node provides to its children (string).
	// Nodes without it are not buses.
	DeviceBus = "device/bus"

	// DevicePrettyName is a human-readable node name (string).
	DevicePrettyName = "device/pretty name"

	// DeviceVendorID is the vendor identifier (uint16).
	DeviceVendorID = "device/vendor"

	// DeviceID is the device identifier within the vendor (uint16).
	DeviceID = "device/id"

	// DeviceType is the device class code (uint16).
	DeviceType = "device/type"

	// DeviceSubType is the device subclass code (uint16).
	DeviceSubType = "device/subtype"

	// DeviceFlags holds node flags such as KeepDriverLoaded (uint32).
	DeviceFlags = "device/flags"

	// DeviceDriver is added to every node and holds its module name (string).
	DeviceDriver = "device/driver"

	// DriverFixedChild names a driver module that must be bound as a child
	// unconditionally (string, may repeat).
	DriverFixedChild = "device/fixed child"

	// DriverFindChildFlags asks for dynamic child matching (uint32, see
	// FindChildOnDemand and FindMultipleChildren).
	DriverFindChildFlags = "device/find child flags"
)

// Flags for DriverFindChildFlags.
const (
	// FindChildOnDemand defers dynamic matching until the node is probed.
	FindChildOnDemand uint32 = 1 << iota

	// FindMultipleChildren registers every supporting driver, not only the
	// best one.
	FindMultipleChildren
)

// Flags for DeviceFlags.
const (
	// KeepDriverLoaded keeps the node's driver initialized until shutdown.
	KeepDriverLoaded uint32 = 1 << iota
)

// Device class codes used by the sample drivers (PCI base classes).
const (
	ClassMassStorage uint16 = 0x01
	ClassNetwork     uint16 = 0x02
	ClassDisplay     uint16 = 0x03
	ClassMultimedia  uint16 = 0x04
	ClassBridge      uint16 = 0x06
)
