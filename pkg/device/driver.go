package device

import "github.com/devmgr-go/devmgr/pkg/module"

// Driver is a module that can back a device node. All hooks are optional
// and are discovered through the capability interfaces below; a driver that
// implements none of them still binds to a node.
type Driver interface {
	module.Module
}

// DeviceSupporter scores how well a driver supports a device below parent.
// Zero or negative means "not supported"; higher means a more specific match.
type DeviceSupporter interface {
	SupportsDevice(parent *Node) float32
}

// DeviceRegistrar publishes the driver's own node as a child of parent,
// normally through parent.Manager().RegisterDevice.
type DeviceRegistrar interface {
	RegisterDevice(parent *Node) error
}

// DriverInitializer is called when a node's driver is first initialized.
// The returned cookie is handed back to the child hooks.
type DriverInitializer interface {
	InitDriver(node *Node) (cookie any, err error)
}

// DriverUninitializer is called when a node's last init reference is dropped.
type DriverUninitializer interface {
	UninitDriver(node *Node)
}

// ChildRegistrar publishes children the driver knows about by itself.
type ChildRegistrar interface {
	RegisterChildDevices(cookie any) error
}

// ChildRescanner publishes children that appeared since registration.
type ChildRescanner interface {
	RescanChildDevices(cookie any) error
}

// RemovalNotifier is told when the hardware behind a node went away.
type RemovalNotifier interface {
	DeviceRemoved(node *Node)
}

// matcher is a driver usable as a dynamic or fixed child candidate.
type matcher interface {
	Driver
	DeviceSupporter
	DeviceRegistrar
}

func asMatcher(m module.Module) (matcher, bool) {
	d, ok := m.(matcher)
	return d, ok
}
