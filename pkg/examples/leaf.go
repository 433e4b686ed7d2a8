package examples

import (
	"slices"
	"sync/atomic"

	"github.com/devmgr-go/devmgr/pkg/attr"
	"github.com/devmgr-go/devmgr/pkg/device"
)

// Scores returned by the leaf drivers.
const (
	ScoreNetClass      float32 = 0.6
	ScoreNetListed     float32 = 0.9
	ScoreGenericVideo  float32 = 0.8
	ScoreSpecificVideo float32 = 1.0
)

// identity is the part of a device node leaf drivers match on.
type identity struct {
	id  DeviceID
	typ uint16
}

// identify reads vendor, device and type from parent itself. Nodes without a
// device type are not devices.
func identify(parent *device.Node) (identity, bool) {
	m := parent.Manager()
	typ, err := m.GetAttrUint16(parent, attr.DeviceType, false)
	if err != nil {
		return identity{}, false
	}
	vendor, _ := m.GetAttrUint16(parent, attr.DeviceVendorID, false)
	id, _ := m.GetAttrUint16(parent, attr.DeviceID, false)
	return identity{id: DeviceID{Vendor: vendor, Device: id}, typ: typ}, true
}

// LeafDevice is the cookie of a leaf driver node.
type LeafDevice struct {
	Module string
	NodeID uint32
	Device DeviceID
}

// leaf holds what the leaf drivers share: registering their node below the
// matched device and allocating its cookie.
type leaf struct {
	name   string
	pretty string
	active atomic.Int32
}

func (l *leaf) register(parent *device.Node) error {
	_, err := parent.Manager().RegisterDevice(parent, l.name, []attr.Attr{
		attr.String(attr.DevicePrettyName, l.pretty),
	}, nil)
	return err
}

func (l *leaf) init(node *device.Node) (any, error) {
	dev := &LeafDevice{Module: l.name, NodeID: node.ID()}
	if p := node.Parent(); p != nil {
		if ident, ok := identify(p); ok {
			dev.Device = ident.id
		}
	}
	l.active.Add(1)
	return dev, nil
}

func (l *leaf) uninit() {
	l.active.Add(-1)
}

// NetDriver drives network controllers. Devices listed by ID score higher
// than the class match.
type NetDriver struct {
	leaf
	ids []DeviceID
}

// NewNetDriver creates the network driver claiming ids.
func NewNetDriver(ids []DeviceID) *NetDriver {
	return &NetDriver{
		leaf: leaf{name: NetModuleName, pretty: "Sample Network Interface"},
		ids:  slices.Clone(ids),
	}
}

// ModuleName implements module.Module.
func (d *NetDriver) ModuleName() string { return d.name }

// SupportsDevice scores network class devices.
func (d *NetDriver) SupportsDevice(parent *device.Node) float32 {
	ident, ok := identify(parent)
	if !ok || ident.typ != attr.ClassNetwork {
		return 0
	}
	if slices.Contains(d.ids, ident.id) {
		return ScoreNetListed
	}
	return ScoreNetClass
}

// RegisterDevice implements device.DeviceRegistrar.
func (d *NetDriver) RegisterDevice(parent *device.Node) error { return d.register(parent) }

// InitDriver implements device.DriverInitializer.
func (d *NetDriver) InitDriver(node *device.Node) (any, error) { return d.init(node) }

// UninitDriver implements device.DriverUninitializer.
func (d *NetDriver) UninitDriver(*device.Node) { d.uninit() }

// Active returns the number of initialized network interfaces.
func (d *NetDriver) Active() int { return int(d.active.Load()) }

// GenericVideoDriver drives any display adapter.
type GenericVideoDriver struct {
	leaf
}

// NewGenericVideoDriver creates the generic video driver.
func NewGenericVideoDriver() *GenericVideoDriver {
	return &GenericVideoDriver{leaf: leaf{name: GenericVideoModuleName, pretty: "Generic Framebuffer"}}
}

// ModuleName implements module.Module.
func (d *GenericVideoDriver) ModuleName() string { return d.name }

// SupportsDevice scores display class devices.
func (d *GenericVideoDriver) SupportsDevice(parent *device.Node) float32 {
	ident, ok := identify(parent)
	if !ok || ident.typ != attr.ClassDisplay {
		return 0
	}
	return ScoreGenericVideo
}

// RegisterDevice implements device.DeviceRegistrar.
func (d *GenericVideoDriver) RegisterDevice(parent *device.Node) error { return d.register(parent) }

// InitDriver implements device.DriverInitializer.
func (d *GenericVideoDriver) InitDriver(node *device.Node) (any, error) { return d.init(node) }

// UninitDriver implements device.DriverUninitializer.
func (d *GenericVideoDriver) UninitDriver(*device.Node) { d.uninit() }

// SpecificVideoDriver drives the display adapters it lists by ID.
type SpecificVideoDriver struct {
	leaf
	ids []DeviceID
}

// NewSpecificVideoDriver creates the specific video driver claiming ids.
func NewSpecificVideoDriver(ids []DeviceID) *SpecificVideoDriver {
	return &SpecificVideoDriver{
		leaf: leaf{name: SpecificVideoModuleName, pretty: "Accelerated Display"},
		ids:  slices.Clone(ids),
	}
}

// ModuleName implements module.Module.
func (d *SpecificVideoDriver) ModuleName() string { return d.name }

// SupportsDevice scores listed display adapters.
func (d *SpecificVideoDriver) SupportsDevice(parent *device.Node) float32 {
	ident, ok := identify(parent)
	if !ok || ident.typ != attr.ClassDisplay || !slices.Contains(d.ids, ident.id) {
		return 0
	}
	return ScoreSpecificVideo
}

// RegisterDevice implements device.DeviceRegistrar.
func (d *SpecificVideoDriver) RegisterDevice(parent *device.Node) error { return d.register(parent) }

// InitDriver implements device.DriverInitializer.
func (d *SpecificVideoDriver) InitDriver(node *device.Node) (any, error) { return d.init(node) }

// UninitDriver implements device.DriverUninitializer.
func (d *SpecificVideoDriver) UninitDriver(*device.Node) { d.uninit() }
