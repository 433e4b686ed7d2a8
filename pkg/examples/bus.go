package examples

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/devmgr-go/devmgr/pkg/attr"
	"github.com/devmgr-go/devmgr/pkg/device"
)

// Module names of the example drivers.
const (
	RootModuleName          = "system/devices_root/driver_v1"
	SampleBusModuleName     = "bus_managers/sample_bus/driver_v1"
	SampleDeviceModuleName  = "bus_managers/sample_bus/device/driver_v1"
	NetModuleName           = "bus_drivers/net/sample_net/driver_v1"
	GenericVideoModuleName  = "bus_drivers/graphics/generic_video/driver_v1"
	SpecificVideoModuleName = "bus_drivers/graphics/specific_video/driver_v1"
)

// Bus names published in DeviceBus.
const (
	RootBusType   = "root"
	SampleBusType = "sample"
)

// The sample bus claims the legacy configuration ports.
var sampleBusPorts = []device.Resource{
	{Type: device.ResourcePort, Base: 0xcf8, Length: 8},
}

// RootDriver backs the root node. It has no hooks; the root's attributes ask
// for every supporting bus driver to be bound below it.
type RootDriver struct{}

// ModuleName implements module.Module.
func (RootDriver) ModuleName() string { return RootModuleName }

// RootAttributes returns the attributes of the root node.
func RootAttributes() []attr.Attr {
	return []attr.Attr{
		attr.String(attr.DevicePrettyName, "Devices Root"),
		attr.String(attr.DeviceBus, RootBusType),
		attr.Uint32(attr.DriverFindChildFlags, attr.FindMultipleChildren),
		attr.Uint32(attr.DeviceFlags, attr.KeepDriverLoaded),
	}
}

// RegisterRoot registers the root node of m.
func RegisterRoot(m *device.Manager) (*device.Node, error) {
	return m.RegisterDevice(nil, RootModuleName, RootAttributes(), nil)
}

// SampleBus is a bus manager attaching to the root and publishing one device
// node per DeviceTable entry.
type SampleBus struct {
	table   *DeviceTable
	logger  *slog.Logger
	removed atomic.Int32
}

// NewSampleBus creates the bus manager. logger may be nil.
func NewSampleBus(table *DeviceTable, logger *slog.Logger) *SampleBus {
	return &SampleBus{table: table, logger: logger}
}

// ModuleName implements module.Module.
func (b *SampleBus) ModuleName() string { return SampleBusModuleName }

// SupportsDevice claims the root bus.
func (b *SampleBus) SupportsDevice(parent *device.Node) float32 {
	bus, err := parent.Manager().GetAttrString(parent, attr.DeviceBus, false)
	if err != nil || bus != RootBusType {
		return 0
	}
	return 1.0
}

// RegisterDevice publishes the bus node below parent.
func (b *SampleBus) RegisterDevice(parent *device.Node) error {
	_, err := parent.Manager().RegisterDevice(parent, SampleBusModuleName, []attr.Attr{
		attr.String(attr.DevicePrettyName, "Sample Bus"),
	}, sampleBusPorts)
	return err
}

// InitDriver hands the bus node back as cookie.
func (b *SampleBus) InitDriver(node *device.Node) (any, error) {
	b.debugLog("sample bus initialized", "node", node.ID())
	return node, nil
}

// RegisterChildDevices publishes every table entry.
func (b *SampleBus) RegisterChildDevices(cookie any) error {
	node, ok := cookie.(*device.Node)
	if !ok {
		return fmt.Errorf("sample bus: unexpected cookie %T", cookie)
	}
	_, err := b.publish(node)
	return err
}

// RescanChildDevices publishes table entries added since the last scan.
func (b *SampleBus) RescanChildDevices(cookie any) error {
	node, ok := cookie.(*device.Node)
	if !ok {
		return fmt.Errorf("sample bus: unexpected cookie %T", cookie)
	}
	added, err := b.publish(node)
	b.debugLog("sample bus rescanned", "node", node.ID(), "added", added)
	return err
}

// DeviceRemoved counts removals of the bus.
func (b *SampleBus) DeviceRemoved(node *device.Node) {
	b.removed.Add(1)
	b.debugLog("sample bus removed", "node", node.ID())
}

// Removed returns how many times the bus was reported removed.
func (b *SampleBus) Removed() int {
	return int(b.removed.Load())
}

func (b *SampleBus) publish(node *device.Node) (int, error) {
	m := node.Manager()
	added := 0
	for _, entry := range b.table.Devices() {
		_, err := m.RegisterDevice(node, SampleDeviceModuleName, entry.Attributes(), nil)
		switch {
		case err == nil:
			added++
		case errors.Is(err, device.ErrNameInUse):
			// already published
		default:
			return added, fmt.Errorf("publish %q: %w", entry.Name, err)
		}
	}
	return added, nil
}

func (b *SampleBus) debugLog(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

// SampleDevice backs the device nodes published by the sample bus. Its cookie
// describes the device.
type SampleDevice struct {
	active atomic.Int32
}

// DeviceInfo is the cookie of a sample device node.
type DeviceInfo struct {
	Name string
	ID   DeviceID
	Type uint16
}

// ModuleName implements module.Module.
func (d *SampleDevice) ModuleName() string { return SampleDeviceModuleName }

// InitDriver reads the device description from the node.
func (d *SampleDevice) InitDriver(node *device.Node) (any, error) {
	m := node.Manager()
	vendor, err := m.GetAttrUint16(node, attr.DeviceVendorID, false)
	if err != nil {
		return nil, err
	}
	id, err := m.GetAttrUint16(node, attr.DeviceID, false)
	if err != nil {
		return nil, err
	}
	typ, _ := m.GetAttrUint16(node, attr.DeviceType, false)
	name, _ := m.GetAttrString(node, attr.DevicePrettyName, false)

	d.active.Add(1)
	return &DeviceInfo{Name: name, ID: DeviceID{Vendor: vendor, Device: id}, Type: typ}, nil
}

// UninitDriver implements device.DriverUninitializer.
func (d *SampleDevice) UninitDriver(*device.Node) {
	d.active.Add(-1)
}

// Active returns the number of initialized device nodes.
func (d *SampleDevice) Active() int {
	return int(d.active.Load())
}
