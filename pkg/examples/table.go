package examples

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/devmgr-go/devmgr/pkg/attr"
)

// ErrInvalidTable is returned for malformed device tables.
var ErrInvalidTable = errors.New("invalid device table")

// DeviceEntry is one device reported by the sample bus.
type DeviceEntry struct {
	Name    string `yaml:"name"`
	Vendor  uint16 `yaml:"vendor"`
	Device  uint16 `yaml:"device"`
	Type    uint16 `yaml:"type"`
	SubType uint16 `yaml:"subtype"`

	// FindChildFlags is published as the device's find child flags.
	FindChildFlags uint32 `yaml:"findChildFlags"`
}

// Attributes returns the node attributes describing the entry.
func (e DeviceEntry) Attributes() []attr.Attr {
	return []attr.Attr{
		attr.String(attr.DeviceBus, SampleBusType),
		attr.Uint16(attr.DeviceVendorID, e.Vendor),
		attr.Uint16(attr.DeviceID, e.Device),
		attr.Uint16(attr.DeviceType, e.Type),
		attr.Uint16(attr.DeviceSubType, e.SubType),
		attr.String(attr.DevicePrettyName, e.Name),
		attr.Uint32(attr.DriverFindChildFlags, e.FindChildFlags),
	}
}

// DeviceID identifies a device by vendor and device ID.
type DeviceID struct {
	Vendor uint16 `yaml:"vendor"`
	Device uint16 `yaml:"device"`
}

func (id DeviceID) String() string {
	return fmt.Sprintf("%04x:%04x", id.Vendor, id.Device)
}

// RawDeviceTable is the YAML form of a device table.
type RawDeviceTable struct {
	Devices  []DeviceEntry `yaml:"devices"`
	NetIDs   []DeviceID    `yaml:"netIds"`
	VideoIDs []DeviceID    `yaml:"videoIds"`
}

// DeviceTable holds the devices the sample bus reports and the IDs the leaf
// drivers claim. Entries can be added while the bus is running; a rescan
// publishes them. It is safe for concurrent use.
type DeviceTable struct {
	mu       sync.RWMutex
	devices  []DeviceEntry
	netIDs   []DeviceID
	videoIDs []DeviceID
}

// NewDeviceTable creates a table with the given devices.
func NewDeviceTable(devices ...DeviceEntry) *DeviceTable {
	return &DeviceTable{devices: slices.Clone(devices)}
}

// ParseDeviceTable parses a device table from YAML bytes.
func ParseDeviceTable(data []byte) (*DeviceTable, error) {
	var raw RawDeviceTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing device table: %w", err)
	}
	return FromRaw(raw)
}

// LoadDeviceTable loads and parses a device table from a file.
func LoadDeviceTable(path string) (*DeviceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseDeviceTable(data)
}

// FromRaw validates raw and builds a table from it.
func FromRaw(raw RawDeviceTable) (*DeviceTable, error) {
	for i, d := range raw.Devices {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: device %d has no name", ErrInvalidTable, i)
		}
		if d.Vendor == 0 {
			return nil, fmt.Errorf("%w: device %q has no vendor", ErrInvalidTable, d.Name)
		}
	}
	return &DeviceTable{
		devices:  slices.Clone(raw.Devices),
		netIDs:   slices.Clone(raw.NetIDs),
		videoIDs: slices.Clone(raw.VideoIDs),
	}, nil
}

// DefaultDeviceTable returns a table with one network card and two display
// adapters, one of which is claimed by the specific video driver.
func DefaultDeviceTable() *DeviceTable {
	t, _ := FromRaw(RawDeviceTable{
		Devices: []DeviceEntry{
			{Name: "Sample Ethernet", Vendor: 0x8086, Device: 0x100e, Type: attr.ClassNetwork},
			{Name: "Sample VGA", Vendor: 0x1234, Device: 0x1111, Type: attr.ClassDisplay},
			{Name: "Sample Accelerator", Vendor: 0x10de, Device: 0x0a20, Type: attr.ClassDisplay},
		},
		NetIDs:   []DeviceID{{Vendor: 0x8086, Device: 0x100e}},
		VideoIDs: []DeviceID{{Vendor: 0x10de, Device: 0x0a20}},
	})
	return t
}

// Devices returns a copy of the table's devices.
func (t *DeviceTable) Devices() []DeviceEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.devices)
}

// NetIDs returns the IDs claimed by the network driver.
func (t *DeviceTable) NetIDs() []DeviceID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.netIDs)
}

// VideoIDs returns the IDs claimed by the specific video driver.
func (t *DeviceTable) VideoIDs() []DeviceID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.videoIDs)
}

// Add appends devices to the table.
func (t *DeviceTable) Add(devices ...DeviceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.devices = append(t.devices, devices...)
}

// Merge adds the devices of other that t does not list yet and returns how
// many were added. Devices are compared by vendor, device and name.
func (t *DeviceTable) Merge(other *DeviceTable) int {
	incoming := other.Devices()

	t.mu.Lock()
	defer t.mu.Unlock()
	added := 0
	for _, d := range incoming {
		known := slices.ContainsFunc(t.devices, func(e DeviceEntry) bool {
			return e.Vendor == d.Vendor && e.Device == d.Device && e.Name == d.Name
		})
		if !known {
			t.devices = append(t.devices, d)
			added++
		}
	}
	return added
}

// Len returns the number of devices.
func (t *DeviceTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.devices)
}
