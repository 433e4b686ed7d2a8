package examples

import (
	"fmt"
	"log/slog"

	"github.com/devmgr-go/devmgr/pkg/module"
)

// Drivers is the set of example drivers installed by InstallAll.
type Drivers struct {
	Root          RootDriver
	Bus           *SampleBus
	Device        *SampleDevice
	Net           *NetDriver
	GenericVideo  *GenericVideoDriver
	SpecificVideo *SpecificVideoDriver
}

// NewDrivers creates the example drivers for table. logger may be nil.
func NewDrivers(table *DeviceTable, logger *slog.Logger) *Drivers {
	return &Drivers{
		Bus:           NewSampleBus(table, logger),
		Device:        &SampleDevice{},
		Net:           NewNetDriver(table.NetIDs()),
		GenericVideo:  NewGenericVideoDriver(),
		SpecificVideo: NewSpecificVideoDriver(table.VideoIDs()),
	}
}

// Modules returns the drivers in installation order. Dynamic matching
// breaks score ties by this order.
func (d *Drivers) Modules() []module.Module {
	return []module.Module{
		d.Root,
		d.Bus,
		d.Device,
		d.Net,
		d.GenericVideo,
		d.SpecificVideo,
	}
}

// Install installs every driver into reg.
func (d *Drivers) Install(reg *module.Registry) error {
	for _, m := range d.Modules() {
		if err := reg.Install(m); err != nil {
			return fmt.Errorf("install %s: %w", m.ModuleName(), err)
		}
	}
	return nil
}

// InstallAll creates the example drivers for table and installs them.
func InstallAll(reg *module.Registry, table *DeviceTable, logger *slog.Logger) (*Drivers, error) {
	d := NewDrivers(table, logger)
	if err := d.Install(reg); err != nil {
		return nil, err
	}
	return d, nil
}
