// Package examples provides reference drivers demonstrating how to build
// bus and leaf drivers on top of the device manager.
//
// The example drivers show:
//   - A root node with multiple-children matching (RootDriver)
//   - A bus manager publishing its own device table (SampleBus, SampleDevice)
//   - Leaf drivers scoring devices by class and by vendor/device ID
//     (NetDriver, GenericVideoDriver, SpecificVideoDriver)
//
// The hardware the sample bus reports comes from a DeviceTable, which can be
// loaded from YAML:
//
//	devices:
//	  - name: "Sample Ethernet"
//	    vendor: 0x8086
//	    device: 0x100e
//	    type: 0x02
//	netIds:
//	  - {vendor: 0x8086, device: 0x100e}
//
// InstallAll installs the whole set into a module registry.
package examples
