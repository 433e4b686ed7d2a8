// Package device implements the device tree and driver binding.
//
// A Manager owns one tree of Nodes. RegisterDevice creates a node for a
// driver module, loads and initializes the driver, attaches the node to its
// parent, and registers it. Registration binds the node's children in three
// steps:
//
//   - Fixed children: every "device/fixed child" attribute names a driver
//     that must support the node and register a child. Any failure fails the
//     whole registration.
//   - Driver children: with no fixed children, the driver's
//     RegisterChildDevices hook publishes the children it knows about.
//   - Dynamic matching: if that published nothing and "device/find child
//     flags" is set (on the node or an ancestor), every driver under the
//     configured search paths is scored with SupportsDevice. The best one
//     registers its child, or every supporting one with
//     FindMultipleChildren. FindChildOnDemand defers matching to Probe.
//
// Drivers are modules from a module.Registry. Their hooks are optional
// interfaces (DeviceSupporter, DeviceRegistrar, DriverInitializer, ...)
// checked at run time.
//
// Nodes are never removed from the tree; UnregisterDevice always fails.
// NotifyRemoved marks a subtree as gone without detaching it.
package device
