package inspect

import (
	"strings"

	"github.com/devmgr-go/devmgr/pkg/attr"
)

// attributeAliases maps short names to well-known attribute names.
var attributeAliases = map[string]string{
	"bus":       attr.DeviceBus,
	"pretty":    attr.DevicePrettyName,
	"name":      attr.DevicePrettyName,
	"vendor":    attr.DeviceVendorID,
	"id":        attr.DeviceID,
	"type":      attr.DeviceType,
	"subtype":   attr.DeviceSubType,
	"flags":     attr.DeviceFlags,
	"driver":    attr.DeviceDriver,
	"fixed":     attr.DriverFixedChild,
	"findflags": attr.DriverFindChildFlags,
}

// ResolveAttributeName resolves a short alias to its attribute name
// (case-insensitive). Unknown names are returned unchanged.
func ResolveAttributeName(name string) string {
	if full, ok := attributeAliases[strings.ToLower(name)]; ok {
		return full
	}
	return name
}

// GetAttributeAlias returns the short alias of a well-known attribute name,
// or "" if it has none. "pretty" wins over "name".
func GetAttributeAlias(name string) string {
	if name == attr.DevicePrettyName {
		return "pretty"
	}
	for alias, full := range attributeAliases {
		if full == name {
			return alias
		}
	}
	return ""
}

// classNames names the device classes published in DeviceType.
var classNames = map[uint16]string{
	attr.ClassMassStorage: "mass storage",
	attr.ClassNetwork:     "network",
	attr.ClassDisplay:     "display",
	attr.ClassMultimedia:  "multimedia",
	attr.ClassBridge:      "bridge",
}

// GetClassName returns the name of a device class, or "" if unknown.
func GetClassName(class uint16) string {
	return classNames[class]
}
