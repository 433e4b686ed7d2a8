package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/devmgr-go/devmgr/pkg/device"
	"github.com/devmgr-go/devmgr/pkg/examples"
	eventlog "github.com/devmgr-go/devmgr/pkg/log"
	"github.com/devmgr-go/devmgr/pkg/module"
)

// FileConfig is the YAML configuration of the harness.
//
//	searchPaths: [bus]
//	version: driver_v1
//	disable:
//	  - bus_drivers/graphics/specific_video/driver_v1
//	deviceTable: devices.yaml   # or inline devices/netIds/videoIds
type FileConfig struct {
	SearchPaths []string `yaml:"searchPaths"`
	Version     string   `yaml:"version"`

	// Disable lists driver modules that are not installed.
	Disable []string `yaml:"disable"`

	// DeviceTable is a device table file, relative to the config file.
	DeviceTable string `yaml:"deviceTable"`

	// Inline device table, used when DeviceTable is empty.
	Devices examples.RawDeviceTable `yaml:",inline"`

	dir string
}

// ParseConfig parses a harness configuration from YAML bytes. Relative paths
// are resolved against dir.
func ParseConfig(data []byte, dir string) (*FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.dir = dir
	if _, err := cfg.DeviceConfig(nil, nil); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig loads and parses a configuration file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseConfig(data, filepath.Dir(path))
}

// DeviceConfig returns the manager configuration: defaults overridden by the
// file.
func (c *FileConfig) DeviceConfig(logger *slog.Logger, events eventlog.Logger) (device.Config, error) {
	cfg := device.DefaultConfig()
	if len(c.SearchPaths) > 0 {
		cfg.SearchPaths = slices.Clone(c.SearchPaths)
	}
	if c.Version != "" {
		cfg.Version = c.Version
	}
	cfg.Logger = logger
	cfg.EventLog = events
	if err := cfg.Validate(); err != nil {
		return device.Config{}, err
	}
	return cfg, nil
}

// TablePath returns the resolved device table file, or "" for an inline or
// default table.
func (c *FileConfig) TablePath() string {
	if c.DeviceTable == "" {
		return ""
	}
	if filepath.IsAbs(c.DeviceTable) {
		return c.DeviceTable
	}
	return filepath.Join(c.dir, c.DeviceTable)
}

// Table returns the configured device table. Without table file or inline
// devices the default table is used.
func (c *FileConfig) Table() (*examples.DeviceTable, error) {
	if path := c.TablePath(); path != "" {
		return examples.LoadDeviceTable(path)
	}
	if len(c.Devices.Devices) > 0 {
		return examples.FromRaw(c.Devices)
	}
	return examples.DefaultDeviceTable(), nil
}

// Install installs every example driver not disabled.
func (c *FileConfig) Install(reg *module.Registry, drivers *examples.Drivers) error {
	for _, m := range drivers.Modules() {
		if slices.Contains(c.Disable, m.ModuleName()) {
			continue
		}
		if err := reg.Install(m); err != nil {
			return fmt.Errorf("install %s: %w", m.ModuleName(), err)
		}
	}
	return nil
}

// defaultFileConfig is used when no config file is given.
func defaultFileConfig() *FileConfig {
	return &FileConfig{dir: "."}
}
