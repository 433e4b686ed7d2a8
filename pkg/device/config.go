package device

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/devmgr-go/devmgr/pkg/log"
)

// DriverVersion is the module interface version of device drivers.
const DriverVersion = "driver_v1"

// Config configures a Manager.
type Config struct {
	// SearchPaths are the module name prefixes scanned for candidate
	// drivers during dynamic matching, in order.
	SearchPaths []string

	// Version is the module interface version candidates must carry as the
	// last element of their name.
	Version string

	// Logger is the operational logger. Nil disables logging.
	Logger *slog.Logger

	// EventLog receives structured device manager events. Nil disables
	// event capture.
	EventLog log.Logger
}

// DefaultConfig returns the default configuration: drivers under "bus"
// with version "driver_v1".
func DefaultConfig() Config {
	return Config{
		SearchPaths: []string{"bus"},
		Version:     DriverVersion,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.SearchPaths) == 0 {
		return fmt.Errorf("%w: no search paths", ErrInvalidConfig)
	}
	for _, p := range c.SearchPaths {
		if p == "" || strings.HasPrefix(p, "/") {
			return fmt.Errorf("%w: search path %q", ErrInvalidConfig, p)
		}
	}
	if c.Version == "" || strings.Contains(c.Version, "/") {
		return fmt.Errorf("%w: version %q", ErrInvalidConfig, c.Version)
	}
	return nil
}
