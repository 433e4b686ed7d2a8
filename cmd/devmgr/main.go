// Command devmgr is a reference harness for the device manager.
//
// It installs the example drivers, boots the device tree from a device
// table and prints the result. Optionally it keeps running with an
// interactive shell, a metrics endpoint or a config watcher.
//
// Usage:
//
//	devmgr [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-event-log string     Write device manager events to this CBOR file
//	-event-categories     Comma-separated categories to record (default all)
//	-state string         Tree snapshot file (JSON), compared and rewritten on exit
//	-metrics-addr string  Serve Prometheus metrics on this address
//	-release              Unload drivers not needed after boot (default true)
//	-interactive          Start the interactive shell
//	-watch                Reload the device table when the config changes
//
// Examples:
//
//	# Boot the default table and print the tree
//	devmgr
//
//	# Boot a custom table, record events, keep a snapshot
//	devmgr -config devmgr.yaml -event-log boot.dmlog -state state.json
//
//	# Explore the tree interactively
//	devmgr -interactive -log-level debug
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/devmgr-go/devmgr/cmd/devmgr/interactive"
	"github.com/devmgr-go/devmgr/pkg/device"
	"github.com/devmgr-go/devmgr/pkg/examples"
	"github.com/devmgr-go/devmgr/pkg/inspect"
	eventlog "github.com/devmgr-go/devmgr/pkg/log"
	"github.com/devmgr-go/devmgr/pkg/module"
	"github.com/devmgr-go/devmgr/pkg/persistence"
)

// Config holds the command line configuration.
type Config struct {
	ConfigFile  string
	LogLevel    string
	EventLog    string
	EventCats   string
	StateFile   string
	MetricsAddr string
	Release     bool
	Interactive bool
	Watch       bool
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.EventLog, "event-log", "", "Write device manager events to this CBOR file")
	flag.StringVar(&config.EventCats, "event-categories", "", "Record only these event categories (registration, driver, match, removal, error)")
	flag.StringVar(&config.StateFile, "state", "", "Tree snapshot file (JSON)")
	flag.StringVar(&config.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	flag.BoolVar(&config.Release, "release", true, "Unload drivers not needed after boot")
	flag.BoolVar(&config.Interactive, "interactive", false, "Start the interactive shell")
	flag.BoolVar(&config.Watch, "watch", false, "Reload the device table when the config file changes")
}

func main() {
	flag.Parse()

	level, err := parseLevel(config.LogLevel)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	setupLogging(config.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if config.Watch && config.ConfigFile == "" {
		log.Fatal("Invalid configuration: -watch needs -config")
	}
	eventCats, err := eventlog.ParseCategories(config.EventCats)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fileCfg := defaultFileConfig()
	if config.ConfigFile != "" {
		fileCfg, err = LoadConfig(config.ConfigFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	table, err := fileCfg.Table()
	if err != nil {
		log.Fatalf("Failed to load device table: %v", err)
	}
	log.Printf("Device table: %d device(s)", table.Len())

	// Event log
	var events eventlog.Logger
	var eventFile *eventlog.FileLogger
	if config.EventLog != "" {
		eventFile, err = eventlog.NewFileLogger(config.EventLog)
		if err != nil {
			log.Fatalf("Failed to open event log: %v", err)
		}
		events = eventlog.WithCategories(eventFile, eventCats...)
		if level <= slog.LevelDebug {
			events = eventlog.NewMultiLogger(events, eventlog.NewSlogAdapter(logger))
		}
	}

	// Drivers and manager
	reg := module.NewRegistry(logger)
	drivers := examples.NewDrivers(table, logger)
	if err := fileCfg.Install(reg, drivers); err != nil {
		log.Fatalf("Failed to install drivers: %v", err)
	}

	devCfg, err := fileCfg.DeviceConfig(logger, events)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	mgr, err := device.NewManager(reg, devCfg)
	if err != nil {
		log.Fatalf("Failed to create device manager: %v", err)
	}
	log.Printf("Session: %s", mgr.SessionID())

	start := time.Now()
	if _, err := examples.RegisterRoot(mgr); err != nil {
		log.Fatalf("Failed to register root: %v", err)
	}
	log.Printf("Boot complete: %d node(s) in %s", mgr.NodeCount(), time.Since(start).Round(time.Microsecond))

	if config.Release {
		log.Printf("Released %d unused driver(s)", mgr.ReleaseUnused())
	}

	insp := inspect.NewInspector(mgr)
	formatter := inspect.NewFormatter()
	if err := formatter.FormatTree(os.Stdout, insp.InspectTree()); err != nil {
		log.Printf("Warning: failed to print tree: %v", err)
	}

	var store *persistence.TreeStateStore
	if config.StateFile != "" {
		store = persistence.NewTreeStateStore(config.StateFile)
		reportChanges(store, insp)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.MetricsAddr != "" {
		srv, err := startMetricsServer(config.MetricsAddr, logger)
		if err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if config.Watch {
		r := &reloader{path: config.ConfigFile, table: table, manager: mgr, logger: logger}
		go func() {
			if err := r.watch(ctx); err != nil {
				log.Printf("Warning: config watcher stopped: %v", err)
			}
		}()
		log.Printf("Watching %s", config.ConfigFile)
	}

	if config.Interactive {
		sh, err := interactive.New(mgr)
		if err != nil {
			log.Fatalf("Failed to create interactive shell: %v", err)
		}
		// Redirect log output through readline to avoid interfering with input
		log.SetOutput(sh.Stdout())
		go sh.Run(ctx, cancel)
	}

	// Keep running only when something is listening
	if config.Interactive || config.Watch || config.MetricsAddr != "" {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Printf("Received signal: %v", sig)
		case <-ctx.Done():
			// Context was cancelled (e.g., by interactive quit command)
		}
	}

	log.Println("Shutting down...")

	// Save state before releasing the drivers
	if store != nil {
		state := persistence.FromTree(insp.InspectTree())
		if err := store.Save(state); err != nil {
			log.Printf("Warning: Failed to save state: %v", err)
		}
	}

	cancel()

	if err := mgr.Shutdown(); err != nil {
		log.Printf("Error shutting down: %v", err)
	}
	if eventFile != nil {
		if err := eventFile.Close(); err != nil {
			log.Printf("Error closing event log: %v", err)
		}
		reportEventLog(eventFile.Path(), eventFile.Stats())
	}

	log.Println("Goodbye!")
}

// reportChanges prints how the tree differs from the previous snapshot.
func reportChanges(store *persistence.TreeStateStore, insp *inspect.Inspector) {
	prev, err := store.Load()
	if err != nil {
		log.Printf("Warning: failed to load state: %v", err)
		return
	}
	if prev == nil {
		log.Println("No previous snapshot")
		return
	}
	changes := persistence.Diff(prev, persistence.FromTree(insp.InspectTree()))
	if len(changes) == 0 {
		log.Printf("Tree unchanged since %s", prev.SavedAt.Format(time.RFC3339))
		return
	}
	log.Printf("%d change(s) since %s:", len(changes), prev.SavedAt.Format(time.RFC3339))
	for _, c := range changes {
		log.Printf("  %s", c)
	}
}

// reportEventLog prints what was written to the event log.
func reportEventLog(path string, st eventlog.FileLoggerStats) {
	log.Printf("Event log %s: %d event(s), %d byte(s)", path, st.Written, st.Bytes)
	if st.Failed > 0 {
		log.Printf("Warning: %d event(s) could not be written, last error: %v", st.Failed, st.LastError)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}
