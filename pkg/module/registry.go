// Package module provides the in-process module loader used by the device
// manager: named modules, reference-counted Get/Put, and prefix/version
// module lists.
//
// A module is loaded on the first Get and unloaded when the last reference is
// Put. Modules that need setup or teardown implement Initializer and
// Uninitializer; a failing InitModule is reported as a load failure and leaves
// the module unreferenced.
package module

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Registry errors.
var (
	ErrNotFound    = errors.New("module not found")
	ErrExists      = errors.New("module already installed")
	ErrInvalidName = errors.New("invalid module name")
	ErrBusy        = errors.New("module is in use")
	ErrNotLoaded   = errors.New("module is not loaded")
	ErrLoadFailed  = errors.New("module load failed")
	ErrEndOfList   = errors.New("end of module list")
)

// Module is a loadable unit identified by a hierarchical, path-like name such
// as "bus_managers/sample_bus/driver_v1".
type Module interface {
	ModuleName() string
}

// Initializer is implemented by modules that need setup when loaded.
type Initializer interface {
	InitModule() error
}

// Uninitializer is implemented by modules that need teardown when unloaded.
type Uninitializer interface {
	UninitModule()
}

type entry struct {
	module    Module
	refs      int
	loadCount int
}

// Registry holds installed modules and their reference counts.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	modules map[string]*entry
	order   []string
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. logger may be nil.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		modules: make(map[string]*entry),
		logger:  logger,
	}
}

// Install adds a module. Names must be unique.
func (r *Registry) Install(m Module) error {
	if m == nil {
		return fmt.Errorf("%w: nil module", ErrInvalidName)
	}
	name := m.ModuleName()
	if name == "" || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[name]; exists {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	r.modules[name] = &entry{module: m}
	r.order = append(r.order, name)
	r.debugLog("module installed", "module", name)
	return nil
}

// Uninstall removes a module that is not referenced.
func (r *Registry) Uninstall(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.modules[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if e.refs > 0 {
		return fmt.Errorf("%w: %s (%d references)", ErrBusy, name, e.refs)
	}

	delete(r.modules, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.debugLog("module uninstalled", "module", name)
	return nil
}

// Get acquires a reference to the named module, loading it on first use.
func (r *Registry) Get(name string) (Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.modules[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if e.refs == 0 {
		if init, ok := e.module.(Initializer); ok {
			if err := init.InitModule(); err != nil {
				r.debugLog("module load failed", "module", name, "error", err)
				return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, name, err)
			}
		}
		e.loadCount++
		r.debugLog("module loaded", "module", name)
	}
	e.refs++
	return e.module, nil
}

// Put releases a reference acquired by Get, unloading the module when the
// last reference goes away.
func (r *Registry) Put(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.modules[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if e.refs == 0 {
		return fmt.Errorf("%w: %s", ErrNotLoaded, name)
	}

	e.refs--
	if e.refs == 0 {
		if uninit, ok := e.module.(Uninitializer); ok {
			uninit.UninitModule()
		}
		r.debugLog("module unloaded", "module", name)
	}
	return nil
}

// RefCount returns the number of references held on the module.
func (r *Registry) RefCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, exists := r.modules[name]; exists {
		return e.refs
	}
	return 0
}

// LoadCount returns how many times the module went from unloaded to loaded.
func (r *Registry) LoadCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, exists := r.modules[name]; exists {
		return e.loadCount
	}
	return 0
}

// Names returns the installed module names in installation order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// OpenList returns a list of installed modules whose name starts with prefix
// and whose last path element equals version. An empty version matches all.
// The list is a snapshot; it does not reference any module.
func (r *Registry) OpenList(prefix, version string) *List {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for _, name := range r.order {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if version != "" && lastElement(name) != version {
			continue
		}
		names = append(names, name)
	}
	return &List{names: names}
}

func (r *Registry) debugLog(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func lastElement(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// List iterates over module names returned by OpenList.
type List struct {
	names  []string
	next   int
	closed bool
}

// ReadNext returns the next module name, or ErrEndOfList.
func (l *List) ReadNext() (string, error) {
	if l.closed || l.next >= len(l.names) {
		return "", ErrEndOfList
	}
	name := l.names[l.next]
	l.next++
	return name, nil
}

// Len returns the number of names in the list.
func (l *List) Len() int {
	return len(l.names)
}

// Close ends the iteration. Further ReadNext calls return ErrEndOfList.
func (l *List) Close() {
	l.closed = true
}
