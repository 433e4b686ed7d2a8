package device

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/devmgr-go/devmgr/pkg/attr"
	"github.com/devmgr-go/devmgr/pkg/log"
	"github.com/devmgr-go/devmgr/pkg/module"
)

const rootModule = "root_module"

// plainDriver has no hooks.
type plainDriver struct{ name string }

func (d *plainDriver) ModuleName() string { return d.name }

// leafDriver supports any bus with a fixed score and registers one child
// carrying its own module name.
type leafDriver struct {
	name        string
	score       float32
	registerErr error
	registered  int
}

func (d *leafDriver) ModuleName() string { return d.name }

func (d *leafDriver) SupportsDevice(parent *Node) float32 {
	if _, ok := parent.FindAttr(attr.DeviceBus, attr.TypeString, false); !ok {
		return 0
	}
	return d.score
}

func (d *leafDriver) RegisterDevice(parent *Node) error {
	d.registered++
	if d.registerErr != nil {
		return d.registerErr
	}
	_, err := parent.Manager().RegisterDevice(parent, d.name, []attr.Attr{
		attr.String(attr.DevicePrettyName, d.name),
	}, nil)
	return err
}

// busDriver publishes plain children by module name and records its hooks.
type busDriver struct {
	name     string
	children []string
	rescan   []string
	childErr error

	childCalls  int
	rescanCalls int
	inits       int
	uninits     int
	removed     []uint32
}

func (d *busDriver) ModuleName() string { return d.name }

func (d *busDriver) InitDriver(node *Node) (any, error) {
	d.inits++
	return node, nil
}

func (d *busDriver) UninitDriver(*Node) { d.uninits++ }

func (d *busDriver) RegisterChildDevices(cookie any) error {
	d.childCalls++
	if d.childErr != nil {
		return d.childErr
	}
	return d.publish(cookie.(*Node), d.children)
}

func (d *busDriver) RescanChildDevices(cookie any) error {
	d.rescanCalls++
	return d.publish(cookie.(*Node), d.rescan)
}

func (d *busDriver) DeviceRemoved(node *Node) {
	d.removed = append(d.removed, node.ID())
}

func (d *busDriver) publish(node *Node, names []string) error {
	for _, name := range names {
		_, err := node.Manager().RegisterDevice(node, name, []attr.Attr{
			attr.String(attr.DevicePrettyName, name),
		}, nil)
		if err != nil && !errors.Is(err, ErrNameInUse) {
			return err
		}
	}
	return nil
}

// countingDriver counts init and uninit hooks.
type countingDriver struct {
	name    string
	initErr error
	inits   int
	uninits int
}

func (d *countingDriver) ModuleName() string { return d.name }

func (d *countingDriver) InitDriver(*Node) (any, error) {
	if d.initErr != nil {
		return nil, d.initErr
	}
	d.inits++
	return d.inits, nil
}

func (d *countingDriver) UninitDriver(*Node) { d.uninits++ }

// gatedDriver can hold one InitDriver call open until the test releases it,
// so other callers arrive while the driver is still loading.
type gatedDriver struct {
	name string

	mu      sync.Mutex
	gate    chan struct{}
	entered chan struct{}
	initErr error

	inits   atomic.Int32
	rescans atomic.Int32
}

func (d *gatedDriver) ModuleName() string { return d.name }

// hold makes the next InitDriver call block until gate is closed, then fail
// with err if it is non-nil. entered is closed once that call is inside
// the hook.
func (d *gatedDriver) hold(err error) (gate, entered chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gate = make(chan struct{})
	d.entered = make(chan struct{})
	d.initErr = err
	return d.gate, d.entered
}

func (d *gatedDriver) InitDriver(node *Node) (any, error) {
	d.mu.Lock()
	gate, entered, err := d.gate, d.entered, d.initErr
	d.gate, d.entered, d.initErr = nil, nil, nil
	d.mu.Unlock()

	if gate != nil {
		close(entered)
		<-gate
	}
	if err != nil {
		return nil, err
	}
	d.inits.Add(1)
	return node, nil
}

func (d *gatedDriver) RescanChildDevices(any) error {
	d.rescans.Add(1)
	return nil
}

// failingModule fails to load.
type failingModule struct {
	leafDriver
}

func (f *failingModule) InitModule() error { return errors.New("corrupt module") }

// mockCandidate is a matching driver with recorded calls.
type mockCandidate struct {
	mock.Mock
	name string
}

func (d *mockCandidate) ModuleName() string { return d.name }

func (d *mockCandidate) SupportsDevice(parent *Node) float32 {
	args := d.Called(parent)
	return args.Get(0).(float32)
}

func (d *mockCandidate) RegisterDevice(parent *Node) error {
	args := d.Called(parent)
	return args.Error(0)
}

// mockChildRegistrar records RegisterChildDevices calls.
type mockChildRegistrar struct {
	mock.Mock
	name string
}

func (d *mockChildRegistrar) ModuleName() string { return d.name }

func (d *mockChildRegistrar) RegisterChildDevices(cookie any) error {
	args := d.Called(cookie)
	return args.Error(0)
}

type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recordingLogger) Log(e log.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingLogger) byCategory(c log.Category) []log.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []log.Event
	for _, e := range r.events {
		if e.Category == c {
			out = append(out, e)
		}
	}
	return out
}

// newTestManager installs a plain root module plus mods.
func newTestManager(t *testing.T, mods ...module.Module) *Manager {
	t.Helper()
	return newTestManagerWithConfig(t, DefaultConfig(), mods...)
}

func newTestManagerWithConfig(t *testing.T, cfg Config, mods ...module.Module) *Manager {
	t.Helper()
	reg := module.NewRegistry(nil)
	require.NoError(t, reg.Install(&plainDriver{name: rootModule}))
	for _, m := range mods {
		require.NoError(t, reg.Install(m))
	}
	m, err := NewManager(reg, cfg)
	require.NoError(t, err)
	return m
}

func registerRoot(t *testing.T, m *Manager, attrs ...attr.Attr) *Node {
	t.Helper()
	root, err := m.RegisterDevice(nil, rootModule, attrs, nil)
	require.NoError(t, err)
	return root
}

// busAttrs describes a bus node asking for dynamic matching.
func busAttrs(flags uint32, extra ...attr.Attr) []attr.Attr {
	return append([]attr.Attr{
		attr.String(attr.DeviceBus, "test"),
		attr.Uint32(attr.DriverFindChildFlags, flags),
	}, extra...)
}
