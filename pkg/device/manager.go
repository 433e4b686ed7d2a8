package device

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/devmgr-go/devmgr/pkg/attr"
	"github.com/devmgr-go/devmgr/pkg/log"
	"github.com/devmgr-go/devmgr/pkg/module"
)

// Manager owns a device tree and binds drivers from a module registry to
// its nodes.
//
// Tree and node state are guarded by one lock held only for short sections;
// driver hooks always run without it, so drivers may call back into the
// manager. A node's driver load and unload are exclusive: callers that
// arrive mid-transition wait for it. Rescan and Probe may run from several
// goroutines; a driver's InitDriver hook must not initialize its own node.
type Manager struct {
	registry  *module.Registry
	config    Config
	events    log.Logger
	sessionID string
	nextID    atomic.Uint32

	mu        sync.RWMutex
	root      *Node
	nodeCount int
	resources []heldResource
	shutdown  bool
}

// NewManager creates a manager with an empty tree.
func NewManager(reg *module.Registry, cfg Config) (*Manager, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: nil registry", ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	events := cfg.EventLog
	if events == nil {
		events = log.NoopLogger{}
	}
	return &Manager{
		registry:  reg,
		config:    cfg,
		events:    events,
		sessionID: uuid.NewString(),
	}, nil
}

// SessionID returns the identifier stamped on the manager's events.
func (m *Manager) SessionID() string { return m.sessionID }

// Registry returns the module registry drivers are loaded from.
func (m *Manager) Registry() *module.Registry { return m.registry }

// RegisterDevice creates a node backed by moduleName below parent and
// registers it. A nil parent creates the root, which is allowed once. If the
// parent already has a child carrying all of attrs, ErrNameInUse is
// returned. On any failure the node and everything attached below it are
// discarded.
func (m *Manager) RegisterDevice(parent *Node, moduleName string, attrs []attr.Attr, resources []Resource) (*Node, error) {
	if moduleName == "" {
		return nil, fmt.Errorf("%w: empty module name", ErrInvalidArgument)
	}
	if parent != nil && parent.manager != m {
		return nil, fmt.Errorf("%w: parent belongs to another manager", ErrInvalidArgument)
	}

	n, err := m.newNode(parent, moduleName, attrs)
	if err != nil {
		registrationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	m.mu.Lock()
	if err := m.attachLocked(n, attrs, resources); err != nil {
		m.mu.Unlock()
		registrationsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	m.mu.Unlock()

	liveNodes.Inc()
	m.debugLog("registering node", "node", n.id, "module", moduleName)
	m.emit(n, log.Event{
		Category:     log.CategoryRegistration,
		Registration: &log.RegistrationEvent{Stage: log.StageAttached, Attributes: len(n.attrs)},
	})

	if err := n.Register(); err != nil {
		m.detach(n)
		registrationsTotal.WithLabelValues("failed").Inc()
		m.emit(n, log.Event{
			Category:     log.CategoryRegistration,
			Registration: &log.RegistrationEvent{Stage: log.StageRolledBack, Detail: err.Error()},
		})
		return nil, fmt.Errorf("register %s: %w", moduleName, err)
	}

	registrationsTotal.WithLabelValues("registered").Inc()
	return n, nil
}

// attachLocked checks n can join the tree, claims its resources and links
// it. Caller holds m.mu.
func (m *Manager) attachLocked(n *Node, attrs []attr.Attr, resources []Resource) error {
	if m.shutdown {
		return ErrShutdown
	}
	parent := n.parent
	if parent == nil && m.root != nil {
		return ErrRootExists
	}
	if parent != nil {
		for _, c := range parent.children {
			if !c.removed && c.CompareTo(attrs) == 0 {
				return fmt.Errorf("%w: matches %s", ErrNameInUse, c)
			}
		}
	}

	if err := m.acquireResources(n, resources); err != nil {
		return err
	}
	n.id = m.nextID.Add(1)
	if parent == nil {
		m.root = n
	} else {
		parent.children = append(parent.children, n)
	}
	m.nodeCount++
	return nil
}

// detach unlinks n from its parent and discards it.
func (m *Manager) detach(n *Node) {
	m.mu.Lock()
	if p := n.parent; p != nil {
		for i, c := range p.children {
			if c == n {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	} else if m.root == n {
		m.root = nil
	}
	m.mu.Unlock()

	m.discard(n)
}

// discard drops everything held by an unlinked subtree.
func (m *Manager) discard(n *Node) {
	for _, c := range n.Children() {
		m.discard(c)
	}
	n.releaseHeldRefs()

	m.mu.Lock()
	m.releaseResources(n)
	m.nodeCount--
	m.mu.Unlock()
	liveNodes.Dec()
}

// UnregisterDevice is not supported: the tree only grows. It always returns
// ErrUnsupported and leaves the tree untouched.
func (m *Manager) UnregisterDevice(n *Node) error {
	if n == nil {
		return fmt.Errorf("%w: %w: nil node", ErrUnsupported, ErrInvalidArgument)
	}
	return fmt.Errorf("%w: unregister %s", ErrUnsupported, n)
}

// Root returns the root node, or nil before it is registered.
func (m *Manager) Root() *Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root
}

// Parent returns the parent of n, or nil for the root.
func (m *Manager) Parent(n *Node) *Node {
	if n == nil {
		return nil
	}
	return n.parent
}

// NodeCount returns the number of nodes in the tree.
func (m *Manager) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodeCount
}

// GetDriver returns the driver and cookie of an initialized node.
func (m *Manager) GetDriver(n *Node) (Driver, any, error) {
	if n == nil {
		return nil, nil, fmt.Errorf("%w: nil node", ErrInvalidArgument)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n.initCount == 0 || n.driver == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoInit, n)
	}
	return n.driver, n.cookie, nil
}

// NextChild returns the first registered, non-removed direct child of parent
// after prev that matches. A nil prev starts at the first child and a nil
// match accepts every child.
func (m *Manager) NextChild(parent *Node, match []attr.Attr, prev *Node) (*Node, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w: nil parent", ErrInvalidArgument)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	children := parent.children
	if prev != nil {
		i := indexOf(children, prev)
		if i < 0 {
			return nil, ErrEndOfList
		}
		children = children[i+1:]
	}
	for _, c := range children {
		if c.registered && !c.removed && c.matches(match) {
			return c, nil
		}
	}
	return nil, ErrEndOfList
}

// FindChild searches the whole subtree of parent depth first and returns the
// first matching registered node found after prev.
func (m *Manager) FindChild(parent *Node, match []attr.Attr, prev *Node) (*Node, error) {
	if parent == nil {
		return nil, fmt.Errorf("%w: nil parent", ErrInvalidArgument)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	passed := prev == nil
	if found := findChildLocked(parent, match, prev, &passed); found != nil {
		return found, nil
	}
	return nil, ErrEndOfList
}

func findChildLocked(parent *Node, match []attr.Attr, prev *Node, passed *bool) *Node {
	for _, c := range parent.children {
		if !c.registered || c.removed {
			continue
		}
		if c == prev {
			*passed = true
		} else if *passed && c.matches(match) {
			return c
		}
		if found := findChildLocked(c, match, prev, passed); found != nil {
			return found
		}
	}
	return nil
}

func indexOf(list []*Node, n *Node) int {
	for i, c := range list {
		if c == n {
			return i
		}
	}
	return -1
}

// Walk visits the tree in pre-order. fn returns false to stop the walk.
func (m *Manager) Walk(fn func(n *Node, depth int) bool) {
	root := m.Root()
	if root == nil {
		return
	}
	walk(root, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) bool {
	if !fn(n, depth) {
		return false
	}
	for _, c := range n.Children() {
		if !walk(c, depth+1, fn) {
			return false
		}
	}
	return true
}

// Rescan asks n and every node below it to publish children that appeared
// since registration.
func (m *Manager) Rescan(n *Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidArgument)
	}
	if err := m.checkOpen(); err != nil {
		return err
	}
	if n.IsRemoved() {
		return nil
	}

	if err := n.InitDriver(); err != nil {
		return err
	}
	defer n.UninitDriver()

	if hook, ok := n.Driver().(ChildRescanner); ok {
		if err := hook.RescanChildDevices(n.DriverData()); err != nil {
			m.emitError(n, "rescan_child_devices", err)
			return fmt.Errorf("rescan %s: %w", n, err)
		}
	}
	for _, c := range n.Children() {
		if err := m.Rescan(c); err != nil {
			return err
		}
	}
	return nil
}

// Probe runs the child matching that FindChildOnDemand nodes deferred.
// A non-empty path ("disk", "net", "graphics", "audio", "video") limits the
// probe to nodes of that device class. Each node is probed at most once.
func (m *Manager) Probe(path string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	root := m.Root()
	if root == nil {
		return nil
	}
	return m.probe(root, path)
}

func (m *Manager) probe(n *Node, path string) error {
	m.mu.Lock()
	skip := n.removed
	pending := n.deferred && !n.probed && probeMatches(n, path)
	if pending {
		n.probed = true
		n.deferred = false
	}
	m.mu.Unlock()
	if skip {
		return nil
	}

	var errs []error
	if pending {
		if err := n.InitDriver(); err != nil {
			errs = append(errs, err)
		} else {
			var flags uint32
			if a, ok := n.FindAttr(attr.DriverFindChildFlags, attr.TypeUint32, true); ok {
				flags, _ = a.Uint32()
			}
			n.registerDynamic(flags)
			n.UninitDriver()
		}
	}
	for _, c := range n.Children() {
		if err := m.probe(c, path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyRemoved reports that the hardware behind n went away. The subtree is
// marked removed leaf first and initialized drivers get their DeviceRemoved
// hook. Removed nodes stay in the tree.
func (m *Manager) NotifyRemoved(n *Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidArgument)
	}
	for _, c := range n.Children() {
		if err := m.NotifyRemoved(c); err != nil {
			return err
		}
	}

	m.mu.Lock()
	already := n.removed
	n.removed = true
	var d Driver
	if n.initCount > 0 {
		d = n.driver
	}
	m.mu.Unlock()
	if already {
		return nil
	}

	if hook, ok := d.(RemovalNotifier); ok {
		hook.DeviceRemoved(n)
	}
	m.debugLog("device removed", "node", n.id, "module", n.moduleName)
	m.emit(n, log.Event{Category: log.CategoryRemoval})
	return nil
}

// ReleaseUnused drops the init references registration kept, leaf first,
// and returns how many drivers were unloaded as a result.
func (m *Manager) ReleaseUnused() int {
	root := m.Root()
	if root == nil {
		return 0
	}
	return releaseUnused(root)
}

func releaseUnused(n *Node) int {
	unloaded := 0
	for _, c := range n.Children() {
		unloaded += releaseUnused(c)
	}

	m := n.manager
	m.mu.Lock()
	held := n.regRef
	n.regRef = false
	m.mu.Unlock()

	if held && n.UninitDriver() {
		unloaded++
	}
	return unloaded
}

// Shutdown releases every driver in the tree, leaf first, so all module
// references taken by the manager are returned. The manager cannot register
// or rescan afterwards.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return ErrShutdown
	}
	m.shutdown = true
	root := m.root
	m.mu.Unlock()

	if root != nil {
		shutdownNode(root)
	}
	m.debugLog("device manager shut down", "nodes", m.NodeCount())
	return nil
}

func shutdownNode(n *Node) {
	for _, c := range n.Children() {
		shutdownNode(c)
	}
	n.releaseHeldRefs()
	for n.InitCount() > 0 {
		n.UninitDriver()
	}
}

func (m *Manager) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.shutdown {
		return ErrShutdown
	}
	return nil
}

func (m *Manager) emit(n *Node, ev log.Event) {
	ev.Timestamp = time.Now()
	ev.SessionID = m.sessionID
	if n != nil {
		ev.NodeID = n.id
		ev.Module = n.moduleName
		if n.parent != nil {
			ev.ParentID = n.parent.id
		}
	}
	m.events.Log(ev)
}

func (m *Manager) emitError(n *Node, op string, err error) {
	m.emit(n, log.Event{
		Category: log.CategoryError,
		Error:    &log.ErrorEventData{Op: op, Message: err.Error()},
	})
}

func (m *Manager) debugLog(msg string, args ...any) {
	if m.config.Logger != nil {
		m.config.Logger.Debug(msg, args...)
	}
}
