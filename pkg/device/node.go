package device

import (
	"fmt"

	"github.com/devmgr-go/devmgr/pkg/attr"
	"github.com/devmgr-go/devmgr/pkg/log"
)

// Node is one entry of the device tree: a bus, controller, or leaf device
// backed by a driver module.
//
// A node's identity, parent, attributes and resources never change after
// construction. Everything else is guarded by the owning manager's lock.
// Children are owned by their parent; the parent pointer is a plain back
// reference.
type Node struct {
	manager    *Manager
	id         uint32
	moduleName string
	parent     *Node
	attrs      []attr.Attr
	flags      uint32
	resources  []Resource

	children   []*Node
	initCount  int
	registered bool
	removed    bool
	probed     bool
	deferred   bool
	regRef     bool // init reference taken by Register
	keepRef    bool // init reference for KeepDriverLoaded
	score      float32
	driver     Driver
	cookie     any
	pending    *driverTransition // load or unload in progress
}

// driverTransition is a driver load or unload running outside the manager
// lock. Other callers wait on done; err is the load error, if any.
type driverTransition struct {
	done chan struct{}
	err  error
}

// waitPendingLocked blocks until no load or unload of n is in flight and
// returns the error of the last failed load it waited for. It is called and
// returns with m.mu held.
func (n *Node) waitPendingLocked() error {
	m := n.manager
	var err error
	for n.pending != nil {
		t := n.pending
		m.mu.Unlock()
		<-t.done
		m.mu.Lock()
		err = t.err
	}
	return err
}

// finishTransition publishes the result of a load or unload and wakes the
// waiters.
func (n *Node) finishTransition(t *driverTransition, err error) {
	n.manager.mu.Lock()
	n.pending = nil
	t.err = err
	n.manager.mu.Unlock()
	close(t.done)
}

// newNode copies attrs and records the node's module name as the
// DeviceDriver attribute. The copy is all or nothing.
func (m *Manager) newNode(parent *Node, moduleName string, attrs []attr.Attr) (*Node, error) {
	list, err := attr.CopyList(attrs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	list = append(list, attr.String(attr.DeviceDriver, moduleName))

	n := &Node{
		manager:    m,
		moduleName: moduleName,
		parent:     parent,
		attrs:      list,
	}
	if a, ok := attr.Find(list, attr.DeviceFlags, attr.TypeUint32); ok {
		n.flags, _ = a.Uint32()
	}
	return n, nil
}

// ID returns the node's manager-unique identifier. IDs start at 1.
func (n *Node) ID() uint32 { return n.id }

// ModuleName returns the name of the driver module backing the node.
func (n *Node) ModuleName() string { return n.moduleName }

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Manager returns the manager owning the node.
func (n *Node) Manager() *Manager { return n.manager }

// Flags returns the node's DeviceFlags value.
func (n *Node) Flags() uint32 { return n.flags }

// Children returns a copy of the node's children in registration order.
func (n *Node) Children() []*Node {
	n.manager.mu.RLock()
	defer n.manager.mu.RUnlock()
	return append([]*Node(nil), n.children...)
}

// Attrs returns a deep copy of the node's attributes.
func (n *Node) Attrs() []attr.Attr {
	out := make([]attr.Attr, len(n.attrs))
	for i, a := range n.attrs {
		out[i] = a.Clone()
	}
	return out
}

// Resources returns a copy of the I/O resources held by the node.
func (n *Node) Resources() []Resource {
	return append([]Resource(nil), n.resources...)
}

// IsRegistered reports whether Register completed.
func (n *Node) IsRegistered() bool {
	n.manager.mu.RLock()
	defer n.manager.mu.RUnlock()
	return n.registered
}

// IsInitialized reports whether the node's driver is initialized.
func (n *Node) IsInitialized() bool {
	return n.InitCount() > 0
}

// InitCount returns the number of outstanding InitDriver calls.
func (n *Node) InitCount() int {
	n.manager.mu.RLock()
	defer n.manager.mu.RUnlock()
	return n.initCount
}

// IsRemoved reports whether the node was reported removed.
func (n *Node) IsRemoved() bool {
	n.manager.mu.RLock()
	defer n.manager.mu.RUnlock()
	return n.removed
}

// IsDeferred reports whether on-demand child matching waits for a probe.
func (n *Node) IsDeferred() bool {
	n.manager.mu.RLock()
	defer n.manager.mu.RUnlock()
	return n.deferred
}

// SupportScore returns the score the node's driver gave its parent during
// matching. Nodes not bound by matching report 0.
func (n *Node) SupportScore() float32 {
	n.manager.mu.RLock()
	defer n.manager.mu.RUnlock()
	return n.score
}

// Driver returns the loaded driver, or nil while uninitialized.
func (n *Node) Driver() Driver {
	n.manager.mu.RLock()
	defer n.manager.mu.RUnlock()
	return n.driver
}

// DriverData returns the cookie returned by the driver's InitDriver hook.
func (n *Node) DriverData() any {
	n.manager.mu.RLock()
	defer n.manager.mu.RUnlock()
	return n.cookie
}

// FindAttr returns the first attribute with the given name and type. With
// recursive set the search continues through the ancestors. An attribute of
// the right name but another type does not stop the search.
func (n *Node) FindAttr(name string, typ attr.Type, recursive bool) (attr.Attr, bool) {
	for cur := n; cur != nil; cur = cur.parent {
		if a, ok := attr.Find(cur.attrs, name, typ); ok {
			return a, true
		}
		if !recursive {
			break
		}
	}
	return attr.Attr{}, false
}

// CompareTo returns 0 when every attribute in match exists on the node by
// name and compares equal. An empty match never matches.
func (n *Node) CompareTo(match []attr.Attr) int {
	if len(match) == 0 {
		return -1
	}
	for _, want := range match {
		found := false
		for _, have := range n.attrs {
			if have.Name != want.Name {
				continue
			}
			found = true
			if c := attr.Compare(have, want); c != 0 {
				return c
			}
			break
		}
		if !found {
			return -1
		}
	}
	return 0
}

// matches is CompareTo with nil meaning "any node".
func (n *Node) matches(match []attr.Attr) bool {
	return match == nil || n.CompareTo(match) == 0
}

func (n *Node) String() string {
	return fmt.Sprintf("node %d (%s)", n.id, n.moduleName)
}

// InitDriver initializes the node's driver. The first call loads the module,
// initializes the parent, and runs the driver's InitDriver hook; later calls
// only count. Every call also takes one init reference on the parent, so a
// parent stays initialized while any child is.
//
// Callers arriving while the first load is in flight wait for it and get its
// error if it fails.
func (n *Node) InitDriver() error {
	m := n.manager

	m.mu.Lock()
	if err := n.waitPendingLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	n.initCount++
	first := n.initCount == 1
	var t *driverTransition
	if first {
		t = &driverTransition{done: make(chan struct{})}
		n.pending = t
	}
	m.mu.Unlock()

	if !first {
		if n.parent != nil {
			if err := n.parent.InitDriver(); err != nil {
				n.dropInitCount()
				return err
			}
		}
		return nil
	}

	err := n.loadDriver()
	n.finishTransition(t, err)
	return err
}

// loadDriver performs the 0 to 1 init transition. On failure the init count
// and every reference taken are rolled back.
func (n *Node) loadDriver() error {
	m := n.manager

	mod, err := m.registry.Get(n.moduleName)
	if err != nil {
		n.dropInitCount()
		m.emitError(n, "init_driver", err)
		return fmt.Errorf("load driver %s: %w", n.moduleName, err)
	}
	if n.parent != nil {
		if err := n.parent.InitDriver(); err != nil {
			n.putModule()
			n.dropInitCount()
			return err
		}
	}

	var cookie any
	if hook, ok := mod.(DriverInitializer); ok {
		cookie, err = hook.InitDriver(n)
		if err != nil {
			if n.parent != nil {
				n.parent.UninitDriver()
			}
			n.putModule()
			n.dropInitCount()
			m.emitError(n, "init_driver", err)
			return fmt.Errorf("init driver %s: %w", n.moduleName, err)
		}
	}

	m.mu.Lock()
	n.driver = mod
	n.cookie = cookie
	count := n.initCount
	m.mu.Unlock()

	driverTransitionsTotal.WithLabelValues("load").Inc()
	m.debugLog("driver loaded", "node", n.id, "module", n.moduleName)
	m.emit(n, log.Event{
		Category: log.CategoryDriver,
		Driver:   &log.DriverEvent{Action: log.DriverLoaded, InitCount: count},
	})
	return nil
}

// UninitDriver drops one init reference. The last one runs the driver's
// UninitDriver hook and releases the module. It returns true when the driver
// was unloaded. Calling it on an uninitialized node does nothing.
func (n *Node) UninitDriver() bool {
	m := n.manager

	m.mu.Lock()
	_ = n.waitPendingLocked()
	if n.initCount == 0 {
		m.mu.Unlock()
		m.debugLog("uninit of uninitialized driver ignored", "node", n.id)
		return false
	}
	n.initCount--
	last := n.initCount == 0
	d := n.driver
	var t *driverTransition
	if last {
		t = &driverTransition{done: make(chan struct{})}
		n.pending = t
	}
	m.mu.Unlock()

	if !last {
		if n.parent != nil {
			n.parent.UninitDriver()
		}
		return false
	}

	if hook, ok := d.(DriverUninitializer); ok {
		hook.UninitDriver(n)
	}

	m.mu.Lock()
	n.driver = nil
	n.cookie = nil
	m.mu.Unlock()

	n.putModule()
	n.finishTransition(t, nil)
	if n.parent != nil {
		n.parent.UninitDriver()
	}

	driverTransitionsTotal.WithLabelValues("unload").Inc()
	m.debugLog("driver unloaded", "node", n.id, "module", n.moduleName)
	m.emit(n, log.Event{
		Category: log.CategoryDriver,
		Driver:   &log.DriverEvent{Action: log.DriverUnloaded},
	})
	return true
}

func (n *Node) dropInitCount() {
	n.manager.mu.Lock()
	n.initCount--
	n.manager.mu.Unlock()
}

func (n *Node) putModule() {
	if err := n.manager.registry.Put(n.moduleName); err != nil {
		n.manager.debugLog("module release failed", "module", n.moduleName, "error", err)
	}
}

// Register binds the node's children: fixed children first, then the
// children the driver publishes itself, then dynamic matching. The driver is
// initialized for registration and stays initialized until the manager's
// ReleaseUnused. On failure every child attached by this call is discarded
// and the node stays unregistered.
func (n *Node) Register() error {
	m := n.manager

	m.mu.Lock()
	if n.registered {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, n)
	}
	before := len(n.children)
	needRef := !n.regRef
	m.mu.Unlock()

	if needRef {
		if err := n.InitDriver(); err != nil {
			return err
		}
		m.mu.Lock()
		n.regRef = true
		m.mu.Unlock()
	}

	if n.flags&attr.KeepDriverLoaded != 0 {
		m.mu.Lock()
		keep := !n.keepRef
		m.mu.Unlock()
		if keep {
			if err := n.InitDriver(); err != nil {
				n.abortRegister(before)
				return err
			}
			m.mu.Lock()
			n.keepRef = true
			m.mu.Unlock()
		}
	}

	if err := n.register(); err != nil {
		n.abortRegister(before)
		return err
	}

	m.mu.Lock()
	n.registered = true
	children := len(n.children)
	m.mu.Unlock()

	m.emit(n, log.Event{
		Category: log.CategoryRegistration,
		Registration: &log.RegistrationEvent{
			Stage:      log.StageRegistered,
			Attributes: len(n.attrs),
			Children:   children,
		},
	})
	return nil
}

func (n *Node) register() error {
	fixed, err := n.registerFixed()
	if err != nil {
		return err
	}
	if fixed > 0 {
		return nil
	}

	if hook, ok := n.Driver().(ChildRegistrar); ok {
		if err := hook.RegisterChildDevices(n.DriverData()); err != nil {
			n.manager.emitError(n, "register_child_devices", err)
			return fmt.Errorf("register child devices of %s: %w", n, err)
		}
		if children := len(n.Children()); children > 0 {
			n.manager.emit(n, log.Event{
				Category: log.CategoryRegistration,
				Registration: &log.RegistrationEvent{
					Stage:    log.StageChildDevices,
					Children: children,
				},
			})
			return nil
		}
	}

	a, ok := n.FindAttr(attr.DriverFindChildFlags, attr.TypeUint32, true)
	if !ok {
		return nil
	}
	flags, _ := a.Uint32()

	n.manager.mu.Lock()
	wait := flags&attr.FindChildOnDemand != 0 && !n.probed
	if wait {
		n.deferred = true
	}
	n.manager.mu.Unlock()

	if wait {
		n.manager.emit(n, log.Event{
			Category:     log.CategoryRegistration,
			Registration: &log.RegistrationEvent{Stage: log.StageDeferred},
		})
		return nil
	}

	n.registerDynamic(flags)
	return nil
}

// registerFixed binds every DriverFixedChild attribute in order and stops
// at the first failure.
func (n *Node) registerFixed() (int, error) {
	count := 0
	for _, a := range n.attrs {
		if a.Name != attr.DriverFixedChild {
			continue
		}
		name, ok := a.Str()
		if !ok {
			continue
		}
		if err := n.registerFixedChild(name); err != nil {
			n.manager.emitError(n, "register_fixed", err)
			return count, err
		}
		count++
	}
	return count, nil
}

func (n *Node) registerFixedChild(name string) error {
	reg := n.manager.registry
	mod, err := reg.Get(name)
	if err != nil {
		return fmt.Errorf("fixed child %s: %w", name, err)
	}
	defer func() {
		if err := reg.Put(name); err != nil {
			n.manager.debugLog("module release failed", "module", name, "error", err)
		}
	}()

	d, ok := asMatcher(mod)
	if !ok {
		return fmt.Errorf("fixed child %s: %w", name, ErrNotSupported)
	}
	if score := d.SupportsDevice(n); score <= 0 {
		return fmt.Errorf("fixed child %s: %w (score %.2f)", name, ErrNotSupported, score)
	}
	if err := d.RegisterDevice(n); err != nil {
		return fmt.Errorf("fixed child %s: %w", name, err)
	}

	n.manager.emit(n, log.Event{
		Category: log.CategoryRegistration,
		Registration: &log.RegistrationEvent{
			Stage:    log.StageFixedChild,
			Children: len(n.Children()),
			Detail:   name,
		},
	})
	return nil
}

// abortRegister discards the children attached since the registration
// started and drops the init references Register took.
func (n *Node) abortRegister(before int) {
	m := n.manager

	m.mu.Lock()
	var dropped []*Node
	if before < len(n.children) {
		dropped = append(dropped, n.children[before:]...)
		clear(n.children[before:])
		n.children = n.children[:before]
	}
	m.mu.Unlock()

	for _, c := range dropped {
		m.discard(c)
	}
	n.releaseHeldRefs()
}

// releaseHeldRefs drops the registration and keep-loaded init references.
func (n *Node) releaseHeldRefs() {
	m := n.manager
	m.mu.Lock()
	keep, reg := n.keepRef, n.regRef
	n.keepRef, n.regRef = false, false
	m.mu.Unlock()

	if keep {
		n.UninitDriver()
	}
	if reg {
		n.UninitDriver()
	}
}

// childByModule returns the most recently attached child backed by name.
func (n *Node) childByModule(name string) *Node {
	n.manager.mu.RLock()
	defer n.manager.mu.RUnlock()
	for i := len(n.children) - 1; i >= 0; i-- {
		if n.children[i].moduleName == name {
			return n.children[i]
		}
	}
	return nil
}
