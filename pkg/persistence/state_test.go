package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devmgr-go/devmgr/pkg/attr"
	"github.com/devmgr-go/devmgr/pkg/device"
	"github.com/devmgr-go/devmgr/pkg/examples"
	"github.com/devmgr-go/devmgr/pkg/inspect"
	"github.com/devmgr-go/devmgr/pkg/module"
)

func bootTree(t *testing.T, table *examples.DeviceTable) *device.Manager {
	t.Helper()
	reg := module.NewRegistry(nil)
	if _, err := examples.InstallAll(reg, table, nil); err != nil {
		t.Fatalf("InstallAll: %v", err)
	}
	m, err := device.NewManager(reg, device.DefaultConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := examples.RegisterRoot(m); err != nil {
		t.Fatalf("RegisterRoot: %v", err)
	}
	return m
}

func snapshot(m *device.Manager) *TreeState {
	return FromTree(inspect.NewInspector(m).InspectTree())
}

func TestTreeStateStore(t *testing.T) {
	t.Run("SaveAndLoadEmpty", func(t *testing.T) {
		dir := t.TempDir()
		store := NewTreeStateStore(filepath.Join(dir, "state.json"))

		state := &TreeState{SavedAt: time.Now()}
		if err := store.Save(state); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Version != StateVersion {
			t.Errorf("Version = %d, want %d", got.Version, StateVersion)
		}
		if len(got.Nodes) != 0 {
			t.Errorf("Nodes = %d, want 0", len(got.Nodes))
		}
	})

	t.Run("LoadNonExistent", func(t *testing.T) {
		dir := t.TempDir()
		store := NewTreeStateStore(filepath.Join(dir, "nonexistent.json"))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		// Should return nil for non-existent file
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("CreatesParentDirectory", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "deeper", "state.json")
		store := NewTreeStateStore(path)

		if err := store.Save(&TreeState{}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("state file not created: %v", err)
		}
	})

	t.Run("SetsSavedAt", func(t *testing.T) {
		store := NewTreeStateStore(filepath.Join(t.TempDir(), "state.json"))
		state := &TreeState{}
		if err := store.Save(state); err != nil {
			t.Fatal(err)
		}
		if state.SavedAt.IsZero() {
			t.Error("SavedAt not set")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		dir := t.TempDir()
		store := NewTreeStateStore(filepath.Join(dir, "state.json"))

		if err := store.Save(&TreeState{}); err != nil {
			t.Fatal(err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() after Clear() error = %v", err)
		}
		if got != nil {
			t.Error("Load() after Clear() should return nil")
		}

		// Clearing twice is fine
		if err := store.Clear(); err != nil {
			t.Errorf("second Clear() error = %v", err)
		}
	})

	t.Run("NewerVersionRejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.WriteFile(path, []byte(`{"version": 99}`), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := NewTreeStateStore(path).Load()
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("Load() error = %v, want ErrInvalidState", err)
		}
	})

	t.Run("CorruptFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewTreeStateStore(path).Load(); err == nil {
			t.Error("Load() of corrupt file should fail")
		}
	})
}

func TestFromTree(t *testing.T) {
	m := bootTree(t, examples.DefaultDeviceTable())
	state := snapshot(m)

	if state.SessionID != m.SessionID() {
		t.Errorf("SessionID = %q, want %q", state.SessionID, m.SessionID())
	}
	if len(state.Nodes) != 8 {
		t.Fatalf("Nodes = %d, want 8", len(state.Nodes))
	}
	if !state.Nodes[0].Root || state.Nodes[0].Module != examples.RootModuleName {
		t.Errorf("first node = %+v, want the root", state.Nodes[0])
	}
	if state.Nodes[1].Module != examples.SampleBusModuleName {
		t.Errorf("second node = %s, want the bus", state.Nodes[1].Module)
	}

	res, err := state.Nodes[1].ResourceList()
	if err != nil {
		t.Fatalf("ResourceList() error = %v", err)
	}
	if len(res) != 1 || res[0].Type != device.ResourcePort || res[0].Base != 0xcf8 {
		t.Errorf("bus resources = %v", res)
	}

	if FromTree(nil).Nodes != nil {
		t.Error("FromTree(nil) should have no nodes")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := bootTree(t, examples.DefaultDeviceTable())
	store := NewTreeStateStore(filepath.Join(t.TempDir(), "state.json"))

	want := snapshot(m)
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(got.Nodes) != len(want.Nodes) {
		t.Fatalf("Nodes = %d, want %d", len(got.Nodes), len(want.Nodes))
	}
	for i := range want.Nodes {
		w, g := want.Nodes[i], got.Nodes[i]
		if g.ID != w.ID || g.Module != w.Module || g.Score != w.Score || g.InitCount != w.InitCount {
			t.Errorf("node %d = %+v, want %+v", i, g, w)
		}
		wa, err := w.Attrs()
		if err != nil {
			t.Fatal(err)
		}
		ga, err := g.Attrs()
		if err != nil {
			t.Fatalf("node %d Attrs() error = %v", i, err)
		}
		if len(ga) != len(wa) {
			t.Fatalf("node %d has %d attrs, want %d", i, len(ga), len(wa))
		}
		for k := range wa {
			if attr.Compare(ga[k], wa[k]) != 0 {
				t.Errorf("node %d attr %d = %v, want %v", i, k, ga[k], wa[k])
			}
		}
	}
	if len(Diff(want, got)) != 0 {
		t.Errorf("Diff of a round trip = %v, want none", Diff(want, got))
	}
}

func TestAttrState(t *testing.T) {
	tests := []struct {
		name string
		attr attr.Attr
	}{
		{"uint8", attr.Uint8("a", 0xff)},
		{"uint16", attr.Uint16("a", 0x8086)},
		{"uint32", attr.Uint32("a", 1<<31)},
		{"uint64", attr.Uint64("a", 1<<63)},
		{"string", attr.String("a", "Sample Bus")},
		{"raw", attr.Raw("a", []byte{1, 2, 3})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewAttrState(tt.attr)
			if s.Type != tt.name {
				t.Errorf("Type = %q, want %q", s.Type, tt.name)
			}
			got, err := s.Attr()
			if err != nil {
				t.Fatalf("Attr() error = %v", err)
			}
			if attr.Compare(got, tt.attr) != 0 {
				t.Errorf("Attr() = %v, want %v", got, tt.attr)
			}
		})
	}

	invalid := []AttrState{
		{Name: "a", Type: "float"},
		{Name: "a", Type: "string"},
		{Name: "a", Type: "uint32"},
		{Name: "", Type: "raw"},
	}
	for _, s := range invalid {
		if _, err := s.Attr(); !errors.Is(err, ErrInvalidState) {
			t.Errorf("Attr(%+v) error = %v, want ErrInvalidState", s, err)
		}
	}
}

func TestDiff(t *testing.T) {
	table := examples.DefaultDeviceTable()
	prev := snapshot(bootTree(t, table))

	table.Add(examples.DeviceEntry{Name: "New Ethernet", Vendor: 0x8086, Device: 0x10d3, Type: attr.ClassNetwork})
	cur := snapshot(bootTree(t, table))

	changes := Diff(prev, cur)
	if len(changes) != 2 {
		t.Fatalf("Diff() = %v, want the device and its driver", changes)
	}
	for _, c := range changes {
		if c.Kind != ChangeAdded {
			t.Errorf("change %v, want added", c)
		}
	}
	want := examples.RootModuleName + "[Devices Root] > " +
		examples.SampleBusModuleName + "[Sample Bus] > " +
		examples.SampleDeviceModuleName + "[New Ethernet]"
	if changes[0].Key != want {
		t.Errorf("first change key = %q, want %q", changes[0].Key, want)
	}

	reverse := Diff(cur, prev)
	if len(reverse) != 2 || reverse[0].Kind != ChangeMissing {
		t.Errorf("reverse Diff() = %v", reverse)
	}

	if got := Diff(nil, cur); len(got) != len(cur.Nodes) {
		t.Errorf("Diff(nil, cur) = %d changes, want %d", len(got), len(cur.Nodes))
	}
	if got := ChangeMissing.String(); got != "missing" {
		t.Errorf("ChangeMissing.String() = %q", got)
	}
}
