package log

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.dmlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, e)
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	event := Event{
		Timestamp: ts,
		SessionID: "session-1",
		Category:  CategoryMatch,
		NodeID:    3,
		ParentID:  1,
		Module:    "bus_managers/sample_bus/device/driver_v1",
		Match: &MatchEvent{
			Candidate: "bus_drivers/net/sample_net/driver_v1",
			Score:     0.9,
			Selected:  true,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}

	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
	if got.NodeID != 3 || got.ParentID != 1 {
		t.Errorf("NodeID/ParentID = %d/%d, want 3/1", got.NodeID, got.ParentID)
	}
	if got.Match == nil {
		t.Fatal("Match payload missing")
	}
	if got.Match.Score != 0.9 || !got.Match.Selected {
		t.Errorf("Match = %+v", *got.Match)
	}
	if got.Registration != nil || got.Driver != nil || got.Error != nil {
		t.Error("unexpected payloads decoded")
	}
}

func TestDecodeEventGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00}); err == nil {
		t.Error("DecodeEvent(garbage) should fail")
	}
}

func TestEncodedEventIsTagged(t *testing.T) {
	data, err := EncodeEvent(Event{SessionID: "s", Category: CategoryDriver})
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	// Major type 6 with a four-byte tag number.
	want := []byte{0xda, 0x64, 0x6d, 0x6c, 0x67}
	if !bytes.HasPrefix(data, want) {
		t.Errorf("encoded prefix = % x, want % x", data[:len(want)], want)
	}
}

func TestDecodeEventUntaggedAndWrongTag(t *testing.T) {
	untagged, err := cbor.Marshal(Event{SessionID: "old", NodeID: 7})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := DecodeEvent(untagged)
	if err != nil {
		t.Fatalf("DecodeEvent(untagged): %v", err)
	}
	if got.SessionID != "old" || got.NodeID != 7 {
		t.Errorf("untagged event = %+v", got)
	}

	wrong, err := cbor.Marshal(cbor.Tag{Number: 55799 + 1, Content: map[int]string{2: "x"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := DecodeEvent(wrong); err == nil {
		t.Error("DecodeEvent should reject an event under another tag")
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{CategoryRegistration.String(), "REGISTRATION"},
		{CategoryDriver.String(), "DRIVER"},
		{CategoryMatch.String(), "MATCH"},
		{CategoryRemoval.String(), "REMOVAL"},
		{CategoryError.String(), "ERROR"},
		{Category(99).String(), "UNKNOWN"},
		{StageFixedChild.String(), "FIXED_CHILD"},
		{StageRolledBack.String(), "ROLLED_BACK"},
		{Stage(99).String(), "UNKNOWN"},
		{DriverLoaded.String(), "LOADED"},
		{DriverUnloaded.String(), "UNLOADED"},
		{DriverAction(9).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestFileLoggerAndReader(t *testing.T) {
	base := time.Now()
	events := []Event{
		{Timestamp: base, SessionID: "a", Category: CategoryRegistration, NodeID: 1,
			Registration: &RegistrationEvent{Stage: StageAttached}},
		{Timestamp: base.Add(time.Second), SessionID: "a", Category: CategoryDriver, NodeID: 2,
			Module: "m", Driver: &DriverEvent{Action: DriverLoaded, InitCount: 1}},
		{Timestamp: base.Add(2 * time.Second), SessionID: "b", Category: CategoryError, NodeID: 2,
			Error: &ErrorEventData{Op: "register", Message: "boom"}},
	}
	path := createTestLogFile(t, events)

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	got := readAll(t, r)
	if len(got) != len(events) {
		t.Fatalf("read %d events, want %d", len(got), len(events))
	}
	if got[1].Driver == nil || got[1].Driver.InitCount != 1 {
		t.Errorf("driver payload = %+v", got[1].Driver)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := createTestLogFile(t, []Event{{SessionID: "first"}})

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	logger.Log(Event{SessionID: "second"})
	logger.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	got := readAll(t, r)
	if len(got) != 2 {
		t.Fatalf("read %d events, want 2", len(got))
	}
	if got[0].SessionID != "first" || got[1].SessionID != "second" {
		t.Errorf("sessions = %q, %q", got[0].SessionID, got[1].SessionID)
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.dmlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	// Logging after close is ignored.
	logger.Log(Event{SessionID: "late"})
	if st := logger.Stats(); st.Dropped != 1 || st.Written != 0 {
		t.Errorf("Stats() = %+v, want 1 dropped", st)
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.dmlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id uint32) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				logger.Log(Event{NodeID: id + 1, Category: CategoryDriver})
			}
		}(uint32(i))
	}
	wg.Wait()
	logger.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	if got := len(readAll(t, r)); got != 200 {
		t.Errorf("read %d events, want 200", got)
	}
}

func TestFilteredReader(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, SessionID: "a", Category: CategoryRegistration, NodeID: 1, Module: "root"},
		{Timestamp: base.Add(time.Minute), SessionID: "a", Category: CategoryMatch, NodeID: 2, Module: "bus"},
		{Timestamp: base.Add(2 * time.Minute), SessionID: "b", Category: CategoryMatch, NodeID: 2, Module: "bus"},
		{Timestamp: base.Add(3 * time.Minute), SessionID: "b", Category: CategoryError, NodeID: 3, Module: "leaf"},
	}
	path := createTestLogFile(t, events)

	match := CategoryMatch
	start := base.Add(time.Minute)
	end := base.Add(3 * time.Minute)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"session", Filter{SessionID: "b"}, 2},
		{"node", Filter{NodeID: 2}, 2},
		{"module", Filter{Module: "leaf"}, 1},
		{"category", Filter{Category: &match}, 2},
		{"time range", Filter{TimeStart: &start, TimeEnd: &end}, 2},
		{"combined", Filter{SessionID: "a", Category: &match}, 1},
		{"none", Filter{Module: "missing"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader: %v", err)
			}
			defer r.Close()
			if got := len(readAll(t, r)); got != tt.want {
				t.Errorf("matched %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestNewReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.dmlog")); err == nil {
		t.Error("NewReader(missing) should fail")
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func TestMultiLogger(t *testing.T) {
	a := &recordingLogger{}
	b := &recordingLogger{}
	m := NewMultiLogger(a, nil, b, NoopLogger{})

	m.Log(Event{NodeID: 7})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("events = %d/%d, want 1/1", len(a.events), len(b.events))
	}
	if a.events[0].NodeID != 7 {
		t.Errorf("NodeID = %d, want 7", a.events[0].NodeID)
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	adapter := NewSlogAdapter(logger)

	adapter.Log(Event{
		SessionID: "s",
		Category:  CategoryRegistration,
		NodeID:    4,
		Module:    "bus_managers/sample_bus/driver_v1",
		Registration: &RegistrationEvent{
			Stage:    StageFixedChild,
			Children: 1,
			Detail:   "bus_drivers/net/sample_net/driver_v1",
		},
	})
	adapter.Log(Event{
		SessionID: "s",
		Category:  CategoryError,
		Error:     &ErrorEventData{Op: "register", Message: "not found"},
	})

	out := buf.String()
	for _, want := range []string{
		"msg=devmgr",
		"category=REGISTRATION",
		"node=4",
		"stage=FIXED_CHILD",
		"detail=bus_drivers/net/sample_net/driver_v1",
		"level=WARN",
		`error_msg="not found"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFileLoggerStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.dmlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	if logger.Path() != path {
		t.Errorf("Path() = %q, want %q", logger.Path(), path)
	}

	logger.Log(Event{SessionID: "a", Category: CategoryRegistration})
	logger.Log(Event{SessionID: "a", Category: CategoryDriver})
	st := logger.Stats()
	if st.Written != 2 || st.Failed != 0 || st.LastError != nil {
		t.Errorf("Stats() = %+v, want 2 written", st)
	}
	one, _ := EncodeEvent(Event{SessionID: "a", Category: CategoryRegistration})
	if st.Bytes < int64(len(one)) {
		t.Errorf("Bytes = %d, want at least %d", st.Bytes, len(one))
	}

	// Pull the file out from under the logger so writes fail.
	logger.file.Close()
	logger.Log(Event{SessionID: "a", Category: CategoryError})
	st = logger.Stats()
	if st.Failed != 1 || st.LastError == nil {
		t.Errorf("Stats() after write failure = %+v", st)
	}
	if st.Written != 2 {
		t.Errorf("Written = %d, want 2", st.Written)
	}
	_ = logger.Close()
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		input   string
		want    []Category
		wantErr bool
	}{
		{"", nil, false},
		{"match", []Category{CategoryMatch}, false},
		{"reg, Error", []Category{CategoryRegistration, CategoryError}, false},
		{"driver,removal", []Category{CategoryDriver, CategoryRemoval}, false},
		{"match,frame", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseCategories(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCategories(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("ParseCategories(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseCategories(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestWithCategories(t *testing.T) {
	var got []Category
	sink := LoggerFunc(func(e Event) { got = append(got, e.Category) })

	l := WithCategories(sink, CategoryMatch, CategoryError)
	for _, c := range []Category{CategoryRegistration, CategoryMatch, CategoryDriver, CategoryError, Category(42)} {
		l.Log(Event{Category: c})
	}
	if len(got) != 2 || got[0] != CategoryMatch || got[1] != CategoryError {
		t.Errorf("forwarded %v, want [MATCH ERROR]", got)
	}

	got = nil
	WithCategories(sink).Log(Event{Category: CategoryRemoval})
	if len(got) != 1 {
		t.Errorf("no categories should forward everything, got %v", got)
	}
}
