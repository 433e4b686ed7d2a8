package attr

import (
	"errors"
	"strings"
	"testing"
)

func TestAttrAccessors(t *testing.T) {
	t.Run("Uint8", func(t *testing.T) {
		a := Uint8("u8", 200)
		v, ok := a.Uint8()
		if !ok || v != 200 {
			t.Errorf("Uint8() = %d, %v; want 200, true", v, ok)
		}
		if _, ok := a.Uint16(); ok {
			t.Error("Uint16() on a uint8 attribute should fail")
		}
	})

	t.Run("Uint16", func(t *testing.T) {
		a := Uint16(DeviceVendorID, 0x8086)
		v, ok := a.Uint16()
		if !ok || v != 0x8086 {
			t.Errorf("Uint16() = %#x, %v; want 0x8086, true", v, ok)
		}
		if _, ok := a.Uint32(); ok {
			t.Error("Uint32() must not widen a uint16 attribute")
		}
	})

	t.Run("Uint64", func(t *testing.T) {
		a := Uint64("big", 1<<40)
		v, ok := a.Uint64()
		if !ok || v != 1<<40 {
			t.Errorf("Uint64() = %d, %v", v, ok)
		}
	})

	t.Run("String", func(t *testing.T) {
		a := String(DeviceBus, "pci")
		v, ok := a.Str()
		if !ok || v != "pci" {
			t.Errorf("Str() = %q, %v; want pci, true", v, ok)
		}
		if _, ok := a.Bytes(); ok {
			t.Error("Bytes() on a string attribute should fail")
		}
	})
}

func TestRawOwnsCopy(t *testing.T) {
	data := []byte{1, 2, 3}
	a := Raw("blob", data)
	data[0] = 99

	got, ok := a.Bytes()
	if !ok {
		t.Fatal("Bytes() failed on raw attribute")
	}
	if got[0] != 1 {
		t.Errorf("raw attribute aliases caller memory: got %v", got)
	}

	got[1] = 42
	again, _ := a.Bytes()
	if again[1] != 2 {
		t.Errorf("Bytes() must return a copy: got %v", again)
	}

	c := a.Clone()
	cb, _ := c.Bytes()
	if string(cb) != string([]byte{1, 2, 3}) {
		t.Errorf("Clone() = %v", cb)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		attr    Attr
		wantErr error
	}{
		{"valid", Uint32("x", 1), nil},
		{"empty name", Uint32("", 1), ErrInvalidName},
		{"any type", Attr{Name: "x", Type: TypeAny}, ErrInvalidType},
		{"unknown type", Attr{Name: "x", Type: Type(42)}, ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.attr.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCopyListAtomic(t *testing.T) {
	list := []Attr{
		String(DeviceBus, "pci"),
		Raw("blob", []byte{1}),
		{Name: "", Type: TypeUint8},
	}

	got, err := CopyList(list)
	if !errors.Is(err, ErrInvalidName) {
		t.Fatalf("CopyList() error = %v, want ErrInvalidName", err)
	}
	if got != nil {
		t.Errorf("CopyList() kept a partial copy: %v", got)
	}

	got, err = CopyList(list[:2])
	if err != nil {
		t.Fatalf("CopyList() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("CopyList() returned %d attributes, want 2", len(got))
	}
}

func TestFind(t *testing.T) {
	list := []Attr{
		Uint32("flags", 7),
		Uint16("flags", 3),
		String(DeviceBus, "pci"),
	}

	t.Run("TypeMismatchContinues", func(t *testing.T) {
		a, ok := Find(list, "flags", TypeUint16)
		if !ok {
			t.Fatal("Find() missed the uint16 entry")
		}
		if v, _ := a.Uint16(); v != 3 {
			t.Errorf("Find() = %d, want 3", v)
		}
	})

	t.Run("AnyTypeFirstMatch", func(t *testing.T) {
		a, ok := Find(list, "flags", TypeAny)
		if !ok || a.Type != TypeUint32 {
			t.Errorf("Find(TypeAny) = %v, %v; want first (uint32) entry", a, ok)
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if _, ok := Find(list, "flags", TypeUint8); ok {
			t.Error("Find() should miss a uint8 query")
		}
		if _, ok := Find(list, "nope", TypeAny); ok {
			t.Error("Find() should miss an unknown name")
		}
	})
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Attr
		want int
	}{
		{"equal uint16", Uint16("v", 5), Uint16("v", 5), 0},
		{"less uint32", Uint32("v", 1), Uint32("v", 2), -1},
		{"greater uint64", Uint64("v", 9), Uint64("v", 2), 1},
		{"different types", Uint16("v", 5), Uint32("v", 5), -1},
		{"equal strings", String("s", "a"), String("s", "a"), 0},
		{"raw length", Raw("r", []byte{1}), Raw("r", []byte{1, 2}), -1},
		{"raw equal", Raw("r", []byte{1, 2}), Raw("r", []byte{1, 2}), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare() = %d, want %d", got, tt.want)
			}
		})
	}

	if Compare(String("s", "a"), String("s", "b")) >= 0 {
		t.Error("Compare() of \"a\" and \"b\" should be negative")
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		attr Attr
		want string
	}{
		{Uint16(DeviceVendorID, 0x1234), `"device/vendor" : uint16 : 4660 (0x1234)`},
		{String(DeviceBus, "pci"), `"device/bus" : string : "pci"`},
		{Raw("blob", []byte{1, 2, 3}), `"blob" : raw : 3 bytes`},
	}

	for _, tt := range tests {
		if got := tt.attr.Format(); got != tt.want {
			t.Errorf("Format() = %s, want %s", got, tt.want)
		}
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range []Type{TypeUint8, TypeUint16, TypeUint32, TypeUint64, TypeString, TypeRaw} {
		got, err := ParseType(strings.ToUpper(typ.String()))
		if err != nil || got != typ {
			t.Errorf("ParseType(%q) = %v, %v", typ.String(), got, err)
		}
	}

	if _, err := ParseType("float"); !errors.Is(err, ErrInvalidType) {
		t.Errorf("ParseType(float) error = %v, want ErrInvalidType", err)
	}
}
