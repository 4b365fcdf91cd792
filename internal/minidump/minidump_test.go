package minidump

import (
	"bytes"
	"testing"

	"bsod-cli/internal/dump/dumptest"
)

func openFixture(t *testing.T, spec dumptest.Minidump) *File {
	t.Helper()
	img := spec.Build()
	f, err := Open(bytes.NewReader(img), int64(len(img)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return f
}

func TestOpenHeader(t *testing.T) {
	f := openFixture(t, dumptest.Minidump{Arch: 9, TimeDateStamp: 12345})
	if f.Header.Signature != Signature {
		t.Errorf("Signature = 0x%X", f.Header.Signature)
	}
	if f.Header.TimeDateStamp != 12345 {
		t.Errorf("TimeDateStamp = %d", f.Header.TimeDateStamp)
	}
	if _, ok := f.Stream(SystemInfoStream); !ok {
		t.Error("system info stream not indexed")
	}
	if _, ok := f.Stream(Memory64ListStream); ok {
		t.Error("found a stream the fixture never wrote")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", []byte("MDMP")},
		{"zero streams", func() []byte {
			img := dumptest.Minidump{}.Build()
			copy(img[8:], []byte{0, 0, 0, 0})
			return img
		}()},
		{"directory out of bounds", func() []byte {
			img := dumptest.Minidump{}.Build()
			copy(img[12:], []byte{0xFF, 0xFF, 0xFF, 0x7F})
			return img
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(bytes.NewReader(tt.data), int64(len(tt.data))); err == nil {
				t.Error("Open accepted a broken image")
			}
		})
	}
}

func TestModuleNames(t *testing.T) {
	f := openFixture(t, dumptest.Minidump{
		Modules: []dumptest.Module{
			{Name: `C:\Windows\System32\drivers\nvlddmkm.sys`, Base: 0x1000, Size: 0x100},
		},
	})
	mods, err := f.Modules()
	if err != nil {
		t.Fatalf("Modules: %v", err)
	}
	if len(mods) != 1 || mods[0].Name != `C:\Windows\System32\drivers\nvlddmkm.sys` {
		t.Errorf("modules = %+v", mods)
	}
}

func TestReadMemoryClampsToRange(t *testing.T) {
	f := openFixture(t, dumptest.Minidump{
		StackBase:  0x8000,
		StackWords: []uint64{0xAA, 0xBB},
	})
	got, err := f.ReadMemory(0x8008, 64)
	if err != nil {
		t.Fatalf("ReadMemory: %v", err)
	}
	// Only one word remains past the requested offset.
	if len(got) != 8 {
		t.Errorf("read %d bytes, want 8", len(got))
	}
	if got[0] != 0xBB {
		t.Errorf("got[0] = 0x%X, want 0xBB", got[0])
	}
}

func TestReadMemoryOutsideCapture(t *testing.T) {
	f := openFixture(t, dumptest.Minidump{
		StackBase:  0x8000,
		StackWords: []uint64{1},
	})
	if _, err := f.ReadMemory(0x4000, 8); err == nil {
		t.Error("ReadMemory succeeded outside every captured range")
	}
}
