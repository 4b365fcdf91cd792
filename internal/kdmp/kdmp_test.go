package kdmp

import (
	"bytes"
	"testing"
	"time"

	"bsod-cli/internal/dump/dumptest"
)

func openFixture(t *testing.T, spec dumptest.KernelDump) *File {
	t.Helper()
	img := spec.Build()
	f, err := Open(bytes.NewReader(img), int64(len(img)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return f
}

func TestOpenHeaderFields(t *testing.T) {
	when := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := openFixture(t, dumptest.KernelDump{
		BugCheckCode: 0x50,
		Parameters:   [4]uint64{0xFFFF900000000000, 0, 0x123, 2},
		Machine:      0x8664,
		Processors:   4,
		OSMajor:      10,
		OSMinor:      22621,
		SystemTime:   when,
	})
	h := f.Header
	if h.BugCheckCode != 0x50 {
		t.Errorf("BugCheckCode = 0x%X", h.BugCheckCode)
	}
	if h.BugCheckParameters[2] != 0x123 {
		t.Errorf("BugCheckParameters = %#v", h.BugCheckParameters)
	}
	if h.MachineImageType != 0x8664 || h.NumberProcessors != 4 {
		t.Errorf("machine/processors = 0x%X/%d", h.MachineImageType, h.NumberProcessors)
	}
	if h.DumpType != TypeKernel {
		t.Errorf("DumpType = %d", h.DumpType)
	}
	if !h.SystemTime.Equal(when) {
		t.Errorf("SystemTime = %v, want %v", h.SystemTime, when)
	}
	if h.Rsp != dumptest.StackVA {
		t.Errorf("Rsp = 0x%X", h.Rsp)
	}
}

func TestOpenRejectsShortFile(t *testing.T) {
	if _, err := Open(bytes.NewReader(make([]byte, 0x100)), 0x100); err == nil {
		t.Error("Open accepted a file shorter than the header")
	}
}

func TestFiletime(t *testing.T) {
	if !filetime(0).IsZero() {
		t.Error("filetime(0) must stay zero")
	}
	// 2020-01-01T00:00:00Z in FILETIME ticks.
	got := filetime(132223104000000000)
	want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("filetime = %v, want %v", got, want)
	}
}

func TestVirtualReads(t *testing.T) {
	f := openFixture(t, dumptest.KernelDump{
		StackWords: []uint64{0xDEAD, 0xBEEF},
	})
	if err := f.SetupTranslation(); err != nil {
		t.Fatalf("SetupTranslation: %v", err)
	}
	v, err := f.readVirt64(dumptest.StackVA)
	if err != nil {
		t.Fatalf("readVirt64: %v", err)
	}
	if v != 0xDEAD {
		t.Errorf("read 0x%X, want 0xDEAD", v)
	}

	// Page-crossing read: the last word of the stack page plus the
	// first of the next still resolve through separate PTEs.
	buf := make([]byte, 16)
	if err := f.ReadVirt(dumptest.StackVA+0xFF8, buf); err != nil {
		t.Fatalf("ReadVirt across pages: %v", err)
	}

	if _, err := f.readVirt64(0xFFFFFFFF00000000); err == nil {
		t.Error("readVirt64 resolved an unmapped address")
	}
}

func TestModuleWalkStopsAtHead(t *testing.T) {
	f := openFixture(t, dumptest.KernelDump{
		Modules: []dumptest.Module{
			{Name: "ntoskrnl.exe", Base: dumptest.VABase + 0x2000, Size: 0x1000},
			{Name: "hal.dll", Base: dumptest.VABase + 0x4000, Size: 0x800},
		},
	})
	if err := f.SetupTranslation(); err != nil {
		t.Fatalf("SetupTranslation: %v", err)
	}
	mods, err := f.Modules(512)
	if err != nil {
		t.Fatalf("Modules: %v", err)
	}
	if len(mods) != 2 {
		t.Fatalf("walked %d modules, want 2: %+v", len(mods), mods)
	}
	if mods[0].Name != "ntoskrnl.exe" || mods[1].Name != "hal.dll" {
		t.Errorf("modules = %+v", mods)
	}
	if mods[1].Size != 0x800 {
		t.Errorf("hal.dll size = 0x%X", mods[1].Size)
	}
}

func TestModuleWalkEmptyListErrors(t *testing.T) {
	f := openFixture(t, dumptest.KernelDump{})
	if err := f.SetupTranslation(); err != nil {
		t.Fatalf("SetupTranslation: %v", err)
	}
	if _, err := f.Modules(512); err == nil {
		t.Error("Modules returned success for an empty list")
	}
}

func TestPageIndexRank(t *testing.T) {
	idx := &pageIndex{
		dataStart: 0x1000,
		bitmap:    []uint64{0b1011}, // pages 0, 1 and 3 present
		rank:      []uint32{0},
		numPages:  64,
	}
	tests := []struct {
		phys    uint64
		want    int64
		present bool
	}{
		{0x0, 0x1000, true},
		{0x1234, 0x2234, true},
		{0x2000, 0, false},
		{0x3000, 0x3000, true},
		{0x999999999, 0, false},
	}
	for _, tt := range tests {
		got, err := idx.fileOffset(tt.phys)
		if (err == nil) != tt.present {
			t.Errorf("fileOffset(0x%X) err = %v, present = %v", tt.phys, err, tt.present)
			continue
		}
		if tt.present && got != tt.want {
			t.Errorf("fileOffset(0x%X) = 0x%X, want 0x%X", tt.phys, got, tt.want)
		}
	}
}
