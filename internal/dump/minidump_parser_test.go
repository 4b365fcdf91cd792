package dump

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"bsod-cli/internal/dump/dumptest"
)

func openMinidump(t *testing.T, spec dumptest.Minidump) Parser {
	t.Helper()
	img := spec.Build()
	p, err := Open(bytes.NewReader(img), int64(len(img)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return p
}

func TestMinidumpSummary(t *testing.T) {
	p := openMinidump(t, dumptest.Minidump{
		Arch:          9,
		OSMajor:       10,
		OSMinor:       0,
		OSBuild:       19045,
		Processors:    8,
		TimeDateStamp: 1700000000,
	})
	s, err := p.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.Format != FormatMinidump {
		t.Errorf("Format = %q", s.Format)
	}
	if s.Architecture != "AMD64" {
		t.Errorf("Architecture = %q, want AMD64", s.Architecture)
	}
	if s.OSVersion != "10.0.19045" {
		t.Errorf("OSVersion = %q, want 10.0.19045", s.OSVersion)
	}
	if s.ProcessorCount != 8 {
		t.Errorf("ProcessorCount = %d, want 8", s.ProcessorCount)
	}
	if want := time.Unix(1700000000, 0).UTC(); !s.CaptureTime.Equal(want) {
		t.Errorf("CaptureTime = %v, want %v", s.CaptureTime, want)
	}
}

func TestMinidumpUnknownArchitecture(t *testing.T) {
	p := openMinidump(t, dumptest.Minidump{Arch: 3})
	s, err := p.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.Architecture != "UNKNOWN(3)" {
		t.Errorf("Architecture = %q, want UNKNOWN(3)", s.Architecture)
	}
}

func TestMinidumpCrashInfo(t *testing.T) {
	p := openMinidump(t, dumptest.Minidump{
		Arch:          9,
		ExceptionCode: 0x3B,
		ExceptionAddr: 0xFFFFF80000102030,
		ThreadID:      0x44,
		ExceptionInfo: []uint64{0xC0000005, 0xFFFFF80000102030, 1, 2, 3, 4},
	})
	ci, err := p.CrashInfo()
	if err != nil {
		t.Fatalf("CrashInfo: %v", err)
	}
	if ci.Code != 0x3B {
		t.Errorf("Code = 0x%X, want 0x3B", ci.Code)
	}
	if !ci.HasFaultingAddress || ci.FaultingAddress != 0xFFFFF80000102030 {
		t.Errorf("FaultingAddress = (0x%X, %v)", ci.FaultingAddress, ci.HasFaultingAddress)
	}
	if len(ci.Parameters) != 4 {
		t.Errorf("Parameters truncates to 4, got %d", len(ci.Parameters))
	}
	if ci.Exception == nil {
		t.Fatal("Exception record missing")
	}
	if ci.Exception.ThreadID != 0x44 {
		t.Errorf("Exception.ThreadID = 0x%X, want 0x44", ci.Exception.ThreadID)
	}
	if len(ci.Exception.Parameters) != 6 {
		t.Errorf("Exception.Parameters = %d entries, want all 6", len(ci.Exception.Parameters))
	}
}

func TestMinidumpWithoutExceptionStream(t *testing.T) {
	p := openMinidump(t, dumptest.Minidump{Arch: 9, OmitException: true})
	ci, err := p.CrashInfo()
	if err != nil {
		t.Fatalf("CrashInfo: %v", err)
	}
	if ci.Code != 0 || ci.HasFaultingAddress || ci.Exception != nil {
		t.Errorf("want zero crash info, got %+v", ci)
	}
}

func TestMinidumpModulesSorted(t *testing.T) {
	p := openMinidump(t, dumptest.Minidump{
		Arch: 9,
		Modules: []dumptest.Module{
			{Name: `C:\Windows\System32\drivers\zzz.sys`, Base: 0x9000, Size: 0x1000},
			{Name: `C:\Windows\System32\ntoskrnl.exe`, Base: 0x1000, Size: 0x4000},
		},
	})
	mods, ok, err := p.Modules()
	if err != nil || !ok {
		t.Fatalf("Modules: ok=%v err=%v", ok, err)
	}
	if len(mods) != 2 {
		t.Fatalf("got %d modules, want 2", len(mods))
	}
	if mods[0].Base != 0x1000 || mods[1].Base != 0x9000 {
		t.Errorf("modules not sorted by base: %+v", mods)
	}
	if mods[0].Name != `C:\Windows\System32\ntoskrnl.exe` {
		t.Errorf("Name = %q", mods[0].Name)
	}
}

func TestMinidumpStackTrace(t *testing.T) {
	const (
		ntBase  = 0xFFFFF80000100000
		drvBase = 0xFFFFF80000800000
	)
	p := openMinidump(t, dumptest.Minidump{
		Arch: 9,
		Modules: []dumptest.Module{
			{Name: "ntoskrnl.exe", Base: ntBase, Size: 0x100000},
			{Name: "faulty.sys", Base: drvBase, Size: 0x10000},
		},
		ExceptionCode: 0xD1,
		ExceptionAddr: drvBase + 0x1234,
		ThreadID:      7,
		StackBase:     0xFFFFA000DEAD0000,
		StackWords: []uint64{
			0,                // padding slot
			drvBase + 0x2000, // return into faulty.sys
			0x12,             // junk, resolves nowhere
			ntBase + 0x5000,  // return into the kernel
		},
	})
	trace, ok, err := p.StackTrace()
	if err != nil || !ok {
		t.Fatalf("StackTrace: ok=%v err=%v", ok, err)
	}
	if len(trace) != 3 {
		t.Fatalf("got %d frames, want 3: %+v", len(trace), trace)
	}
	if trace[0].Module != "faulty.sys" || trace[0].Offset != 0x1234 {
		t.Errorf("frame 0 = %+v, want faulty.sys+0x1234", trace[0])
	}
	if trace[1].Module != "faulty.sys" || trace[2].Module != "ntoskrnl.exe" {
		t.Errorf("scanned frames = %+v", trace[1:])
	}
}

func TestMinidumpStackWithoutThreads(t *testing.T) {
	p := openMinidump(t, dumptest.Minidump{
		Arch:           9,
		OmitThreadList: true,
		ExceptionCode:  0x1E,
		ExceptionAddr:  0x5000,
		Modules:        []dumptest.Module{{Name: "x.sys", Base: 0x5000, Size: 0x100}},
	})
	trace, ok, err := p.StackTrace()
	if err != nil || !ok {
		t.Fatalf("StackTrace: ok=%v err=%v", ok, err)
	}
	if len(trace) != 1 || trace[0].Module != "x.sys" {
		t.Errorf("trace = %+v, want single exception frame in x.sys", trace)
	}
}

func TestMinidumpTruncatedDirectoryIsMalformed(t *testing.T) {
	img := dumptest.Minidump{Arch: 9}.Build()[:20]
	_, err := Open(bytes.NewReader(img), int64(len(img)))
	if !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("err = %v, want ErrMalformedHeader", err)
	}
}
