package dump

import (
	"bytes"
	"errors"
	"testing"

	"bsod-cli/internal/dump/dumptest"
)

func TestDetectMinidump(t *testing.T) {
	img := dumptest.Minidump{Arch: 9, Processors: 4}.Build()
	format, err := Detect(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if format != FormatMinidump {
		t.Errorf("format = %q, want %q", format, FormatMinidump)
	}
}

func TestDetectPageDumpVariants(t *testing.T) {
	tests := []struct {
		name     string
		dumpType uint32
		want     Format
	}{
		{"kernel", 2, FormatKernelDump},
		{"full", 1, FormatFullDump},
		{"unknown type gets full capability set", 7, FormatFullDump},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := dumptest.KernelDump{DumpType: tt.dumpType}.Build()
			format, err := Detect(bytes.NewReader(img))
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if format != tt.want {
				t.Errorf("format = %q, want %q", format, tt.want)
			}
		})
	}
}

func TestDetectUnsupported32Bit(t *testing.T) {
	img := append([]byte("PAGEDU48"), make([]byte, 0x2000)...)
	_, err := Detect(bytes.NewReader(img))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if errors.Is(err, ErrMalformedHeader) {
		t.Error("unsupported format must not double as malformed")
	}
}

func TestDetectMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte("MD")},
		{"unknown signature", []byte("NOTADUMPNOTADUMP")},
		{"PAGEDU64 truncated before DumpType", dumptest.KernelDump{TruncateHeader: true}.Build()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrMalformedHeader) {
				t.Fatalf("err = %v, want ErrMalformedHeader", err)
			}
		})
	}
}

func TestOpenDispatch(t *testing.T) {
	md := dumptest.Minidump{Arch: 9}.Build()
	p, err := Open(bytes.NewReader(md), int64(len(md)))
	if err != nil {
		t.Fatalf("Open minidump: %v", err)
	}
	if p.Format() != FormatMinidump {
		t.Errorf("Format() = %q, want minidump", p.Format())
	}

	kd := dumptest.KernelDump{Machine: 0x8664}.Build()
	p, err = Open(bytes.NewReader(kd), int64(len(kd)))
	if err != nil {
		t.Fatalf("Open kernel dump: %v", err)
	}
	if p.Format() != FormatKernelDump {
		t.Errorf("Format() = %q, want kernel", p.Format())
	}
}

func TestOpenUnsupportedReturnsNoParser(t *testing.T) {
	img := append([]byte("PAGEDU48"), make([]byte, 0x2000)...)
	p, err := Open(bytes.NewReader(img), int64(len(img)))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if p != nil {
		t.Error("parser must be nil on unsupported format")
	}
}

func TestResolveFrame(t *testing.T) {
	modules := []Module{
		{Name: "a.sys", Base: 0x1000, Size: 0x500},
		{Name: "b.sys", Base: 0x2000, Size: 0x500},
	}
	tests := []struct {
		addr       uint64
		wantModule string
		wantOffset uint64
	}{
		{0x1200, "a.sys", 0x200},
		{0x2000, "b.sys", 0},
		{0x24FF, "b.sys", 0x4FF},
		{0x2500, "", 0},
		{0x0FFF, "", 0},
	}
	for _, tt := range tests {
		f := resolveFrame(tt.addr, modules)
		if f.Module != tt.wantModule || f.Offset != tt.wantOffset {
			t.Errorf("resolveFrame(0x%X) = (%q, 0x%X), want (%q, 0x%X)",
				tt.addr, f.Module, f.Offset, tt.wantModule, tt.wantOffset)
		}
	}
}
