// Package kdmp decodes 64-bit Windows page dumps (PAGEDU64): the
// 8 KiB DUMP_HEADER64, the summary-dump page bitmap kernel dumps use
// to map physical pages into the file, and the virtual-address
// translation needed to walk kernel structures such as the loaded
// module list.
package kdmp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// HeaderSize is the fixed size of DUMP_HEADER64.
const HeaderSize = 0x2000

const pageSize = 0x1000

// DUMP_HEADER64 field offsets.
const (
	offMajorVersion       = 0x008
	offMinorVersion       = 0x00C
	offDirectoryTableBase = 0x010
	offPsLoadedModuleList = 0x020
	offMachineImageType   = 0x030
	offNumberProcessors   = 0x034
	offBugCheckCode       = 0x038
	offBugCheckParams     = 0x040
	offContextRecord      = 0x348
	offExceptionRecord    = 0xF00
	// OffDumpType is exported for format detection, which must split
	// kernel from full dumps before any parser is chosen.
	OffDumpType   = 0xF98
	offSystemTime = 0xFA8
)

// DumpType values from the header.
const (
	TypeFull   = 1
	TypeKernel = 2
)

// Offsets of the registers we use inside the AMD64 CONTEXT record.
const (
	ctxRsp = 0x98
	ctxRip = 0xF8
)

var signature = []byte("PAGEDU64")

// Header carries the DUMP_HEADER64 fields the analyzer consumes.
type Header struct {
	MajorVersion       uint32
	MinorVersion       uint32
	DirectoryTableBase uint64
	PsLoadedModuleList uint64
	MachineImageType   uint32
	NumberProcessors   uint32
	BugCheckCode       uint32
	BugCheckParameters [4]uint64
	DumpType           uint32
	SystemTime         time.Time
	Rsp                uint64
	Rip                uint64
	Exception          ExceptionRecord
}

// ExceptionRecord is the EXCEPTION_RECORD64 embedded in the header.
type ExceptionRecord struct {
	Code       uint32
	Flags      uint32
	Address    uint64
	Parameters []uint64
}

// File is an open page dump.
type File struct {
	Header Header

	r     io.ReaderAt
	size  int64
	pages *pageIndex
}

// Open validates the PAGEDU64 signature and decodes the header. It
// does not touch the memory image; call SetupTranslation before any
// virtual reads.
func Open(r io.ReaderAt, size int64) (*File, error) {
	if size < HeaderSize {
		return nil, fmt.Errorf("file of %d bytes is shorter than the %d-byte header", size, HeaderSize)
	}
	hdr := make([]byte, HeaderSize)
	if _, err := r.ReadAt(hdr, 0); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(hdr[:8], signature) {
		return nil, fmt.Errorf("bad signature %q", hdr[:8])
	}

	f := &File{r: r, size: size}
	h := &f.Header
	h.MajorVersion = binary.LittleEndian.Uint32(hdr[offMajorVersion:])
	h.MinorVersion = binary.LittleEndian.Uint32(hdr[offMinorVersion:])
	h.DirectoryTableBase = binary.LittleEndian.Uint64(hdr[offDirectoryTableBase:])
	h.PsLoadedModuleList = binary.LittleEndian.Uint64(hdr[offPsLoadedModuleList:])
	h.MachineImageType = binary.LittleEndian.Uint32(hdr[offMachineImageType:])
	h.NumberProcessors = binary.LittleEndian.Uint32(hdr[offNumberProcessors:])
	h.BugCheckCode = binary.LittleEndian.Uint32(hdr[offBugCheckCode:])
	for i := range h.BugCheckParameters {
		h.BugCheckParameters[i] = binary.LittleEndian.Uint64(hdr[offBugCheckParams+i*8:])
	}
	h.DumpType = binary.LittleEndian.Uint32(hdr[OffDumpType:])
	h.SystemTime = filetime(binary.LittleEndian.Uint64(hdr[offSystemTime:]))
	h.Rsp = binary.LittleEndian.Uint64(hdr[offContextRecord+ctxRsp:])
	h.Rip = binary.LittleEndian.Uint64(hdr[offContextRecord+ctxRip:])
	h.Exception = decodeException(hdr[offExceptionRecord:])
	return f, nil
}

func decodeException(rec []byte) ExceptionRecord {
	numParams := binary.LittleEndian.Uint32(rec[24:])
	if numParams > 15 {
		numParams = 15
	}
	params := make([]uint64, numParams)
	for i := range params {
		params[i] = binary.LittleEndian.Uint64(rec[32+i*8:])
	}
	return ExceptionRecord{
		Code:       binary.LittleEndian.Uint32(rec[0:]),
		Flags:      binary.LittleEndian.Uint32(rec[4:]),
		Address:    binary.LittleEndian.Uint64(rec[16:]),
		Parameters: params,
	}
}

// filetime converts a Windows FILETIME (100 ns ticks since 1601) to
// time.Time; zero stays zero.
func filetime(t uint64) time.Time {
	if t == 0 {
		return time.Time{}
	}
	const epochDelta = 116444736000000000 // 1601 to 1970 in 100 ns units
	if t < epochDelta {
		return time.Time{}
	}
	ticks := t - epochDelta
	return time.Unix(int64(ticks/10000000), int64(ticks%10000000)*100).UTC()
}
