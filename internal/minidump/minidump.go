// Package minidump decodes the Windows minidump container: a fixed
// header, a directory of typed streams, and stream payloads addressed
// by RVA (byte offset from the start of the file). Decoding is strict;
// any out-of-bounds or inconsistent structure fails instead of
// returning partial data.
package minidump

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"unicode/utf16"
)

// Signature is the little-endian "MDMP" magic.
const Signature = 0x504D444D

// Stream types consumed by the analyzer. The format defines more; we
// skip the rest.
const (
	ThreadListStream   = 3
	ModuleListStream   = 4
	MemoryListStream   = 5
	ExceptionStream    = 6
	SystemInfoStream   = 7
	Memory64ListStream = 9
)

const (
	headerSize   = 32
	dirEntrySize = 12
	moduleSize   = 108
	threadSize   = 48

	maxStreams    = 1024
	maxModules    = 4096
	maxThreads    = 4096
	maxMemRanges  = 1 << 20
	maxStringSize = 1 << 16
)

// Header is the fixed MINIDUMP_HEADER.
type Header struct {
	Signature          uint32
	Version            uint32
	NumberOfStreams    uint32
	StreamDirectoryRVA uint32
	CheckSum           uint32
	TimeDateStamp      uint32
	Flags              uint64
}

// Directory is one MINIDUMP_DIRECTORY entry.
type Directory struct {
	StreamType uint32
	DataSize   uint32
	RVA        uint32
}

// SystemInfo is the decoded prefix of MINIDUMP_SYSTEM_INFO.
type SystemInfo struct {
	ProcessorArchitecture uint16
	ProcessorLevel        uint16
	ProcessorRevision     uint16
	NumberOfProcessors    uint8
	ProductType           uint8
	MajorVersion          uint32
	MinorVersion          uint32
	BuildNumber           uint32
	PlatformID            uint32
}

// Module is one MINIDUMP_MODULE with its name resolved.
type Module struct {
	BaseOfImage   uint64
	SizeOfImage   uint32
	CheckSum      uint32
	TimeDateStamp uint32
	Name          string
}

// Thread is the subset of MINIDUMP_THREAD the stack walker needs.
type Thread struct {
	ID          uint32
	Teb         uint64
	StackStart  uint64
	StackSize   uint32
	StackRVA    uint32
	ContextRVA  uint32
	ContextSize uint32
}

// Exception is the decoded MINIDUMP_EXCEPTION_STREAM.
type Exception struct {
	ThreadID   uint32
	Code       uint32
	Flags      uint32
	Record     uint64
	Address    uint64
	Parameters []uint64
}

type memRange struct {
	start      uint64
	size       uint64
	fileOffset int64
}

// File is an open minidump.
type File struct {
	Header  Header
	Streams []Directory

	r    io.ReaderAt
	size int64
	mem  []memRange
}

// Open validates the header and loads the stream directory. The memory
// range table is built here too so ReadMemory is cheap.
func Open(r io.ReaderAt, size int64) (*File, error) {
	f := &File{r: r, size: size}

	buf, err := f.bytesAt(0, headerSize)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	f.Header = Header{
		Signature:          binary.LittleEndian.Uint32(buf[0:]),
		Version:            binary.LittleEndian.Uint32(buf[4:]),
		NumberOfStreams:    binary.LittleEndian.Uint32(buf[8:]),
		StreamDirectoryRVA: binary.LittleEndian.Uint32(buf[12:]),
		CheckSum:           binary.LittleEndian.Uint32(buf[16:]),
		TimeDateStamp:      binary.LittleEndian.Uint32(buf[20:]),
		Flags:              binary.LittleEndian.Uint64(buf[24:]),
	}
	if f.Header.Signature != Signature {
		return nil, fmt.Errorf("bad signature 0x%08X", f.Header.Signature)
	}
	if f.Header.NumberOfStreams == 0 || f.Header.NumberOfStreams > maxStreams {
		return nil, fmt.Errorf("implausible stream count %d", f.Header.NumberOfStreams)
	}

	dir, err := f.bytesAt(int64(f.Header.StreamDirectoryRVA), int(f.Header.NumberOfStreams)*dirEntrySize)
	if err != nil {
		return nil, fmt.Errorf("read stream directory: %w", err)
	}
	f.Streams = make([]Directory, f.Header.NumberOfStreams)
	for i := range f.Streams {
		e := dir[i*dirEntrySize:]
		f.Streams[i] = Directory{
			StreamType: binary.LittleEndian.Uint32(e[0:]),
			DataSize:   binary.LittleEndian.Uint32(e[4:]),
			RVA:        binary.LittleEndian.Uint32(e[8:]),
		}
	}

	if err := f.indexMemory(); err != nil {
		return nil, fmt.Errorf("index memory ranges: %w", err)
	}
	return f, nil
}

// Stream returns the first directory entry of the given type.
func (f *File) Stream(typ uint32) (Directory, bool) {
	for _, d := range f.Streams {
		if d.StreamType == typ {
			return d, true
		}
	}
	return Directory{}, false
}

// SystemInfo decodes the system info stream. Its absence is an error;
// a dump without it cannot be summarized.
func (f *File) SystemInfo() (*SystemInfo, error) {
	d, ok := f.Stream(SystemInfoStream)
	if !ok {
		return nil, errors.New("system info stream not present")
	}
	buf, err := f.bytesAt(int64(d.RVA), 24)
	if err != nil {
		return nil, fmt.Errorf("read system info: %w", err)
	}
	return &SystemInfo{
		ProcessorArchitecture: binary.LittleEndian.Uint16(buf[0:]),
		ProcessorLevel:        binary.LittleEndian.Uint16(buf[2:]),
		ProcessorRevision:     binary.LittleEndian.Uint16(buf[4:]),
		NumberOfProcessors:    buf[6],
		ProductType:           buf[7],
		MajorVersion:          binary.LittleEndian.Uint32(buf[8:]),
		MinorVersion:          binary.LittleEndian.Uint32(buf[12:]),
		BuildNumber:           binary.LittleEndian.Uint32(buf[16:]),
		PlatformID:            binary.LittleEndian.Uint32(buf[20:]),
	}, nil
}

// Modules decodes the module list stream. A dump without one yields an
// empty slice.
func (f *File) Modules() ([]Module, error) {
	d, ok := f.Stream(ModuleListStream)
	if !ok {
		return nil, nil
	}
	countBuf, err := f.bytesAt(int64(d.RVA), 4)
	if err != nil {
		return nil, fmt.Errorf("read module count: %w", err)
	}
	count := binary.LittleEndian.Uint32(countBuf)
	if count > maxModules {
		return nil, fmt.Errorf("implausible module count %d", count)
	}
	buf, err := f.bytesAt(int64(d.RVA)+4, int(count)*moduleSize)
	if err != nil {
		return nil, fmt.Errorf("read module list: %w", err)
	}

	modules := make([]Module, 0, count)
	for i := 0; i < int(count); i++ {
		e := buf[i*moduleSize:]
		m := Module{
			BaseOfImage:   binary.LittleEndian.Uint64(e[0:]),
			SizeOfImage:   binary.LittleEndian.Uint32(e[8:]),
			CheckSum:      binary.LittleEndian.Uint32(e[12:]),
			TimeDateStamp: binary.LittleEndian.Uint32(e[16:]),
		}
		nameRVA := binary.LittleEndian.Uint32(e[20:])
		m.Name, err = f.stringAt(nameRVA)
		if err != nil {
			return nil, fmt.Errorf("read module %d name: %w", i, err)
		}
		modules = append(modules, m)
	}
	return modules, nil
}

// Threads decodes the thread list stream.
func (f *File) Threads() ([]Thread, error) {
	d, ok := f.Stream(ThreadListStream)
	if !ok {
		return nil, nil
	}
	countBuf, err := f.bytesAt(int64(d.RVA), 4)
	if err != nil {
		return nil, fmt.Errorf("read thread count: %w", err)
	}
	count := binary.LittleEndian.Uint32(countBuf)
	if count > maxThreads {
		return nil, fmt.Errorf("implausible thread count %d", count)
	}
	buf, err := f.bytesAt(int64(d.RVA)+4, int(count)*threadSize)
	if err != nil {
		return nil, fmt.Errorf("read thread list: %w", err)
	}

	threads := make([]Thread, 0, count)
	for i := 0; i < int(count); i++ {
		e := buf[i*threadSize:]
		threads = append(threads, Thread{
			ID:          binary.LittleEndian.Uint32(e[0:]),
			Teb:         binary.LittleEndian.Uint64(e[16:]),
			StackStart:  binary.LittleEndian.Uint64(e[24:]),
			StackSize:   binary.LittleEndian.Uint32(e[32:]),
			StackRVA:    binary.LittleEndian.Uint32(e[36:]),
			ContextSize: binary.LittleEndian.Uint32(e[40:]),
			ContextRVA:  binary.LittleEndian.Uint32(e[44:]),
		})
	}
	return threads, nil
}

// Exception decodes the exception stream. ok is false when the dump
// carries none, which is normal for non-crash captures.
func (f *File) Exception() (*Exception, bool, error) {
	d, ok := f.Stream(ExceptionStream)
	if !ok {
		return nil, false, nil
	}
	// MINIDUMP_EXCEPTION_STREAM: ThreadId, alignment, then the
	// 152-byte exception record.
	buf, err := f.bytesAt(int64(d.RVA), 8+152)
	if err != nil {
		return nil, false, fmt.Errorf("read exception stream: %w", err)
	}
	rec := buf[8:]
	numParams := binary.LittleEndian.Uint32(rec[24:])
	if numParams > 15 {
		numParams = 15
	}
	params := make([]uint64, numParams)
	for i := range params {
		params[i] = binary.LittleEndian.Uint64(rec[32+i*8:])
	}
	return &Exception{
		ThreadID:   binary.LittleEndian.Uint32(buf[0:]),
		Code:       binary.LittleEndian.Uint32(rec[0:]),
		Flags:      binary.LittleEndian.Uint32(rec[4:]),
		Record:     binary.LittleEndian.Uint64(rec[8:]),
		Address:    binary.LittleEndian.Uint64(rec[16:]),
		Parameters: params,
	}, true, nil
}

// ReadMemory copies captured memory starting at addr. The read is
// clamped to the containing range, so fewer than n bytes may come
// back; addr outside every captured range is an error.
func (f *File) ReadMemory(addr uint64, n int) ([]byte, error) {
	i := sort.Search(len(f.mem), func(i int) bool {
		return f.mem[i].start+f.mem[i].size > addr
	})
	if i >= len(f.mem) || addr < f.mem[i].start {
		return nil, fmt.Errorf("address 0x%X not captured", addr)
	}
	r := f.mem[i]
	off := addr - r.start
	if avail := r.size - off; uint64(n) > avail {
		n = int(avail)
	}
	return f.bytesAt(r.fileOffset+int64(addr-r.start), n)
}

func (f *File) indexMemory() error {
	if d, ok := f.Stream(MemoryListStream); ok {
		countBuf, err := f.bytesAt(int64(d.RVA), 4)
		if err != nil {
			return err
		}
		count := binary.LittleEndian.Uint32(countBuf)
		if count > maxMemRanges {
			return fmt.Errorf("implausible memory range count %d", count)
		}
		buf, err := f.bytesAt(int64(d.RVA)+4, int(count)*16)
		if err != nil {
			return err
		}
		for i := 0; i < int(count); i++ {
			e := buf[i*16:]
			f.mem = append(f.mem, memRange{
				start:      binary.LittleEndian.Uint64(e[0:]),
				size:       uint64(binary.LittleEndian.Uint32(e[8:])),
				fileOffset: int64(binary.LittleEndian.Uint32(e[12:])),
			})
		}
	}
	if d, ok := f.Stream(Memory64ListStream); ok {
		head, err := f.bytesAt(int64(d.RVA), 16)
		if err != nil {
			return err
		}
		count := binary.LittleEndian.Uint64(head[0:])
		base := binary.LittleEndian.Uint64(head[8:])
		if count > maxMemRanges {
			return fmt.Errorf("implausible memory range count %d", count)
		}
		buf, err := f.bytesAt(int64(d.RVA)+16, int(count)*16)
		if err != nil {
			return err
		}
		// Memory64 payloads are laid out back to back starting at the
		// shared base RVA.
		offset := int64(base)
		for i := 0; i < int(count); i++ {
			e := buf[i*16:]
			size := binary.LittleEndian.Uint64(e[8:])
			f.mem = append(f.mem, memRange{
				start:      binary.LittleEndian.Uint64(e[0:]),
				size:       size,
				fileOffset: offset,
			})
			offset += int64(size)
		}
	}
	sort.Slice(f.mem, func(i, j int) bool { return f.mem[i].start < f.mem[j].start })
	return nil
}

// stringAt decodes a MINIDUMP_STRING: a 32-bit byte length followed by
// UTF-16LE data.
func (f *File) stringAt(rva uint32) (string, error) {
	lenBuf, err := f.bytesAt(int64(rva), 4)
	if err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(lenBuf)
	if n%2 != 0 || n > maxStringSize {
		return "", fmt.Errorf("bad string length %d at rva 0x%X", n, rva)
	}
	buf, err := f.bytesAt(int64(rva)+4, int(n))
	if err != nil {
		return "", err
	}
	u16 := make([]uint16, n/2)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(buf[i*2:])
	}
	return string(utf16.Decode(u16)), nil
}

func (f *File) bytesAt(off int64, n int) ([]byte, error) {
	if n < 0 || off < 0 || off+int64(n) > f.size {
		return nil, fmt.Errorf("range [0x%X, 0x%X) outside file of %d bytes", off, off+int64(n), f.size)
	}
	buf := make([]byte, n)
	if _, err := f.r.ReadAt(buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}
