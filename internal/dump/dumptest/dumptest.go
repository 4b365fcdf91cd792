// Package dumptest builds synthetic crash-dump images for tests. The
// builders emit structurally valid files small enough to keep in
// memory: a minidump with real streams, and a PAGEDU64 kernel dump
// with a summary page bitmap, live page tables, and a walkable loaded
// module list.
package dumptest

import (
	"encoding/binary"
	"time"
	"unicode/utf16"
)

var le = binary.LittleEndian

// Module describes one loaded module to embed in a fixture.
type Module struct {
	Name string
	Base uint64
	Size uint64
}

// Minidump describes a synthetic minidump.
type Minidump struct {
	Arch           uint16 // processor architecture; 9 = AMD64
	OSMajor        uint32
	OSMinor        uint32
	OSBuild        uint32
	Processors     uint8
	TimeDateStamp  uint32
	Modules        []Module
	ExceptionCode  uint32
	ExceptionAddr  uint64
	ThreadID       uint32
	ExceptionInfo  []uint64
	StackBase      uint64
	StackWords     []uint64
	OmitException  bool
	OmitThreadList bool
}

const (
	threadListStream   = 3
	moduleListStream   = 4
	memoryListStream   = 5
	exceptionStream    = 6
	systemInfoStream   = 7
	minidumpHeaderSize = 32
	dirEntrySize       = 12
)

// Build assembles the minidump image.
func (m Minidump) Build() []byte {
	streams := []uint32{systemInfoStream, moduleListStream}
	if !m.OmitThreadList {
		streams = append(streams, threadListStream, memoryListStream)
	}
	if !m.OmitException {
		streams = append(streams, exceptionStream)
	}

	buf := make([]byte, minidumpHeaderSize+dirEntrySize*len(streams))
	le.PutUint32(buf[0:], 0x504D444D) // MDMP
	le.PutUint32(buf[4:], 0xA793)
	le.PutUint32(buf[8:], uint32(len(streams)))
	le.PutUint32(buf[12:], minidumpHeaderSize)
	le.PutUint32(buf[20:], m.TimeDateStamp)

	appendPayload := func(b []byte) uint32 {
		rva := uint32(len(buf))
		buf = append(buf, b...)
		return rva
	}
	setDir := func(i int, typ, rva, size uint32) {
		e := buf[minidumpHeaderSize+dirEntrySize*i:]
		le.PutUint32(e[0:], typ)
		le.PutUint32(e[4:], size)
		le.PutUint32(e[8:], rva)
	}

	dir := 0
	// System info.
	si := make([]byte, 56)
	le.PutUint16(si[0:], m.Arch)
	si[6] = m.Processors
	le.PutUint32(si[8:], m.OSMajor)
	le.PutUint32(si[12:], m.OSMinor)
	le.PutUint32(si[16:], m.OSBuild)
	rva := appendPayload(si)
	setDir(dir, systemInfoStream, rva, uint32(len(si)))
	dir++

	// Module names precede the module list so their RVAs are known.
	nameRVAs := make([]uint32, len(m.Modules))
	for i, mod := range m.Modules {
		nameRVAs[i] = appendPayload(minidumpString(mod.Name))
	}
	ml := make([]byte, 4+108*len(m.Modules))
	le.PutUint32(ml[0:], uint32(len(m.Modules)))
	for i, mod := range m.Modules {
		e := ml[4+108*i:]
		le.PutUint64(e[0:], mod.Base)
		le.PutUint32(e[8:], uint32(mod.Size))
		le.PutUint32(e[16:], m.TimeDateStamp)
		le.PutUint32(e[20:], nameRVAs[i])
	}
	rva = appendPayload(ml)
	setDir(dir, moduleListStream, rva, uint32(len(ml)))
	dir++

	if !m.OmitThreadList {
		stack := make([]byte, 8*len(m.StackWords))
		for i, w := range m.StackWords {
			le.PutUint64(stack[i*8:], w)
		}
		stackRVA := appendPayload(stack)

		tl := make([]byte, 4+48)
		le.PutUint32(tl[0:], 1)
		e := tl[4:]
		le.PutUint32(e[0:], m.ThreadID)
		le.PutUint64(e[24:], m.StackBase)
		le.PutUint32(e[32:], uint32(len(stack)))
		le.PutUint32(e[36:], stackRVA)
		rva = appendPayload(tl)
		setDir(dir, threadListStream, rva, uint32(len(tl)))
		dir++

		mem := make([]byte, 4+16)
		le.PutUint32(mem[0:], 1)
		le.PutUint64(mem[4:], m.StackBase)
		le.PutUint32(mem[12:], uint32(len(stack)))
		le.PutUint32(mem[16:], stackRVA)
		rva = appendPayload(mem)
		setDir(dir, memoryListStream, rva, uint32(len(mem)))
		dir++
	}

	if !m.OmitException {
		ex := make([]byte, 8+152)
		le.PutUint32(ex[0:], m.ThreadID)
		rec := ex[8:]
		le.PutUint32(rec[0:], m.ExceptionCode)
		le.PutUint64(rec[16:], m.ExceptionAddr)
		le.PutUint32(rec[24:], uint32(len(m.ExceptionInfo)))
		for i, p := range m.ExceptionInfo {
			le.PutUint64(rec[32+i*8:], p)
		}
		rva = appendPayload(ex)
		setDir(dir, exceptionStream, rva, uint32(len(ex)))
	}
	return buf
}

func minidumpString(s string) []byte {
	u16 := utf16.Encode([]rune(s))
	b := make([]byte, 4+2*len(u16))
	le.PutUint32(b[0:], uint32(2*len(u16)))
	for i, c := range u16 {
		le.PutUint16(b[4+i*2:], c)
	}
	return b
}

// KernelDump describes a synthetic PAGEDU64 kernel dump. The image
// carries 16 physical pages; page tables live in the first five and a
// directly mapped window of kernel address space in the rest, holding
// the module list, names, and stack.
type KernelDump struct {
	BugCheckCode   uint32
	Parameters     [4]uint64
	Machine        uint32 // PE machine type; 0x8664 = AMD64
	Processors     uint32
	OSMajor        uint32
	OSMinor        uint32
	SystemTime     time.Time
	Modules        []Module
	StackWords     []uint64
	Rip            uint64
	DumpType       uint32 // defaults to 2 (kernel)
	BreakBitmap    bool   // corrupt the summary header signature
	TruncateHeader bool   // cut the file before DumpType
}

// VABase is the start of the kernel window the fixture maps.
const VABase = 0xFFFFF80000000000

const (
	pageSize    = 0x1000
	hdrSize     = 0x2000
	dataStart   = 0x3000 // page data follows the summary header
	physPages   = 16
	windowPhys  = 0x5000 // first physical page of the mapped window
	stackOffset = 0x1000 // window offset of the synthetic stack
)

// StackVA is where the fixture's stack lives; the header's Rsp points
// here.
const StackVA = VABase + stackOffset

// Build assembles the kernel dump image.
func (k KernelDump) Build() []byte {
	img := make([]byte, dataStart+physPages*pageSize)

	phys := func(pfn int) []byte { return img[dataStart+pfn*pageSize:] }

	// Page tables: one chain mapping VABase..VABase+0x7FFF onto
	// physical 0x5000..0xCFFF.
	le.PutUint64(phys(1)[0x1F0*8:], 0x2000|1)
	le.PutUint64(phys(2)[0:], 0x3000|1)
	le.PutUint64(phys(3)[0:], 0x4000|1)
	for i := 0; i < 8; i++ {
		le.PutUint64(phys(4)[i*8:], uint64(windowPhys+i*pageSize)|1)
	}

	window := img[dataStart+5*pageSize:]
	vaPut64 := func(off int, v uint64) { le.PutUint64(window[off:], v) }

	// Loaded module list: head at window offset 0, entries at 0x100
	// apart, names from 0x800.
	entryOff := func(i int) int { return 0x100 * (i + 1) }
	nameOff := 0x800
	for i, mod := range k.Modules {
		off := entryOff(i)
		next := uint64(VABase) // last entry links back to the head
		if i+1 < len(k.Modules) {
			next = VABase + uint64(entryOff(i+1))
		}
		vaPut64(off, next)
		vaPut64(off+0x30, mod.Base)
		vaPut64(off+0x40, mod.Size)
		u16 := utf16.Encode([]rune(mod.Name))
		le.PutUint16(window[off+0x58:], uint16(2*len(u16)))
		le.PutUint16(window[off+0x58+2:], uint16(2*len(u16)))
		vaPut64(off+0x58+8, VABase+uint64(nameOff))
		for j, c := range u16 {
			le.PutUint16(window[nameOff+j*2:], c)
		}
		nameOff += 2*len(u16) + 2
	}
	if len(k.Modules) > 0 {
		vaPut64(0, VABase+uint64(entryOff(0)))
	} else {
		vaPut64(0, VABase) // empty list: head links to itself
	}

	for i, w := range k.StackWords {
		vaPut64(stackOffset+i*8, w)
	}

	// DUMP_HEADER64.
	copy(img[0:], "PAGEDU64")
	le.PutUint32(img[0x08:], k.OSMajor)
	le.PutUint32(img[0x0C:], k.OSMinor)
	le.PutUint64(img[0x10:], 0x1000) // DirectoryTableBase
	le.PutUint64(img[0x20:], VABase) // PsLoadedModuleList
	le.PutUint32(img[0x30:], k.Machine)
	le.PutUint32(img[0x34:], k.Processors)
	le.PutUint32(img[0x38:], k.BugCheckCode)
	for i, p := range k.Parameters {
		le.PutUint64(img[0x40+i*8:], p)
	}
	le.PutUint64(img[0x348+0x98:], StackVA) // Rsp
	le.PutUint64(img[0x348+0xF8:], k.Rip)
	typ := k.DumpType
	if typ == 0 {
		typ = 2
	}
	le.PutUint32(img[0xF98:], typ)
	if !k.SystemTime.IsZero() {
		const epochDelta = 116444736000000000
		ft := uint64(k.SystemTime.UnixNano()/100) + epochDelta
		le.PutUint64(img[0xFA8:], ft)
	}

	// Summary dump header with every physical page present.
	copy(img[hdrSize:], "SDMPDUMP")
	le.PutUint32(img[hdrSize+0x0C:], dataStart)
	le.PutUint32(img[hdrSize+0x10:], physPages)
	le.PutUint32(img[hdrSize+0x14:], physPages)
	le.PutUint64(img[hdrSize+0x18:], 1<<physPages-1)
	if k.BreakBitmap {
		copy(img[hdrSize:], "XXXX")
	}
	if k.TruncateHeader {
		return img[:0xF00]
	}
	return img
}
