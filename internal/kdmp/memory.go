package kdmp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

// Summary-dump header (follows DUMP_HEADER64 in kernel dumps).
const (
	summaryOffset     = HeaderSize
	offSummaryHdrSize = 0x0C
	offSummaryBitmap  = 0x18

	// 1 TiB of RAM worth of page bits; anything larger is garbage.
	maxBitmapBytes = 32 << 20
)

var summarySignature = []byte("SDMP")

var errNotPresent = errors.New("page not present in dump")

// pageIndex maps physical page numbers to file offsets through the
// summary-dump bitmap: page data is stored contiguously for every set
// bit, in page-number order.
type pageIndex struct {
	dataStart int64
	bitmap    []uint64
	rank      []uint32 // set bits in all words before this one
	numPages  uint64
}

// SetupTranslation loads the summary-dump bitmap so physical and
// virtual reads can resolve file offsets. Only kernel dumps carry the
// bitmap; full dumps and damaged files fail here.
func (f *File) SetupTranslation() error {
	head := make([]byte, offSummaryBitmap)
	if _, err := f.r.ReadAt(head, summaryOffset); err != nil {
		return fmt.Errorf("read summary header: %w", err)
	}
	if !bytes.Equal(head[:4], summarySignature) {
		return fmt.Errorf("bad summary signature %q", head[:4])
	}
	headerSize := binary.LittleEndian.Uint32(head[offSummaryHdrSize:])
	bitmapBits := binary.LittleEndian.Uint32(head[0x10:])

	bitmapBytes := (uint64(bitmapBits) + 7) / 8
	if bitmapBytes == 0 || bitmapBytes > maxBitmapBytes {
		return fmt.Errorf("implausible bitmap of %d bits", bitmapBits)
	}
	raw := make([]byte, (bitmapBytes+7)&^7)
	if _, err := f.r.ReadAt(raw[:bitmapBytes], summaryOffset+offSummaryBitmap); err != nil {
		return fmt.Errorf("read page bitmap: %w", err)
	}

	idx := &pageIndex{
		dataStart: int64(headerSize),
		bitmap:    make([]uint64, len(raw)/8),
		numPages:  uint64(bitmapBits),
	}
	idx.rank = make([]uint32, len(idx.bitmap))
	var total uint32
	for i := range idx.bitmap {
		idx.bitmap[i] = binary.LittleEndian.Uint64(raw[i*8:])
		idx.rank[i] = total
		total += uint32(bits.OnesCount64(idx.bitmap[i]))
	}
	f.pages = idx
	return nil
}

func (p *pageIndex) fileOffset(phys uint64) (int64, error) {
	pfn := phys / pageSize
	if pfn >= p.numPages {
		return 0, errNotPresent
	}
	word, bit := pfn/64, pfn%64
	w := p.bitmap[word]
	if w&(1<<bit) == 0 {
		return 0, errNotPresent
	}
	ordinal := uint64(p.rank[word]) + uint64(bits.OnesCount64(w&(1<<bit-1)))
	return p.dataStart + int64(ordinal)*pageSize + int64(phys%pageSize), nil
}

// ReadPhys fills buf from physical memory. Reads may cross page
// boundaries; every touched page must be present in the dump.
func (f *File) ReadPhys(phys uint64, buf []byte) error {
	if f.pages == nil {
		return errors.New("translation not set up")
	}
	for len(buf) > 0 {
		off, err := f.pages.fileOffset(phys)
		if err != nil {
			return fmt.Errorf("phys 0x%X: %w", phys, err)
		}
		n := pageSize - int(phys%pageSize)
		if n > len(buf) {
			n = len(buf)
		}
		if off+int64(n) > f.size {
			return fmt.Errorf("phys 0x%X maps past end of file", phys)
		}
		if _, err := f.r.ReadAt(buf[:n], off); err != nil {
			return err
		}
		buf = buf[n:]
		phys += uint64(n)
	}
	return nil
}

func (f *File) readPhys64(phys uint64) (uint64, error) {
	var b [8]byte
	if err := f.ReadPhys(phys, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Page table entry bits and the PFN mask for 4-level AMD64 paging.
const (
	pteValid = 1 << 0
	ptePS    = 1 << 7
	pfnMask  = 0x0000FFFFFFFFF000
)

// translate walks the 4-level page tables rooted at the header's
// DirectoryTableBase. Large (2 MiB) and huge (1 GiB) pages are
// honored.
func (f *File) translate(va uint64) (uint64, error) {
	cr3 := f.Header.DirectoryTableBase &^ (pageSize - 1)

	pml4e, err := f.readPhys64(cr3 + (va>>39&0x1FF)*8)
	if err != nil {
		return 0, err
	}
	if pml4e&pteValid == 0 {
		return 0, fmt.Errorf("va 0x%X: pml4e not valid", va)
	}

	pdpte, err := f.readPhys64(pml4e&pfnMask + (va>>30&0x1FF)*8)
	if err != nil {
		return 0, err
	}
	if pdpte&pteValid == 0 {
		return 0, fmt.Errorf("va 0x%X: pdpte not valid", va)
	}
	if pdpte&ptePS != 0 {
		return pdpte&0x0000FFFFC0000000 + va&(1<<30-1), nil
	}

	pde, err := f.readPhys64(pdpte&pfnMask + (va>>21&0x1FF)*8)
	if err != nil {
		return 0, err
	}
	if pde&pteValid == 0 {
		return 0, fmt.Errorf("va 0x%X: pde not valid", va)
	}
	if pde&ptePS != 0 {
		return pde&0x0000FFFFFFE00000 + va&(1<<21-1), nil
	}

	pte, err := f.readPhys64(pde&pfnMask + (va>>12&0x1FF)*8)
	if err != nil {
		return 0, err
	}
	if pte&pteValid == 0 {
		return 0, fmt.Errorf("va 0x%X: pte not valid", va)
	}
	return pte&pfnMask + va&(pageSize-1), nil
}

// ReadVirt fills buf from kernel virtual memory, translating page by
// page.
func (f *File) ReadVirt(va uint64, buf []byte) error {
	for len(buf) > 0 {
		phys, err := f.translate(va)
		if err != nil {
			return err
		}
		n := pageSize - int(va%pageSize)
		if n > len(buf) {
			n = len(buf)
		}
		if err := f.ReadPhys(phys, buf[:n]); err != nil {
			return err
		}
		buf = buf[n:]
		va += uint64(n)
	}
	return nil
}

func (f *File) readVirt64(va uint64) (uint64, error) {
	var b [8]byte
	if err := f.ReadVirt(va, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
