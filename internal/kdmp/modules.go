package kdmp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// KLDR_DATA_TABLE_ENTRY field offsets. InLoadOrderLinks sits at offset
// zero, so a list entry address is also the structure address.
const (
	kldrDllBase     = 0x30
	kldrSizeOfImage = 0x40
	kldrBaseDllName = 0x58

	maxModuleName = 512
)

// Canonical kernel addresses have the top bits set; anything below
// this is a corrupt link.
const kernelSpaceFloor = 0xFFFF800000000000

// Module is one entry of the loaded module list.
type Module struct {
	Name string
	Base uint64
	Size uint64
}

// Modules walks PsLoadedModuleList through translated memory, bounded
// by max entries. A walk that breaks mid-list returns the entries read
// so far; a list head that cannot be read at all is an error.
func (f *File) Modules(max int) ([]Module, error) {
	head := f.Header.PsLoadedModuleList
	if head < kernelSpaceFloor {
		return nil, fmt.Errorf("module list head 0x%X outside kernel space", head)
	}
	entry, err := f.readVirt64(head)
	if err != nil {
		return nil, fmt.Errorf("read module list head: %w", err)
	}

	var modules []Module
	for entry != head && len(modules) < max {
		if entry < kernelSpaceFloor {
			break
		}
		m, err := f.readModuleEntry(entry)
		if err != nil {
			break
		}
		if m.Base != 0 && m.Name != "" {
			modules = append(modules, m)
		}
		next, err := f.readVirt64(entry)
		if err != nil || next == entry {
			break
		}
		entry = next
	}
	if len(modules) == 0 {
		return nil, errors.New("module list empty or unreadable")
	}
	return modules, nil
}

func (f *File) readModuleEntry(entry uint64) (Module, error) {
	base, err := f.readVirt64(entry + kldrDllBase)
	if err != nil {
		return Module{}, err
	}
	sizeWord, err := f.readVirt64(entry + kldrSizeOfImage)
	if err != nil {
		return Module{}, err
	}
	name, err := f.readUnicodeString(entry + kldrBaseDllName)
	if err != nil {
		return Module{}, err
	}
	return Module{Name: name, Base: base, Size: sizeWord & 0xFFFFFFFF}, nil
}

// readUnicodeString decodes a UNICODE_STRING: Length and
// MaximumLength in bytes, then a pointer to UTF-16LE data.
func (f *File) readUnicodeString(va uint64) (string, error) {
	var hdr [16]byte
	if err := f.ReadVirt(va, hdr[:]); err != nil {
		return "", err
	}
	length := binary.LittleEndian.Uint16(hdr[0:])
	buffer := binary.LittleEndian.Uint64(hdr[8:])
	if length == 0 || buffer == 0 {
		return "", nil
	}
	if length%2 != 0 || length > maxModuleName {
		return "", fmt.Errorf("bad unicode string length %d", length)
	}
	raw := make([]byte, length)
	if err := f.ReadVirt(buffer, raw); err != nil {
		return "", err
	}
	u16 := make([]uint16, length/2)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return string(utf16.Decode(u16)), nil
}
