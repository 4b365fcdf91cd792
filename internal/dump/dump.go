// Package dump provides a format-agnostic view of Windows kernel crash
// dumps. It detects the on-disk format, dispatches to a per-format
// parser, and exposes the parsed data through a small shared model so
// callers never branch on the container layout themselves.
package dump

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"bsod-cli/internal/kdmp"
)

// Format identifies the container layout of a dump file.
type Format string

const (
	FormatMinidump   Format = "minidump"
	FormatKernelDump Format = "kernel"
	FormatFullDump   Format = "full"
)

// Display returns the human-readable name used in CLI output.
func (f Format) Display() string {
	switch f {
	case FormatMinidump:
		return "Minidump"
	case FormatKernelDump:
		return "Kernel memory dump"
	case FormatFullDump:
		return "Full memory dump"
	}
	return string(f)
}

var (
	// ErrMalformedHeader marks a file that is structurally invalid for
	// the format its signature claims. No partial data is returned.
	ErrMalformedHeader = errors.New("malformed dump header")

	// ErrUnsupportedFormat marks a file that was recognized but is
	// deliberately not handled, currently the 32-bit PAGEDU48 layout.
	ErrUnsupportedFormat = errors.New("unsupported dump format")
)

var (
	sigMinidump = []byte("MDMP")
	sigPage64   = []byte("PAGEDU64")
	sigPage32   = []byte("PAGEDU48")
)

// Detect classifies a dump file by signature. It reads only the bytes
// needed for the decision: the first 8 bytes, plus the DumpType field
// for PAGEDU64 files to split kernel from full memory dumps.
func Detect(r io.ReaderAt) (Format, error) {
	var sig [8]byte
	n, err := r.ReadAt(sig[:], 0)
	if n >= 4 && bytes.Equal(sig[:4], sigMinidump) {
		return FormatMinidump, nil
	}
	if err != nil || n < 8 {
		return "", fmt.Errorf("%w: file shorter than signature", ErrMalformedHeader)
	}
	switch {
	case bytes.Equal(sig[:], sigPage64):
		return detectPage64(r)
	case bytes.Equal(sig[:], sigPage32):
		return "", fmt.Errorf("%w: 32-bit page dump (PAGEDU48)", ErrUnsupportedFormat)
	}
	return "", fmt.Errorf("%w: unrecognized signature %q", ErrMalformedHeader, sig[:])
}

func detectPage64(r io.ReaderAt) (Format, error) {
	var buf [4]byte
	if _, err := r.ReadAt(buf[:], kdmp.OffDumpType); err != nil {
		return "", fmt.Errorf("%w: PAGEDU64 file truncated before DumpType", ErrMalformedHeader)
	}
	typ := binary.LittleEndian.Uint32(buf[:])
	if typ == kdmp.TypeKernel {
		return FormatKernelDump, nil
	}
	// Unknown variants get the full-dump capability set, which promises
	// nothing beyond the header.
	return FormatFullDump, nil
}

// Parser is the per-format access interface. Summary and CrashInfo
// fail with ErrMalformedHeader on structurally bad input. Modules and
// StackTrace report ok=false when the format/state combination cannot
// supply the data at all; that is a capability gap, not an error.
type Parser interface {
	Format() Format
	Summary() (Summary, error)
	CrashInfo() (CrashInfo, error)
	Modules() ([]Module, bool, error)
	StackTrace() (StackTrace, bool, error)
}

// Open detects the format of r and returns the matching parser.
func Open(r io.ReaderAt, size int64) (Parser, error) {
	format, err := Detect(r)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatMinidump:
		return newMinidumpParser(r, size)
	case FormatKernelDump, FormatFullDump:
		return newPageDumpParser(r, size, format)
	}
	return nil, fmt.Errorf("%w: no parser for format %q", ErrMalformedHeader, format)
}
