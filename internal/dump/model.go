package dump

import (
	"encoding/binary"
	"time"
)

// Summary holds the machine-level facts every supported format can
// provide. CaptureTime is the zero value when the format does not
// record one.
type Summary struct {
	Format         Format    `json:"format"`
	CaptureTime    time.Time `json:"capture_time,omitzero"`
	OSVersion      string    `json:"os_version"`
	Architecture   string    `json:"architecture"`
	ProcessorCount int       `json:"processor_count"`
}

// CrashInfo describes the fault itself. Parameters carries up to four
// bugcheck parameters; fewer may be present depending on the format.
// FaultingAddress is only meaningful when HasFaultingAddress is set.
type CrashInfo struct {
	Code               uint32         `json:"code"`
	Parameters         []uint64       `json:"parameters,omitempty"`
	FaultingAddress    uint64         `json:"faulting_address,omitempty"`
	HasFaultingAddress bool           `json:"has_faulting_address"`
	Exception          *ExceptionInfo `json:"exception,omitempty"`
}

// ExceptionInfo is the raw exception record when the dump carries one.
type ExceptionInfo struct {
	Code       uint32   `json:"code"`
	Flags      uint32   `json:"flags"`
	Address    uint64   `json:"address"`
	ThreadID   uint32   `json:"thread_id"`
	Parameters []uint64 `json:"parameters,omitempty"`
}

// Module is one loaded kernel module as recorded by the dump. Name is
// as stored in the file and may be a full Windows path.
type Module struct {
	Name      string    `json:"name"`
	Base      uint64    `json:"base"`
	Size      uint64    `json:"size"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Contains reports whether addr falls inside [Base, Base+Size).
func (m Module) Contains(addr uint64) bool {
	return addr >= m.Base && addr < m.Base+m.Size
}

// StackFrame is one resolved frame of the faulting thread. Module is
// empty when the address does not land in any known module; Offset is
// relative to that module's base.
type StackFrame struct {
	Address uint64 `json:"address"`
	Module  string `json:"module,omitempty"`
	Offset  uint64 `json:"offset,omitempty"`
}

// StackTrace is ordered innermost-first: frame 0 is the faulting
// context, later frames are its callers. It may be empty.
type StackTrace []StackFrame

// resolveFrame maps an address onto the module list, which must be
// sorted base-ascending.
func resolveFrame(addr uint64, modules []Module) StackFrame {
	f := StackFrame{Address: addr}
	for _, m := range modules {
		if m.Contains(addr) {
			f.Module = m.Name
			f.Offset = addr - m.Base
			break
		}
		if m.Base > addr {
			break
		}
	}
	return f
}

// maxStackFrames caps how deep a reconstructed trace may grow.
const maxStackFrames = 50

// scanStack recovers a call chain from raw stack memory: every 8-byte
// word that lands inside a known module range is taken as a return
// address. mem is the captured stack starting at the faulting thread's
// stack pointer.
func scanStack(first uint64, mem []byte, modules []Module) StackTrace {
	trace := StackTrace{}
	if first != 0 {
		trace = append(trace, resolveFrame(first, modules))
	}
	for off := 0; off+8 <= len(mem) && len(trace) < maxStackFrames; off += 8 {
		addr := binary.LittleEndian.Uint64(mem[off:])
		if addr == 0 {
			continue
		}
		f := resolveFrame(addr, modules)
		if f.Module == "" {
			continue
		}
		trace = append(trace, f)
	}
	return trace
}
