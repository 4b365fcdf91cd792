package dump

import (
	"fmt"
	"io"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"bsod-cli/internal/minidump"
)

// minidumpParser supports the full capability set: summary, crash
// info, modules, and a reconstructed stack for the faulting thread.
type minidumpParser struct {
	f *minidump.File
}

func newMinidumpParser(r io.ReaderAt, size int64) (*minidumpParser, error) {
	f, err := minidump.Open(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	log.WithFields(log.Fields{
		"streams": len(f.Streams),
		"size":    size,
	}).Debug("opened minidump")
	return &minidumpParser{f: f}, nil
}

func (p *minidumpParser) Format() Format { return FormatMinidump }

var minidumpArchNames = map[uint16]string{
	0:      "INTEL",
	5:      "ARM",
	6:      "IA64",
	9:      "AMD64",
	12:     "ARM64",
	0xFFFF: "UNKNOWN",
}

func (p *minidumpParser) Summary() (Summary, error) {
	si, err := p.f.SystemInfo()
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	arch, ok := minidumpArchNames[si.ProcessorArchitecture]
	if !ok {
		arch = fmt.Sprintf("UNKNOWN(%d)", si.ProcessorArchitecture)
	}
	var captured time.Time
	if ts := p.f.Header.TimeDateStamp; ts != 0 {
		captured = time.Unix(int64(ts), 0).UTC()
	}
	return Summary{
		Format:         FormatMinidump,
		CaptureTime:    captured,
		OSVersion:      fmt.Sprintf("%d.%d.%d", si.MajorVersion, si.MinorVersion, si.BuildNumber),
		Architecture:   arch,
		ProcessorCount: int(si.NumberOfProcessors),
	}, nil
}

func (p *minidumpParser) CrashInfo() (CrashInfo, error) {
	ex, ok, err := p.f.Exception()
	if err != nil {
		return CrashInfo{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if !ok {
		// A capture without an exception stream still parses; the
		// crash fields just stay zero.
		return CrashInfo{}, nil
	}
	params := ex.Parameters
	if len(params) > 4 {
		params = params[:4]
	}
	return CrashInfo{
		Code:               ex.Code,
		Parameters:         params,
		FaultingAddress:    ex.Address,
		HasFaultingAddress: ex.Address != 0,
		Exception: &ExceptionInfo{
			Code:       ex.Code,
			Flags:      ex.Flags,
			Address:    ex.Address,
			ThreadID:   ex.ThreadID,
			Parameters: ex.Parameters,
		},
	}, nil
}

func (p *minidumpParser) Modules() ([]Module, bool, error) {
	raw, err := p.f.Modules()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	modules := make([]Module, 0, len(raw))
	for _, m := range raw {
		var ts time.Time
		if m.TimeDateStamp != 0 {
			ts = time.Unix(int64(m.TimeDateStamp), 0).UTC()
		}
		modules = append(modules, Module{
			Name:      m.Name,
			Base:      m.BaseOfImage,
			Size:      uint64(m.SizeOfImage),
			Timestamp: ts,
		})
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Base < modules[j].Base })
	return modules, true, nil
}

// StackTrace reconstructs the faulting thread's stack: the exception
// address seeds frame 0, then the thread's captured stack memory is
// scanned for return addresses.
func (p *minidumpParser) StackTrace() (StackTrace, bool, error) {
	threads, err := p.f.Threads()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	modules, _, err := p.Modules()
	if err != nil {
		return nil, false, err
	}

	ex, hasEx, err := p.f.Exception()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	var thread *minidump.Thread
	if hasEx {
		for i := range threads {
			if threads[i].ID == ex.ThreadID {
				thread = &threads[i]
				break
			}
		}
	}
	if thread == nil && len(threads) > 0 {
		thread = &threads[0]
	}

	var first uint64
	if hasEx {
		first = ex.Address
	}
	if thread == nil {
		return scanStack(first, nil, modules), true, nil
	}

	mem := p.readThreadStack(thread)
	return scanStack(first, mem, modules), true, nil
}

func (p *minidumpParser) readThreadStack(t *minidump.Thread) []byte {
	if t.StackSize == 0 {
		return nil
	}
	mem, err := p.f.ReadMemory(t.StackStart, int(t.StackSize))
	if err != nil {
		log.WithError(err).WithField("thread", t.ID).Debug("stack memory not readable")
		return nil
	}
	return mem
}
