package dump

import (
	"fmt"
	"io"
	"sort"

	log "github.com/sirupsen/logrus"

	"bsod-cli/internal/kdmp"
)

// pageDumpParser handles both PAGEDU64 variants. Full memory dumps
// expose only the header-derived data; kernel dumps additionally walk
// the loaded module list and the crashing stack through the summary
// page bitmap.
type pageDumpParser struct {
	f      *kdmp.File
	format Format

	translated   bool
	translateErr error
}

func newPageDumpParser(r io.ReaderAt, size int64, format Format) (*pageDumpParser, error) {
	f, err := kdmp.Open(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	log.WithFields(log.Fields{
		"format":   format,
		"bugcheck": fmt.Sprintf("0x%X", f.Header.BugCheckCode),
	}).Debug("opened page dump")
	return &pageDumpParser{f: f, format: format}, nil
}

func (p *pageDumpParser) Format() Format { return p.format }

var peMachineNames = map[uint32]string{
	0x8664: "AMD64",
	0x014C: "I386",
	0x0200: "IA64",
	0xAA64: "ARM64",
}

func (p *pageDumpParser) Summary() (Summary, error) {
	h := p.f.Header
	arch, ok := peMachineNames[h.MachineImageType]
	if !ok {
		arch = fmt.Sprintf("UNKNOWN(0x%X)", h.MachineImageType)
	}
	return Summary{
		Format:         p.format,
		CaptureTime:    h.SystemTime,
		OSVersion:      fmt.Sprintf("%d.%d", h.MajorVersion, h.MinorVersion),
		Architecture:   arch,
		ProcessorCount: int(h.NumberProcessors),
	}, nil
}

func (p *pageDumpParser) CrashInfo() (CrashInfo, error) {
	h := p.f.Header
	info := CrashInfo{
		Code:       h.BugCheckCode,
		Parameters: h.BugCheckParameters[:],
	}
	// The first bugcheck parameter holds the referenced address for
	// the common memory-access codes; zero means none was recorded.
	if addr := h.BugCheckParameters[0]; addr != 0 {
		info.FaultingAddress = addr
		info.HasFaultingAddress = true
	}
	if h.Exception.Code != 0 {
		info.Exception = &ExceptionInfo{
			Code:       h.Exception.Code,
			Flags:      h.Exception.Flags,
			Address:    h.Exception.Address,
			Parameters: h.Exception.Parameters,
		}
	}
	return info, nil
}

func (p *pageDumpParser) Modules() ([]Module, bool, error) {
	if p.format != FormatKernelDump {
		return nil, false, nil
	}
	if err := p.ensureTranslation(); err != nil {
		return nil, false, nil
	}
	raw, err := p.f.Modules(maxKernelModules)
	if err != nil {
		log.WithError(err).Debug("kernel module walk failed")
		return nil, false, nil
	}
	modules := make([]Module, 0, len(raw))
	for _, m := range raw {
		modules = append(modules, Module{Name: m.Name, Base: m.Base, Size: m.Size})
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Base < modules[j].Base })
	return modules, true, nil
}

func (p *pageDumpParser) StackTrace() (StackTrace, bool, error) {
	if p.format != FormatKernelDump {
		return nil, false, nil
	}
	if err := p.ensureTranslation(); err != nil {
		return nil, false, nil
	}
	modules, _, _ := p.Modules()

	h := p.f.Header
	mem := p.readStack(h.Rsp)
	if h.Rip == 0 && mem == nil {
		return nil, false, nil
	}
	return scanStack(h.Rip, mem, modules), true, nil
}

const maxKernelModules = 512

func (p *pageDumpParser) ensureTranslation() error {
	if !p.translated {
		p.translated = true
		p.translateErr = p.f.SetupTranslation()
		if p.translateErr != nil {
			log.WithError(p.translateErr).Debug("page translation unavailable")
		}
	}
	return p.translateErr
}

// readStack pulls as much of the crashing stack as is actually
// resident, shrinking the read until it fits mapped pages.
func (p *pageDumpParser) readStack(rsp uint64) []byte {
	if rsp == 0 {
		return nil
	}
	for _, n := range []int{0x2000, 0x1000, 0x400} {
		buf := make([]byte, n)
		if err := p.f.ReadVirt(rsp, buf); err == nil {
			return buf
		}
	}
	rem := 0x1000 - int(rsp%0x1000)
	buf := make([]byte, rem)
	if err := p.f.ReadVirt(rsp, buf); err != nil {
		return nil
	}
	return buf
}
