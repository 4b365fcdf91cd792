// Package engine is the diagnostic core: it sequences parsing, driver
// classification, suspect location, cause synthesis, remediation
// assembly, and confidence scoring into one immutable analysis result.
package engine

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"bsod-cli/internal/bugcheck"
	"bsod-cli/internal/driver"
	"bsod-cli/internal/dump"
)

// DriverReport is a loaded module enriched with classification and the
// known-issue cross-reference.
type DriverReport struct {
	dump.Module
	Category   driver.Category    `json:"category"`
	KnownIssue *driver.KnownIssue `json:"known_issue,omitempty"`
}

// Result is the complete outcome of one analysis run. It is created
// once and never mutated afterwards; AIAnalysis is the only field a
// collaborator fills in later, before the result is persisted.
type Result struct {
	ID         string    `json:"id"`
	DumpPath   string    `json:"dump_path,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at"`

	Summary dump.Summary    `json:"summary"`
	Crash   dump.CrashInfo  `json:"crash"`
	Drivers []DriverReport  `json:"drivers,omitempty"`
	Stack   dump.StackTrace `json:"stack,omitempty"`

	// Capability gaps reported by the parser, from formats that cannot
	// enumerate modules or reconstruct a stack.
	DriversUnavailable bool `json:"drivers_unavailable,omitempty"`
	StackUnavailable   bool `json:"stack_unavailable,omitempty"`

	Bugcheck    bugcheck.Info `json:"bugcheck"`
	Suspect     *Suspect      `json:"suspect,omitempty"`
	Cause       string        `json:"cause"`
	Remediation []string      `json:"remediation,omitempty"`
	Confidence  float64       `json:"confidence"`

	AIAnalysis string `json:"ai_analysis,omitempty"`
}

// Analyzer runs the diagnostic pipeline. The registry is read-only, so
// one Analyzer may serve concurrent analyses.
type Analyzer struct {
	registry *driver.Registry
}

// New returns an Analyzer using the given known-issue registry, or the
// built-in one when nil.
func New(registry *driver.Registry) *Analyzer {
	if registry == nil {
		registry = driver.NewRegistry()
	}
	return &Analyzer{registry: registry}
}

// AnalyzeFile opens and analyzes a dump file on disk.
func (a *Analyzer) AnalyzeFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat dump: %w", err)
	}

	log.WithField("file", path).Info("starting analysis")
	result, err := a.Analyze(f, st.Size())
	if err != nil {
		return nil, err
	}
	result.DumpPath = path
	return result, nil
}

// Analyze runs the full pipeline over an in-memory or on-disk dump
// image. Parse failures abort with the dump package's error kinds;
// an absent suspect or low confidence is a valid result, not an error.
func (a *Analyzer) Analyze(r io.ReaderAt, size int64) (*Result, error) {
	p, err := dump.Open(r, size)
	if err != nil {
		return nil, err
	}

	summary, err := p.Summary()
	if err != nil {
		return nil, err
	}
	crash, err := p.CrashInfo()
	if err != nil {
		return nil, err
	}
	modules, modulesOK, err := p.Modules()
	if err != nil {
		return nil, err
	}
	stack, stackOK, err := p.StackTrace()
	if err != nil {
		return nil, err
	}

	suspect := a.locate(crash, modules, stack)
	info := bugcheck.Lookup(crash.Code)

	result := &Result{
		ID:                 uuid.NewString(),
		AnalyzedAt:         time.Now().UTC(),
		Summary:            summary,
		Crash:              crash,
		Drivers:            a.enrich(modules),
		Stack:              stack,
		DriversUnavailable: !modulesOK,
		StackUnavailable:   !stackOK,
		Bugcheck:           info,
		Suspect:            suspect,
		Cause:              buildCause(info, suspect),
		Remediation:        buildRemediation(info, suspect),
		Confidence:         score(crash.Code, stack, suspect),
	}

	log.WithFields(log.Fields{
		"format":     summary.Format,
		"bugcheck":   fmt.Sprintf("0x%X", crash.Code),
		"confidence": fmt.Sprintf("%.2f", result.Confidence),
	}).Info("analysis complete")
	return result, nil
}

func (a *Analyzer) enrich(modules []dump.Module) []DriverReport {
	if len(modules) == 0 {
		return nil
	}
	reports := make([]DriverReport, len(modules))
	for i, m := range modules {
		reports[i] = DriverReport{
			Module:     m,
			Category:   driver.Classify(m.Name),
			KnownIssue: a.registry.Lookup(m.Name),
		}
	}
	return reports
}

// score applies the additive confidence rule: 0.5 base, +0.15 for a
// non-empty stack, +0.15 for a located suspect, +0.25 when the suspect
// has a known issue, +0.10 for a common bugcheck, clamped to 1.0.
// Formats missing a capability simply never earn the matching bonus.
func score(code uint32, stack dump.StackTrace, suspect *Suspect) float64 {
	confidence := 0.5
	if len(stack) > 0 {
		confidence += 0.15
	}
	if suspect != nil {
		confidence += 0.15
		if suspect.KnownIssue != nil {
			confidence += 0.25
		}
	}
	if bugcheck.IsCommon(code) {
		confidence += 0.10
	}
	return math.Min(confidence, 1.0)
}

func buildCause(info bugcheck.Info, suspect *Suspect) string {
	cause := info.Description
	if len(info.CommonCauses) > 0 {
		top := info.CommonCauses
		if len(top) > 3 {
			top = top[:3]
		}
		cause += " Common causes: " + strings.Join(top, ", ")
	}
	if suspect == nil {
		return cause
	}
	if suspect.KnownIssue != nil {
		return fmt.Sprintf("%s Known issue: %s. %s", cause, suspect.KnownIssue.Issue, suspect.KnownIssue.Recommendation)
	}
	return fmt.Sprintf("%s Suspected driver: %s", cause, suspect.Module.Name)
}

// buildRemediation assembles the ordered step list: knowledge-base
// steps, then driver-specific advice, then category advice. Duplicates
// keep their first position.
func buildRemediation(info bugcheck.Info, suspect *Suspect) []string {
	steps := make([]string, 0, len(info.Remediation)+3)
	steps = append(steps, info.Remediation...)
	if suspect != nil {
		if suspect.KnownIssue != nil {
			if rec := suspect.KnownIssue.Recommendation; rec != "" {
				steps = append(steps, "Driver-specific: "+rec)
			}
		} else {
			steps = append(steps, fmt.Sprintf("Update '%s' to the latest version", suspect.Module.Name))
		}
		switch suspect.Category {
		case driver.CategoryGraphics:
			steps = append(steps, "Graphics drivers are often the cause - try a clean install of GPU drivers")
		case driver.CategoryNetwork:
			steps = append(steps, "Network driver issues - update or temporarily disable network adapters")
		}
	}
	return dedupe(steps)
}

func dedupe(steps []string) []string {
	seen := make(map[string]struct{}, len(steps))
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
