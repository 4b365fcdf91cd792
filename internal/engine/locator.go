package engine

import (
	log "github.com/sirupsen/logrus"

	"bsod-cli/internal/driver"
	"bsod-cli/internal/dump"
)

// Strategy names a suspect-location heuristic.
type Strategy string

const (
	StrategyTopOfStack Strategy = "top_of_stack"
	StrategyKnownIssue Strategy = "known_issue"
	StrategyAddress    Strategy = "address_containment"
)

// Certainty tags how much weight a strategy's nomination carries.
type Certainty string

const (
	CertaintyHigh   Certainty = "high"
	CertaintyMedium Certainty = "medium"
	CertaintyLow    Certainty = "low"
)

// Suspect is the module the locator nominates as the probable crash
// cause, with the strategy that found it.
type Suspect struct {
	Module     dump.Module        `json:"module"`
	Category   driver.Category    `json:"category"`
	KnownIssue *driver.KnownIssue `json:"known_issue,omitempty"`
	Strategy   Strategy           `json:"strategy"`
	Certainty  Certainty          `json:"certainty"`
}

type locateInput struct {
	registry *driver.Registry
	crash    dump.CrashInfo
	modules  []dump.Module
	stack    dump.StackTrace
}

// strategies run in fixed order; the first non-nil result wins. Every
// strategy is a pure function of its input and never errors.
var strategies = []func(*locateInput) *Suspect{
	locateTopOfStack,
	locateKnownIssue,
	locateByAddress,
}

// locate runs the strategy chain. A nil result means no suspect could
// be identified, which is a valid outcome.
func (a *Analyzer) locate(crash dump.CrashInfo, modules []dump.Module, stack dump.StackTrace) *Suspect {
	in := &locateInput{
		registry: a.registry,
		crash:    crash,
		modules:  modules,
		stack:    stack,
	}
	for _, strategy := range strategies {
		if s := strategy(in); s != nil {
			log.WithFields(log.Fields{
				"driver":   s.Module.Name,
				"strategy": s.Strategy,
			}).Debug("suspect located")
			return s
		}
	}
	return nil
}

// locateTopOfStack walks the trace from the faulting frame outward and
// nominates the first module that is not part of the Windows core. OS
// modules near the top of a crash stack are usually the victim, not
// the culprit, so they are skipped.
func locateTopOfStack(in *locateInput) *Suspect {
	for _, frame := range in.stack {
		if frame.Module == "" {
			continue
		}
		category := driver.Classify(frame.Module)
		if category == driver.CategorySystem {
			continue
		}
		return &Suspect{
			Module:     moduleByName(in.modules, frame.Module),
			Category:   category,
			KnownIssue: in.registry.Lookup(frame.Module),
			Strategy:   StrategyTopOfStack,
			Certainty:  CertaintyHigh,
		}
	}
	return nil
}

// locateKnownIssue scans the loaded-module list in order and nominates
// the first module with a registry entry.
func locateKnownIssue(in *locateInput) *Suspect {
	for _, m := range in.modules {
		if issue := in.registry.Lookup(m.Name); issue != nil {
			return &Suspect{
				Module:     m,
				Category:   driver.Classify(m.Name),
				KnownIssue: issue,
				Strategy:   StrategyKnownIssue,
				Certainty:  CertaintyMedium,
			}
		}
	}
	return nil
}

// locateByAddress nominates the module whose address range contains
// the faulting address. Well-formed module lists have at most one such
// range.
func locateByAddress(in *locateInput) *Suspect {
	if !in.crash.HasFaultingAddress {
		return nil
	}
	for _, m := range in.modules {
		if m.Contains(in.crash.FaultingAddress) {
			return &Suspect{
				Module:     m,
				Category:   driver.Classify(m.Name),
				KnownIssue: in.registry.Lookup(m.Name),
				Strategy:   StrategyAddress,
				Certainty:  CertaintyLow,
			}
		}
	}
	return nil
}

// moduleByName recovers the full module record for a stack frame's
// resolved name. Frames resolved against an empty module list still
// produce a usable suspect carrying just the name.
func moduleByName(modules []dump.Module, name string) dump.Module {
	for _, m := range modules {
		if m.Name == name {
			return m
		}
	}
	return dump.Module{Name: name}
}
