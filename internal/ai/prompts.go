package ai

import (
	"fmt"
	"strings"

	"bsod-cli/internal/engine"
)

// CrashPrompt renders an analysis result as prompt input: the crash
// facts, the suspect, and what the heuristics concluded. The model's
// answer is appended to the result, never parsed.
func CrashPrompt(result *engine.Result) string {
	var b strings.Builder
	b.WriteString("Analyze this Windows kernel crash and explain the probable root cause.\n\n")

	fmt.Fprintf(&b, "Bugcheck: 0x%X (%s)\n", result.Crash.Code, result.Bugcheck.Name)
	if len(result.Crash.Parameters) > 0 {
		b.WriteString("Parameters:")
		for _, p := range result.Crash.Parameters {
			fmt.Fprintf(&b, " 0x%X", p)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Dump format: %s\n", result.Summary.Format.Display())
	if result.Summary.OSVersion != "" {
		fmt.Fprintf(&b, "OS build: %s (%s)\n", result.Summary.OSVersion, result.Summary.Architecture)
	}

	if s := result.Suspect; s != nil {
		fmt.Fprintf(&b, "\nSuspected driver: %s (category %s, found via %s)\n",
			s.Module.Name, s.Category, s.Strategy)
		if s.KnownIssue != nil {
			fmt.Fprintf(&b, "Known issue: %s\n", s.KnownIssue.Issue)
		}
	} else {
		b.WriteString("\nNo suspect driver was identified by the heuristics.\n")
	}

	if len(result.Stack) > 0 {
		b.WriteString("\nTop stack frames:\n")
		for i, f := range result.Stack {
			if i >= 8 {
				break
			}
			if f.Module != "" {
				fmt.Fprintf(&b, "  %d: %s+0x%X\n", i, f.Module, f.Offset)
			} else {
				fmt.Fprintf(&b, "  %d: 0x%X\n", i, f.Address)
			}
		}
	}

	fmt.Fprintf(&b, "\nHeuristic conclusion (confidence %.2f): %s\n", result.Confidence, result.Cause)
	b.WriteString("\nGive a concise expert assessment: the most likely root cause, whether the heuristic conclusion looks right, and the three most useful next steps.")
	return b.String()
}

// PatternPrompt renders aggregated history for a trend assessment.
func PatternPrompt(report engine.PatternReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "These are recurring Windows crash patterns from %d analyzed dumps.\n\n", report.TotalCrashes)

	if len(report.Drivers) > 0 {
		b.WriteString("Suspect drivers by frequency:\n")
		for _, row := range report.Drivers {
			fmt.Fprintf(&b, "  %s: %d crashes, last seen %s\n",
				row.Key, row.Count, row.LastSeen.Format("2006-01-02"))
		}
	}
	if len(report.Bugchecks) > 0 {
		b.WriteString("\nBugchecks by frequency:\n")
		for _, row := range report.Bugchecks {
			fmt.Fprintf(&b, "  %s: %d\n", row.Key, row.Count)
		}
	}
	fmt.Fprintf(&b, "\nAverage diagnostic confidence: %.2f\n", report.AverageConfidence)
	b.WriteString("\nAssess whether these crashes point at a single underlying problem (one driver, failing hardware, a bad update) and recommend what to fix first.")
	return b.String()
}
