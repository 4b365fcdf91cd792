package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"

	"bsod-cli/internal/ai"
	"bsod-cli/internal/config"
	"bsod-cli/internal/driver"
	"bsod-cli/internal/dump"
	"bsod-cli/internal/engine"
)

// loadConfig exits on a broken config file; every command needs one.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Config error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newAnalyzer builds the engine with the user's known-driver overrides
// merged over the built-in registry.
func newAnalyzer(cfg *config.Config) *engine.Analyzer {
	registry := driver.NewRegistry()
	if _, err := os.Stat(cfg.KnownDriversPath); err == nil {
		if err := registry.LoadFile(cfg.KnownDriversPath); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Ignoring known-drivers file: %v\n", err)
		}
	}
	return engine.New(registry)
}

// enrichWithAI fills Result.AIAnalysis from the configured provider.
// Every failure degrades to a warning; the diagnosis never depends on
// AI being up.
func enrichWithAI(cfg *config.Config, result *engine.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	provider, err := ai.FromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Skipping AI: %v\n", err)
		return
	}
	if !provider.Available(ctx) {
		fmt.Fprintf(os.Stderr, "⚠️  Skipping AI: %s is not reachable\n", provider.Name())
		return
	}

	var s *spinner.Spinner
	if term.IsTerminal(int(os.Stdout.Fd())) {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " 🧠 Asking " + provider.Name() + "..."
		s.Start()
	}
	text, err := provider.Analyze(ctx, ai.CrashPrompt(result))
	if s != nil {
		s.Stop()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  AI analysis failed: %v\n", err)
		return
	}
	result.AIAnalysis = text
}

// explainAnalyzeError renders the parse-failure taxonomy: a corrupt
// file and a known-unsupported format get different messages.
func explainAnalyzeError(path string, err error) {
	switch {
	case errors.Is(err, dump.ErrUnsupportedFormat):
		fmt.Fprintf(os.Stderr, "✗ %s: known limitation - %v\n", path, err)
	case errors.Is(err, dump.ErrMalformedHeader):
		fmt.Fprintf(os.Stderr, "✗ %s: could not analyze - %v\n", path, err)
	default:
		fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
	}
}

func confidenceANSI(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "\033[32m" // green
	case confidence >= 0.6:
		return "\033[33m" // yellow
	}
	return "\033[31m" // red
}

// renderResult prints the full diagnosis in sections.
func renderResult(result *engine.Result, threshold float64) {
	fmt.Println("\n\033[1m💥 Crash Analysis\033[0m")
	fmt.Println("\033[90m────────────────────────────────────────\033[0m")

	if result.DumpPath != "" {
		fmt.Printf("   File:         %s\n", result.DumpPath)
	}
	fmt.Printf("   Format:       %s\n", result.Summary.Format.Display())
	if !result.Summary.CaptureTime.IsZero() {
		fmt.Printf("   Crash time:   %s\n", result.Summary.CaptureTime.Format("2006-01-02 15:04:05 MST"))
	}
	if result.Summary.OSVersion != "" {
		fmt.Printf("   OS:           Windows %s (%s, %d CPUs)\n",
			result.Summary.OSVersion, result.Summary.Architecture, result.Summary.ProcessorCount)
	}

	fmt.Printf("\n   Bugcheck:     \033[1m0x%X %s\033[0m\n", result.Crash.Code, result.Bugcheck.Name)
	for i, p := range result.Crash.Parameters {
		fmt.Printf("   Parameter %d:  0x%016X\n", i+1, p)
	}

	if s := result.Suspect; s != nil {
		fmt.Printf("\n   \033[31m🎯 Suspect:    %s\033[0m (%s driver, via %s, certainty %s)\n",
			s.Module.Name, s.Category, s.Strategy, s.Certainty)
		if s.KnownIssue != nil {
			fmt.Printf("      Known issue: %s\n", s.KnownIssue.Issue)
		}
	} else {
		fmt.Println("\n   🎯 Suspect:    no suspect driver identified")
	}

	fmt.Printf("\n   Cause: %s\n", result.Cause)

	if len(result.Remediation) > 0 {
		fmt.Println("\n   \033[1m🔧 Remediation\033[0m")
		for i, step := range result.Remediation {
			fmt.Printf("   %d. %s\n", i+1, step)
		}
	}

	color := confidenceANSI(result.Confidence)
	fmt.Printf("\n   Confidence: %s%.0f%%\033[0m", color, result.Confidence*100)
	if result.Confidence < threshold {
		fmt.Print("  \033[33m(low - treat as a hint, not a verdict)\033[0m")
	}
	fmt.Println()

	if result.DriversUnavailable || result.StackUnavailable {
		fmt.Print("   \033[90mLimits: ")
		if result.DriversUnavailable {
			fmt.Print("driver list unavailable for this format")
		}
		if result.DriversUnavailable && result.StackUnavailable {
			fmt.Print("; ")
		}
		if result.StackUnavailable {
			fmt.Print("stack trace unavailable")
		}
		fmt.Println("\033[0m")
	}

	if result.AIAnalysis != "" {
		fmt.Println("\n   \033[1m🤖 AI Analysis\033[0m")
		fmt.Println("   " + result.AIAnalysis)
	}
	fmt.Println()
}

// renderBrief is the one-line batch/scan form.
func renderBrief(result *engine.Result) string {
	suspect := "no suspect"
	if result.Suspect != nil {
		suspect = result.Suspect.Module.Name
	}
	return fmt.Sprintf("0x%X %s | %s | %s%.0f%%\033[0m",
		result.Crash.Code, result.Bugcheck.Name, suspect,
		confidenceANSI(result.Confidence), result.Confidence*100)
}
