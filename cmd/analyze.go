package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bsod-cli/internal/storage"
)

var (
	analyzeAI     bool
	analyzeSave   bool
	analyzeJSON   bool
	analyzeOutput string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <dump-file>",
	Short: "Analyze a crash dump and identify the faulty driver",
	Long: `Parse a Windows crash dump, decode the bugcheck, and locate the most
likely faulty driver with a confidence score.

Minidumps (.dmp from %SystemRoot%\Minidump) give the richest results.
Kernel and full memory dumps are supported with reduced detail.`,
	Example: `  # Analyze a minidump
  bsod analyze crash.dmp

  # Analyze, explain with AI, and save to history
  bsod analyze crash.dmp --ai --save

  # Machine-readable output
  bsod analyze crash.dmp --json -o report.json`,
	Args: cobra.ExactArgs(1),
	Run:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeAI, "ai", false, "Enrich the diagnosis with an AI explanation")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "Save the result to crash history")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print the result as JSON")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "Write JSON result to a file")
}

func runAnalyze(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	analyzer := newAnalyzer(cfg)

	interactive := term.IsTerminal(int(os.Stdout.Fd())) && !analyzeJSON
	var s *spinner.Spinner
	if interactive {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " 🔍 Analyzing dump..."
		s.Start()
	}

	result, err := analyzer.AnalyzeFile(args[0])
	if s != nil {
		s.Stop()
	}
	if err != nil {
		explainAnalyzeError(args[0], err)
		os.Exit(1)
	}

	if analyzeAI {
		enrichWithAI(cfg, result)
	}

	if analyzeSave {
		db, derr := storage.InitDB()
		if derr != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Could not open history db: %v\n", derr)
		} else {
			defer db.Close()
			if _, serr := storage.SaveAnalysis(db, result); serr != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Could not save analysis: %v\n", serr)
			} else if !analyzeJSON {
				fmt.Println("\033[32m✓ Saved to crash history\033[0m")
			}
		}
	}

	if analyzeJSON || analyzeOutput != "" {
		data, merr := json.MarshalIndent(result, "", "  ")
		if merr != nil {
			fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", merr)
			os.Exit(1)
		}
		if analyzeOutput != "" {
			if werr := os.WriteFile(analyzeOutput, data, 0644); werr != nil {
				fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", analyzeOutput, werr)
				os.Exit(1)
			}
			if !analyzeJSON {
				fmt.Printf("✓ Wrote %s\n", analyzeOutput)
			}
		}
		if analyzeJSON {
			fmt.Println(string(data))
		}
		return
	}

	renderResult(result, cfg.ConfidenceThreshold)
}
