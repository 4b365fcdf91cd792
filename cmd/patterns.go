package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bsod-cli/internal/ai"
	"bsod-cli/internal/engine"
	"bsod-cli/internal/storage"
)

var (
	patternsDays int
	patternsAI   bool
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Find recurring crash patterns in history",
	Long: `Aggregate the saved crash history into recurring-driver and
recurring-bugcheck rankings. A driver that keeps appearing across
crashes is a far stronger signal than any single analysis.`,
	Example: `  # Patterns over the whole history
  bsod patterns

  # Only the last 30 days, with an AI read on the trend
  bsod patterns --days 30 --ai`,
	Run: runPatterns,
}

func init() {
	rootCmd.AddCommand(patternsCmd)
	patternsCmd.Flags().IntVar(&patternsDays, "days", 0, "Only crashes from the last N days (0 = all)")
	patternsCmd.Flags().BoolVar(&patternsAI, "ai", false, "Ask the AI provider to interpret the pattern")
}

func runPatterns(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	db, err := storage.InitDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	records, err := storage.RecentCrashes(db, storage.QueryOpts{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
		os.Exit(1)
	}

	entries := make([]engine.HistoryEntry, len(records))
	for i, r := range records {
		entries[i] = r.HistoryEntry()
	}

	var window time.Duration
	if patternsDays > 0 {
		window = time.Duration(patternsDays) * 24 * time.Hour
	}
	report := engine.AggregatePatterns(entries, window, time.Now())

	if report.TotalCrashes == 0 {
		fmt.Println("No crashes in the selected window. Run 'bsod analyze <dump> --save' first.")
		return
	}

	scope := "all time"
	if patternsDays > 0 {
		scope = fmt.Sprintf("last %d days", patternsDays)
	}
	fmt.Printf("\033[1m📊 Crash patterns\033[0m (%s, %d crashes, avg confidence %.0f%%)\n",
		scope, report.TotalCrashes, report.AverageConfidence*100)

	if len(report.Drivers) > 0 {
		fmt.Println("\n   \033[1mRecurring drivers\033[0m")
		for _, row := range report.Drivers {
			marker := " "
			if row.Count > 1 {
				marker = "\033[31m⚠\033[0m"
			}
			fmt.Printf("   %s %-24s %3d crashes   \033[90mlast %s\033[0m\n",
				marker, row.Key, row.Count, row.LastSeen.Format("2006-01-02"))
		}
	}

	if len(report.Bugchecks) > 0 {
		fmt.Println("\n   \033[1mRecurring bugchecks\033[0m")
		for _, row := range report.Bugchecks {
			fmt.Printf("     %-40s %3d crashes\n", row.Key, row.Count)
		}
	}

	if len(report.Drivers) > 0 && report.Drivers[0].Count >= 3 {
		fmt.Printf("\n\033[33m⚠ %s caused %d crashes - this driver is almost certainly the problem.\033[0m\n",
			report.Drivers[0].Key, report.Drivers[0].Count)
	}

	if patternsAI {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		provider, perr := ai.FromConfig(cfg)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "\n⚠️  Skipping AI: %v\n", perr)
			return
		}
		if !provider.Available(ctx) {
			fmt.Fprintf(os.Stderr, "\n⚠️  Skipping AI: %s is not reachable\n", provider.Name())
			return
		}
		text, aerr := provider.Analyze(ctx, ai.PatternPrompt(report))
		if aerr != nil {
			fmt.Fprintf(os.Stderr, "\n⚠️  AI analysis failed: %v\n", aerr)
			return
		}
		fmt.Println("\n   \033[1m🤖 AI Read\033[0m")
		fmt.Println("   " + text)
	}
}
