package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bsod-cli/internal/storage"
	"bsod-cli/internal/textutil"
)

var (
	historyLimit  int
	historyDays   int
	historyDriver string
	historyShow   int64
	historyPurge  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show saved crash analyses",
	Example: `  # Last 20 saved analyses
  bsod history

  # Crashes from the last week blamed on an nvidia driver
  bsod history -d 7 --driver nvlddmkm

  # Full detail for one record
  bsod history --show 12`,
	Run: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum records to show")
	historyCmd.Flags().IntVarP(&historyDays, "days", "d", 0, "Only records from the last N days")
	historyCmd.Flags().StringVar(&historyDriver, "driver", "", "Only records blaming this driver (substring match)")
	historyCmd.Flags().Int64Var(&historyShow, "show", 0, "Show full detail for one record by id")
	historyCmd.Flags().IntVar(&historyPurge, "purge", 0, "Delete records older than N days and exit")
}

func runHistory(cmd *cobra.Command, args []string) {
	db, err := storage.InitDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if historyPurge > 0 {
		n, err := storage.PurgeOlderThan(db, time.Duration(historyPurge)*24*time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error purging history: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Purged %d records older than %d days\n", n, historyPurge)
		return
	}

	if historyShow > 0 {
		record, err := storage.CrashByID(db, historyShow)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading record: %v\n", err)
			os.Exit(1)
		}
		if record == nil {
			fmt.Fprintf(os.Stderr, "No crash record with id %d\n", historyShow)
			os.Exit(1)
		}
		showRecord(*record)
		return
	}

	opts := storage.QueryOpts{Limit: historyLimit, Driver: historyDriver}
	if historyDays > 0 {
		opts.Since = time.Duration(historyDays) * 24 * time.Hour
	}

	records, err := storage.RecentCrashes(db, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Println("No saved crashes. Run 'bsod analyze <dump> --save' first.")
		return
	}

	fmt.Printf("\033[1m🕑 Crash history\033[0m (%d records)\n\n", len(records))
	fmt.Printf("\033[90m%4s  %-16s  %-32s  %-20s  %s\033[0m\n",
		"ID", "When", "Bugcheck", "Suspect", "Conf")
	for _, r := range records {
		when := r.CreatedAt.Format("2006-01-02 15:04")
		bug := textutil.TruncateWithEllipsis(fmt.Sprintf("0x%X %s", r.BugcheckCode, r.BugcheckName), 32)
		suspect := r.Driver
		if suspect == "" {
			suspect = "\033[90m-\033[0m"
		}
		fmt.Printf("%4d  %-16s  %-32s  %-20s  %s%.0f%%\033[0m\n",
			r.ID, when, bug, suspect, confidenceANSI(r.Confidence), r.Confidence*100)
	}
	fmt.Println("\n\033[90mUse 'bsod history --show <id>' for full detail, 'bsod ui' to browse.\033[0m")
}

func showRecord(r storage.CrashRecord) {
	fmt.Printf("\n\033[1m💥 Crash #%d\033[0m  \033[90m%s\033[0m\n", r.ID, r.AnalysisID)
	fmt.Println("\033[90m────────────────────────────────────────\033[0m")
	fmt.Printf("   Bugcheck:   0x%X %s\n", r.BugcheckCode, r.BugcheckName)
	if !r.CrashTime.IsZero() {
		fmt.Printf("   Crashed:    %s\n", r.CrashTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("   Analyzed:   %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"))
	if r.Format != "" {
		fmt.Printf("   Format:     %s\n", r.Format)
	}
	if r.DumpPath != "" {
		fmt.Printf("   File:       %s\n", r.DumpPath)
	}
	if r.Driver != "" {
		fmt.Printf("   Suspect:    \033[31m%s\033[0m (via %s)\n", r.Driver, r.Strategy)
	} else {
		fmt.Println("   Suspect:    none identified")
	}
	fmt.Printf("   Confidence: %s%.0f%%\033[0m\n", confidenceANSI(r.Confidence), r.Confidence*100)
	if r.Cause != "" {
		fmt.Printf("\n   Cause: %s\n", r.Cause)
	}
	if r.AIAnalysis != "" {
		fmt.Println("\n   \033[1m🤖 AI Analysis\033[0m")
		fmt.Println("   " + r.AIAnalysis)
	}
	fmt.Println()
}
