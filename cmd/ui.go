package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bsod-cli/internal/storage"
	"bsod-cli/internal/tui"
)

var uiLimit int

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Browse crash history interactively",
	Run: func(cmd *cobra.Command, args []string) {
		db, err := storage.InitDB()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening history db: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()

		records, err := storage.RecentCrashes(db, storage.QueryOpts{Limit: uiLimit})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
			os.Exit(1)
		}

		if err := tui.Run(records); err != nil {
			fmt.Fprintf(os.Stderr, "Error running browser: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(uiCmd)
	uiCmd.Flags().IntVarP(&uiLimit, "limit", "n", 200, "Maximum records to load")
}
