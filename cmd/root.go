package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bsod-cli/internal/logger"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "bsod",
	Short: "Windows crash dump analyzer",
	Long: `bsod analyzes Windows crash dumps (minidumps, kernel dumps, and full
memory dumps), identifies the probable faulty driver, and keeps a local
history of diagnoses for pattern analysis.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup(verbose)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
