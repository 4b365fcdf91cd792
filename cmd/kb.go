package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bsod-cli/internal/bugcheck"
	"bsod-cli/internal/driver"
	"bsod-cli/internal/textutil"
)

var kbListDrivers bool

var kbCmd = &cobra.Command{
	Use:   "kb [code|driver]",
	Short: "Look up a bugcheck code or a known-bad driver",
	Long: `Query the built-in knowledge base. With a bugcheck code argument
("0x3B", "3B", or decimal) it prints the stop-code reference entry; with
a driver filename it prints the known-issue record. Without arguments it
lists every bugcheck the knowledge base covers.`,
	Example: `  # What is stop code 0x3B?
  bsod kb 0x3B

  # Is this driver a known troublemaker?
  bsod kb nvlddmkm.sys

  # List every known-bad driver
  bsod kb --drivers`,
	Args: cobra.MaximumNArgs(1),
	Run:  runKB,
}

func init() {
	rootCmd.AddCommand(kbCmd)
	kbCmd.Flags().BoolVar(&kbListDrivers, "drivers", false, "List the known-issue driver registry")
}

func runKB(cmd *cobra.Command, args []string) {
	if kbListDrivers {
		listKnownDrivers()
		return
	}
	if len(args) == 0 {
		listBugchecks()
		return
	}

	query := args[0]
	if code, err := bugcheck.ParseCode(query); err == nil {
		showBugcheck(bugcheck.Lookup(code))
		return
	}

	// Not a code - treat it as a driver filename.
	cfg := loadConfig()
	registry := driver.NewRegistry()
	if _, err := os.Stat(cfg.KnownDriversPath); err == nil {
		registry.LoadFile(cfg.KnownDriversPath)
	}

	issue := registry.Lookup(query)
	category := driver.Classify(query)
	fmt.Printf("\n\033[1m%s\033[0m  \033[90m(%s driver)\033[0m\n", query, category)
	if issue == nil {
		fmt.Println("   No known issues on record.")
		return
	}
	fmt.Printf("   \033[31m⚠ Known issue:\033[0m %s\n", issue.Issue)
	if issue.Recommendation != "" {
		fmt.Printf("   Fix: %s\n", issue.Recommendation)
	}
	fmt.Println()
}

func showBugcheck(info bugcheck.Info) {
	fmt.Printf("\n\033[1m0x%X %s\033[0m", info.Code, info.Name)
	if bugcheck.IsCommon(info.Code) {
		fmt.Print("  \033[90m(common)\033[0m")
	}
	fmt.Printf("\n\n   %s\n", info.Description)

	if len(info.CommonCauses) > 0 {
		fmt.Println("\n   \033[1mCommon causes\033[0m")
		for _, cause := range info.CommonCauses {
			fmt.Printf("   • %s\n", cause)
		}
	}
	if len(info.Remediation) > 0 {
		fmt.Println("\n   \033[1m🔧 Remediation\033[0m")
		for i, step := range info.Remediation {
			fmt.Printf("   %d. %s\n", i+1, step)
		}
	}
	fmt.Println()
}

func listBugchecks() {
	infos := bugcheck.Codes()
	fmt.Printf("\033[1m📚 Bugcheck knowledge base\033[0m (%d entries)\n\n", len(infos))
	for _, info := range infos {
		marker := " "
		if bugcheck.IsCommon(info.Code) {
			marker = "\033[33m★\033[0m"
		}
		fmt.Printf(" %s 0x%-4X %-40s \033[90m%s\033[0m\n",
			marker, info.Code, info.Name,
			textutil.TruncateWithEllipsis(info.Description, 50))
	}
	fmt.Println("\n\033[90m★ = frequently seen in the wild. 'bsod kb <code>' for detail.\033[0m")
}

func listKnownDrivers() {
	cfg := loadConfig()
	registry := driver.NewRegistry()
	if _, err := os.Stat(cfg.KnownDriversPath); err == nil {
		if err := registry.LoadFile(cfg.KnownDriversPath); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Ignoring known-drivers file: %v\n", err)
		}
	}

	entries := registry.Entries()
	fmt.Printf("\033[1m🚩 Known-issue drivers\033[0m (%d entries)\n\n", len(entries))
	for _, e := range entries {
		fmt.Printf("   %-20s %s\n",
			e.Driver, textutil.TruncateWithEllipsis(e.Issue, 70))
	}
}
