package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"bsod-cli/internal/storage"
)

var (
	scanAnalyze bool
	scanAll     bool
	scanSave    bool
	scanAI      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find crash dumps in the usual Windows locations",
	Long: `Scan the well-known Windows dump directories (plus any dump_dirs from
the config file) and list what is there, newest first. With --analyze
the newest dump is diagnosed immediately.`,
	Example: `  # List available dumps
  bsod scan

  # Diagnose the most recent crash
  bsod scan --analyze

  # Diagnose everything found and save to history
  bsod scan --all --save`,
	Run: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolVar(&scanAnalyze, "analyze", false, "Analyze the newest dump found")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Analyze every dump found")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "Save analyzed results to crash history")
	scanCmd.Flags().BoolVar(&scanAI, "ai", false, "Enrich the newest dump's diagnosis with AI (implies --analyze)")
}

// dumpDirs is the search list: standard Windows locations (which also
// appear under mounted system drives on analysis machines) plus the
// user's configured directories.
func dumpDirs(configured []string) []string {
	dirs := []string{
		`C:\Windows\Minidump`,
		`C:\Windows`,
		filepath.Join(string(filepath.Separator), "mnt", "c", "Windows", "Minidump"),
		filepath.Join(string(filepath.Separator), "mnt", "c", "Windows"),
	}
	return append(dirs, configured...)
}

type foundDump struct {
	path string
	size int64
	mod  int64
}

func scanForDumps(dirs []string) []foundDump {
	seen := map[string]bool{}
	var found []foundDump
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ok, _ := filepath.Match("*.dmp", strings.ToLower(e.Name()))
			if !ok {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if seen[path] {
				continue
			}
			seen[path] = true
			info, err := e.Info()
			if err != nil {
				continue
			}
			found = append(found, foundDump{path, info.Size(), info.ModTime().Unix()})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod > found[j].mod })
	return found
}

func runScan(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	found := scanForDumps(dumpDirs(cfg.DumpDirs))
	if len(found) == 0 {
		fmt.Println("No crash dumps found.")
		fmt.Println("\033[90mSearched the standard Windows dump locations; add dump_dirs to")
		fmt.Println("~/.bsodcli/config.yaml (or set BSOD_CLI_DUMP_DIRS) for custom paths.\033[0m")
		return
	}

	fmt.Printf("\033[1m🔎 Found %d crash dumps\033[0m\n\n", len(found))
	for _, d := range found {
		fmt.Printf("   %-50s %8.1f MB\n", d.path, float64(d.size)/(1024*1024))
	}

	if scanAI {
		scanAnalyze = true
	}
	if !scanAnalyze && !scanAll {
		fmt.Println("\n\033[90mRun 'bsod scan --analyze' to diagnose the newest one.\033[0m")
		return
	}

	targets := found[:1]
	if scanAll {
		targets = found
	}

	analyzer := newAnalyzer(cfg)
	var db *sql.DB
	if scanSave {
		d, err := storage.InitDB()
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Could not open history db: %v\n", err)
		} else {
			db = d
			defer db.Close()
		}
	}

	for _, d := range targets {
		result, err := analyzer.AnalyzeFile(d.path)
		if err != nil {
			explainAnalyzeError(d.path, err)
			continue
		}
		if scanAll {
			fmt.Printf("\033[32m✓\033[0m %-40s %s\n", filepath.Base(d.path), renderBrief(result))
		} else {
			if scanAI {
				enrichWithAI(cfg, result)
			}
			renderResult(result, cfg.ConfidenceThreshold)
		}
		if db != nil {
			if _, err := storage.SaveAnalysis(db, result); err != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Save failed for %s: %v\n", d.path, err)
			}
		}
	}
}
