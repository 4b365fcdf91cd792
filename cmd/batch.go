package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"bsod-cli/internal/engine"
	"bsod-cli/internal/storage"
)

var (
	batchLimit   int
	batchPattern string
	batchSave    bool
	batchWorkers int
)

var batchCmd = &cobra.Command{
	Use:   "batch <directory>",
	Short: "Analyze every dump in a directory",
	Long: `Analyze all crash dumps in a directory in parallel and print a one-line
verdict per file plus an aggregate summary. Files that fail to parse are
reported and skipped; they never abort the batch.`,
	Example: `  # Analyze a whole Minidump folder
  bsod batch ./minidumps

  # Only the 10 newest dumps, saved to history
  bsod batch ./minidumps --limit 10 --save

  # Restrict to a filename glob
  bsod batch ./dumps --pattern "MEMORY*.DMP"`,
	Args: cobra.ExactArgs(1),
	Run:  runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "Analyze at most N dumps (newest first, 0 = all)")
	batchCmd.Flags().StringVar(&batchPattern, "pattern", "*.dmp", "Filename glob to match (case-insensitive)")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "Save each result to crash history")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 4, "Number of dumps analyzed in parallel")
}

// findDumps lists matching dump files newest-first.
func findDumps(dir, pattern string, limit int) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		path string
		mod  int64
	}
	var found []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ok, _ := filepath.Match(strings.ToLower(pattern), strings.ToLower(e.Name()))
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, candidate{filepath.Join(dir, e.Name()), info.ModTime().Unix()})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].mod > found[j].mod })
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}

	paths := make([]string, len(found))
	for i, c := range found {
		paths[i] = c.path
	}
	return paths, nil
}

func runBatch(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	analyzer := newAnalyzer(cfg)

	paths, err := findDumps(args[0], batchPattern, batchLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", args[0], err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Printf("No dumps matching %q in %s\n", batchPattern, args[0])
		return
	}

	fmt.Printf("\033[1m📦 Analyzing %d dumps\033[0m\n\n", len(paths))

	var mu sync.Mutex
	results := make([]*engine.Result, len(paths))
	var failed int

	var g errgroup.Group
	if batchWorkers < 1 {
		batchWorkers = 1
	}
	g.SetLimit(batchWorkers)

	for i, path := range paths {
		g.Go(func() error {
			result, err := analyzer.AnalyzeFile(path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				explainAnalyzeError(filepath.Base(path), err)
				return nil
			}
			results[i] = result
			fmt.Printf("\033[32m✓\033[0m %-28s %s\n", filepath.Base(path), renderBrief(result))
			return nil
		})
	}
	g.Wait()

	if batchSave {
		db, derr := storage.InitDB()
		if derr != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Could not open history db: %v\n", derr)
		} else {
			defer db.Close()
			var saved int
			for _, r := range results {
				if r == nil {
					continue
				}
				if _, serr := storage.SaveAnalysis(db, r); serr != nil {
					fmt.Fprintf(os.Stderr, "⚠️  Save failed for %s: %v\n", r.DumpPath, serr)
					continue
				}
				saved++
			}
			fmt.Printf("\n\033[32m✓ Saved %d results to crash history\033[0m\n", saved)
		}
	}

	// Aggregate view over this batch alone.
	byDriver := map[string]int{}
	byCode := map[string]int{}
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Suspect != nil {
			byDriver[r.Suspect.Module.Name]++
		}
		byCode[fmt.Sprintf("0x%X %s", r.Crash.Code, r.Bugcheck.Name)]++
	}

	fmt.Println("\n\033[90m────────────────────────────────\033[0m")
	fmt.Printf("✓ %d analyzed  ", len(paths)-failed)
	if failed > 0 {
		fmt.Printf("\033[31m✗ %d failed\033[0m", failed)
	}
	fmt.Println()

	if top, n := topCount(byDriver); top != "" {
		fmt.Printf("   Most suspected driver: \033[1m%s\033[0m (%d crashes)\n", top, n)
	}
	if top, n := topCount(byCode); top != "" {
		fmt.Printf("   Most common bugcheck:  \033[1m%s\033[0m (%d crashes)\n", top, n)
	}
}

func topCount(counts map[string]int) (string, int) {
	var best string
	var n int
	for k, v := range counts {
		if v > n || (v == n && k < best) {
			best, n = k, v
		}
	}
	return best, n
}
