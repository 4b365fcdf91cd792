package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"bsod-cli/internal/storage"
)

var (
	watchDirs []string
	watchSave bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory...]",
	Short: "Watch dump directories and analyze new crashes as they land",
	Long: `Watch one or more directories for new crash dumps and diagnose each one
as it appears. Writes are debounced so a dump still being copied in is
only analyzed once it stops growing.

Without arguments the configured dump_dirs (plus the standard Windows
locations that exist on this machine) are watched.`,
	Example: `  # Watch the usual locations
  bsod watch

  # Watch a specific folder and save everything to history
  bsod watch ./minidumps --save`,
	Run: runWatchDumps,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchSave, "save", false, "Save each result to crash history")
}

func runWatchDumps(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	dirs := args
	if len(dirs) == 0 {
		for _, dir := range dumpDirs(cfg.DumpDirs) {
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				dirs = append(dirs, dir)
			}
		}
	}
	if len(dirs) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no watchable directories; pass one explicitly")
		os.Exit(1)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating watcher: %v\n", err)
		os.Exit(1)
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Cannot watch %s: %v\n", dir, err)
			continue
		}
		fmt.Printf("\033[36m👀 Watching %s\033[0m\n", dir)
	}
	fmt.Println("\033[90mWaiting for new dumps... (Ctrl+C to exit)\033[0m")

	analyzer := newAnalyzer(cfg)

	// A dump file is written in bursts while the kernel (or a copy)
	// flushes it; debounce per path and only analyze after it has been
	// quiet for a moment.
	const settle = 2 * time.Second
	var mu sync.Mutex
	pending := map[string]*time.Timer{}

	handle := func(path string) {
		mu.Lock()
		delete(pending, path)
		mu.Unlock()

		fmt.Printf("\n\033[33m[!] New dump: %s\033[0m\n", path)
		result, err := analyzer.AnalyzeFile(path)
		if err != nil {
			explainAnalyzeError(path, err)
			return
		}
		renderResult(result, cfg.ConfidenceThreshold)

		if watchSave {
			db, derr := storage.InitDB()
			if derr != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Could not open history db: %v\n", derr)
				return
			}
			defer db.Close()
			if _, serr := storage.SaveAnalysis(db, result); serr != nil {
				fmt.Fprintf(os.Stderr, "⚠️  Could not save analysis: %v\n", serr)
			} else {
				fmt.Println("\033[32m✓ Saved to crash history\033[0m")
			}
		}
		fmt.Println("\033[90m----------------------------------------\033[0m")
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".dmp") {
				continue
			}
			path := event.Name
			mu.Lock()
			if timer, exists := pending[path]; exists {
				timer.Reset(settle)
			} else {
				pending[path] = time.AfterFunc(settle, func() { handle(path) })
			}
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "⚠️  Watch error: %v\n", err)
		}
	}
}
