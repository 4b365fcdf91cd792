package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"bsod-cli/internal/ai"
	"bsod-cli/internal/config"
	"bsod-cli/internal/driver"
	"bsod-cli/internal/infra"
	"bsod-cli/internal/storage"
)

var doctorQuiet bool

type CheckResult struct {
	Name    string
	Status  string // "ok", "warn", "fail"
	Message string
	Hint    string
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that everything bsod needs is in place",
	Long: `Run health checks on the pieces bsod depends on.

Checks:
  - Data directory and history database
  - Known-drivers override file
  - Configured dump directories
  - AI provider reachability
  - Docker and the Ollama container (when the provider is ollama)`,
	Example: `  # Run all checks
  bsod doctor

  # Only show problems
  bsod doctor --quiet`,
	Run: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorQuiet, "quiet", false, "Only show failures")
}

func runDoctor(cmd *cobra.Command, args []string) {
	fmt.Println("\033[1m🔍 bsod doctor\033[0m")
	fmt.Println()

	cfg := loadConfig()

	checks := []func(*config.Config) CheckResult{
		checkDataDir,
		checkDatabase,
		checkKnownDrivers,
		checkDumpDirs,
		checkAIProvider,
	}
	if cfg.AIProvider == "ollama" {
		checks = append(checks, checkOllamaContainer)
	}

	var failed, warned, passed int
	for _, check := range checks {
		result := check(cfg)

		if doctorQuiet && result.Status == "ok" {
			passed++
			continue
		}

		fmt.Printf("%s \033[1m%s\033[0m\n", statusIcon(result.Status), result.Name)
		fmt.Printf("   %s\n", result.Message)

		switch result.Status {
		case "ok":
			passed++
		case "warn":
			warned++
		case "fail":
			failed++
			if result.Hint != "" {
				fmt.Printf("   \033[36m💡 %s\033[0m\n", result.Hint)
			}
		}
		fmt.Println()
	}

	fmt.Println("\033[90m────────────────────────────────\033[0m")
	fmt.Printf("✓ %d passed  ", passed)
	if warned > 0 {
		fmt.Printf("⚠ %d warnings  ", warned)
	}
	if failed > 0 {
		fmt.Printf("\033[31m✗ %d failed\033[0m", failed)
	}
	fmt.Println()

	if failed > 0 {
		os.Exit(1)
	}
}

func statusIcon(status string) string {
	switch status {
	case "ok":
		return "\033[32m✓\033[0m"
	case "warn":
		return "\033[33m⚠\033[0m"
	case "fail":
		return "\033[31m✗\033[0m"
	}
	return "?"
}

func checkDataDir(cfg *config.Config) CheckResult {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return CheckResult{
			Name:    "Data Directory",
			Status:  "fail",
			Message: fmt.Sprintf("Cannot create %s: %v", cfg.DataDir, err),
			Hint:    "Set BSOD_CLI_DATA_DIR to a writable location",
		}
	}
	probe := filepath.Join(cfg.DataDir, ".doctor-probe")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		return CheckResult{
			Name:    "Data Directory",
			Status:  "fail",
			Message: fmt.Sprintf("%s is not writable: %v", cfg.DataDir, err),
			Hint:    "Set BSOD_CLI_DATA_DIR to a writable location",
		}
	}
	os.Remove(probe)
	return CheckResult{Name: "Data Directory", Status: "ok", Message: cfg.DataDir}
}

func checkDatabase(cfg *config.Config) CheckResult {
	db, err := storage.InitDB()
	if err != nil {
		return CheckResult{
			Name:    "History Database",
			Status:  "fail",
			Message: fmt.Sprintf("Cannot open: %v", err),
		}
	}
	defer db.Close()

	records, err := storage.RecentCrashes(db, storage.QueryOpts{Limit: 1})
	if err != nil {
		return CheckResult{
			Name:    "History Database",
			Status:  "fail",
			Message: fmt.Sprintf("Query failed: %v", err),
		}
	}
	msg := "Open, no saved crashes yet"
	if len(records) > 0 {
		msg = fmt.Sprintf("Open, newest record from %s", records[0].CreatedAt.Format("2006-01-02"))
	}
	return CheckResult{Name: "History Database", Status: "ok", Message: msg}
}

func checkKnownDrivers(cfg *config.Config) CheckResult {
	if _, err := os.Stat(cfg.KnownDriversPath); os.IsNotExist(err) {
		return CheckResult{
			Name:    "Known Drivers",
			Status:  "ok",
			Message: fmt.Sprintf("Using built-in registry (%d drivers)", driver.NewRegistry().Len()),
		}
	}
	registry := driver.NewRegistry()
	if err := registry.LoadFile(cfg.KnownDriversPath); err != nil {
		return CheckResult{
			Name:    "Known Drivers",
			Status:  "fail",
			Message: fmt.Sprintf("Override file is broken: %v", err),
			Hint:    "Fix or remove " + cfg.KnownDriversPath,
		}
	}
	return CheckResult{
		Name:    "Known Drivers",
		Status:  "ok",
		Message: fmt.Sprintf("Built-in + %s (%d drivers total)", cfg.KnownDriversPath, registry.Len()),
	}
}

func checkDumpDirs(cfg *config.Config) CheckResult {
	var reachable int
	for _, dir := range cfg.DumpDirs {
		if _, err := os.Stat(dir); err == nil {
			reachable++
		}
	}
	if len(cfg.DumpDirs) == 0 {
		return CheckResult{
			Name:    "Dump Directories",
			Status:  "ok",
			Message: "None configured (scan uses the standard Windows locations)",
		}
	}
	if reachable == 0 {
		return CheckResult{
			Name:    "Dump Directories",
			Status:  "warn",
			Message: fmt.Sprintf("None of the %d configured dump_dirs exist", len(cfg.DumpDirs)),
		}
	}
	return CheckResult{
		Name:    "Dump Directories",
		Status:  "ok",
		Message: fmt.Sprintf("%d of %d configured directories reachable", reachable, len(cfg.DumpDirs)),
	}
}

func checkAIProvider(cfg *config.Config) CheckResult {
	provider, err := ai.FromConfig(cfg)
	if err != nil {
		return CheckResult{
			Name:    "AI Provider",
			Status:  "warn",
			Message: fmt.Sprintf("Not configured: %v (AI enrichment disabled, analysis unaffected)", err),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !provider.Available(ctx) {
		return CheckResult{
			Name:    "AI Provider",
			Status:  "warn",
			Message: fmt.Sprintf("%s not reachable at %s", provider.Name(), cfg.AIBaseURL),
			Hint:    "Run 'bsod doctor' again after starting it; analysis works without AI",
		}
	}
	return CheckResult{
		Name:    "AI Provider",
		Status:  "ok",
		Message: fmt.Sprintf("%s reachable (model %s)", provider.Name(), cfg.AIModel),
	}
}

func checkOllamaContainer(cfg *config.Config) CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docker, err := infra.NewDockerClient()
	if err != nil {
		return CheckResult{
			Name:    "Ollama Container",
			Status:  "warn",
			Message: fmt.Sprintf("Docker not available: %v", err),
			Hint:    "Only needed to auto-start Ollama; a native install works too",
		}
	}
	defer docker.Close()

	ollama := infra.NewOllamaClient(docker, cfg.AIBaseURL)
	if err := ollama.Ping(ctx); err == nil {
		ok, _ := ollama.HasModel(ctx, cfg.AIModel)
		if !ok {
			return CheckResult{
				Name:    "Ollama Container",
				Status:  "warn",
				Message: fmt.Sprintf("Running, but model %q is not pulled", cfg.AIModel),
				Hint:    "docker exec ollama ollama pull " + cfg.AIModel,
			}
		}
		return CheckResult{Name: "Ollama Container", Status: "ok", Message: "Running with model " + cfg.AIModel}
	}

	c, err := docker.FindContainer(ctx, "ollama")
	if err != nil || c == nil {
		return CheckResult{
			Name:    "Ollama Container",
			Status:  "warn",
			Message: "No ollama container found",
			Hint:    "docker run -d --name ollama -p 11434:11434 ollama/ollama",
		}
	}
	return CheckResult{
		Name:    "Ollama Container",
		Status:  "fail",
		Message: fmt.Sprintf("Container %s exists but the API is not answering", c.Name),
		Hint:    "docker start " + c.Name,
	}
}
