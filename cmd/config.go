package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the configuration after merging defaults, ~/.bsodcli/config.yaml,
and BSOD_CLI_* environment overrides.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		out, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding config: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("\033[1m⚙️  Effective configuration\033[0m")
		fmt.Println()
		text := string(out)
		if cfg.AIAPIKey != "" {
			text = strings.ReplaceAll(text, cfg.AIAPIKey, "********")
		}
		fmt.Print(text)
		fmt.Println("\n\033[90mEdit ~/.bsodcli/config.yaml or set BSOD_CLI_* variables to change.\033[0m")
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
