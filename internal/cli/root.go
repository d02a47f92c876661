// Package cli implements the securewatch command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bholliman55/securewatch-n8n/internal/config"
	"github.com/bholliman55/securewatch-n8n/internal/ledger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "securewatch",
	Short: "Append-only event ledger and trace correlation for security scan pipelines",
	Long:  "Ingests workflow events from scan agents into an append-only ledger,\ncorrelates them by trace ID, and provides timeline queries, error sweeps,\ncontract verification, and trace replay.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}

func openStore(cfg *config.Config) (ledger.Store, error) {
	return ledger.Open(cfg.DatabaseURL, cfg.SQLitePath)
}
