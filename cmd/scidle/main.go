// Command scidle runs the supply chain idle simulation server and its
// operator tools.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/khalecl/supply-chain-idle/internal/config"
)

var (
	// Global flags
	configPath string

	cfg *config.Config
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "scidle",
		Short: "Supply chain idle simulation server",
		Long: `scidle runs the production chain simulation behind an HTTP API and
offers offline tools for inspecting the catalog, the geology and saves.

Settings come from defaults, an optional scidle.yaml and SCIDLE_* environment
variables, in increasing priority.

Examples:
  scidle serve
  scidle catalog processors
  scidle survey --x 120 --z -40 --radius 30
  scidle snapshot export
  scidle snapshot import data/snapshots/snapshot-20260101T000000Z.scidle.zst`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = c
			slog.SetDefault(newLogger(c))
			return nil
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to config file (default: search for scidle.yaml)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newCatalogCommand())
	root.AddCommand(newSurveyCommand())
	root.AddCommand(newSnapshotCommand())
	root.AddCommand(newHistoryCommand())

	return root
}

func newLogger(c *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
