// Package cli provides the command-line interface for managing the OTTO
// knowledge index.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vimathss/otto-backend/internal/config"
	"github.com/vimathss/otto-backend/internal/knowledge"
	"github.com/vimathss/otto-backend/internal/llm"
	"github.com/vimathss/otto-backend/internal/metrics"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, loaded in PersistentPreRunE
	cfg config.Config

	// Lazy-initialized components
	embedder  *llm.Embedder
	manager   *knowledge.Manager
	collector = metrics.NewCollector()

	closeLogger func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "otto",
	Short: "Knowledge index manager for the OTTO assistant",
	Long: `Otto manages the named knowledge collections backing the OTTO educational
assistant: ingest document directories into searchable collections, inspect
them, and run similarity queries.

Collections are rebuilt destructively: ingesting into an existing name
replaces its contents atomically.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}

		var logger *slog.Logger
		logger, closeLogger = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogger != nil {
			if err := closeLogger(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// getManager initializes the embedder and knowledge manager on first use.
// Every subcommand except version needs them, but initialization talks to
// the embedding backend so it stays out of PersistentPreRunE.
func getManager(ctx context.Context) (*knowledge.Manager, error) {
	if manager != nil {
		return manager, nil
	}

	var err error
	embedder, err = llm.NewEmbedder(ctx, cfg, collector)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	manager, err = knowledge.NewManager(cfg.StoreDir, embedder, collector)
	if err != nil {
		return nil, fmt.Errorf("init knowledge manager: %w", err)
	}
	return manager, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(collectionsCmd)
	rootCmd.AddCommand(searchCmd)
}
