// Package cli implements searchctl, the offline companion to the search
// service: it queries, inspects, and verifies an on-disk index and can drive
// load against a running searcher.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/logger"
)

type options struct {
	configFile string
	basePath   string
	logLevel   string
	cfg        *config.Config
}

// NewRootCommand builds the searchctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "searchctl",
		Short: "Query, inspect, and verify plotsearch indexes",
		Long: `searchctl works directly on the index files written by the indexer.

Example usage:
  searchctl query -q "quick AND fox"          # Run a boolean query offline
  searchctl inspect --term fox                # Show a term's postings
  searchctl verify --index data/movies        # Report corrupt postings lists
  searchctl load --url http://localhost:8080  # Drive load at a searcher`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if opts.basePath != "" {
				cfg.Index.BasePath = opts.basePath
			}
			opts.cfg = cfg
			logger.Setup(opts.logLevel, "text")
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (defaults apply when empty)")
	root.PersistentFlags().StringVarP(&opts.basePath, "index", "i", "", "index base path (overrides config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newQueryCommand(opts),
		newInspectCommand(opts),
		newVerifyCommand(opts),
		newLoadCommand(),
	)
	return root
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func (o *options) loadIndex() (*index.Index, segment.LoadStats, error) {
	idx, stats, err := segment.Load(o.cfg.Index.BasePath, segment.LoadOptions{MaxBlockSize: o.cfg.Index.MaxBlockSize})
	if err != nil {
		return nil, stats, fmt.Errorf("failed to open index %s: %w", o.cfg.Index.BasePath, err)
	}
	return idx, stats, nil
}
