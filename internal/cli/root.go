// Package cli implements the vecsearch command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecsearch/internal/config"
)

type rootFlags struct {
	configPath string
	driver     string
	dsn        string
	dir        string
	logLevel   string
	logFormat  string
	output     string
}

// NewRootCommand builds the vecsearch command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "vecsearch",
		Short: "Vector search over named collections",
		Long: `vecsearch stores embedded points in named collections and answers
nearest-neighbor queries against them with a cached HNSW index.

Configuration is read from --config, then $VECSEARCH_CONFIG. Flags override
file values.

Examples:
  vecsearch collection create docs --size 3 --distance cosine
  vecsearch points add docs -f points.jsonl
  vecsearch search docs --vector 1,0,0 --top-k 5
  vecsearch serve --addr :8000`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to vecsearch.yaml")
	pf.StringVar(&flags.driver, "store", "", "store driver: memory, sqlite, postgres or badger")
	pf.StringVar(&flags.dsn, "dsn", "", "sqlite path or postgres connection string")
	pf.StringVar(&flags.dir, "dir", "", "badger data directory")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text or json")
	pf.StringVarP(&flags.output, "output", "o", "table", "output format: table, json or yaml")

	cmd.AddCommand(
		newCollectionCommand(flags),
		newPointsCommand(flags),
		newSearchCommand(flags),
		newSearchByIDCommand(flags),
		newSimilarityCommand(flags),
		newWarmCommand(flags),
		newSnapshotCommand(flags),
		newServeCommand(flags),
	)

	return cmd
}

// load reads the config file and applies flag overrides.
func (f *rootFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	if f.driver != "" {
		cfg.Store.Driver = f.driver
	}
	if f.dsn != "" {
		cfg.Store.DSN = f.dsn
	}
	if f.dir != "" {
		cfg.Store.Dir = f.dir
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}

	return cfg, nil
}

// open loads the config and opens the app. Callers close it.
func (f *rootFlags) open(cmd *cobra.Command) (*app, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, err
	}

	return openApp(cmd.Context(), cfg)
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
