// Package cmd provides the CLI commands of the search engine.
package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gcbaptista/go-searcher/config"
	"github.com/gcbaptista/go-searcher/internal/engine"
	"github.com/gcbaptista/go-searcher/internal/logging"
)

// app is the state shared by subcommands once the root command has
// loaded the configuration.
type app struct {
	configPath string
	dataDir    string
	logLevel   string

	cfg     *config.EngineConfig
	logger  *slog.Logger
	cleanup func()
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rt := &app{}

	cmd := &cobra.Command{
		Use:   "search_engine",
		Short: "Full-text search server with pluggable query backends",
		Long: `search_engine serves named full-text indexes over HTTP.

Each index answers queries from its own inverted index, or from a bleve or
SQLite FTS5 mirror of its documents, selected per index by settings.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: rt.load,
		PersistentPostRun: func(*cobra.Command, []string) {
			if rt.cleanup != nil {
				rt.cleanup()
			}
		},
	}
	cmd.SetVersionTemplate("search_engine version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&rt.configPath, "config", "", "Path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&rt.dataDir, "data-dir", "", "Directory to store search data (overrides the configuration)")
	cmd.PersistentFlags().StringVar(&rt.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides the configuration)")

	cmd.AddCommand(newServeCmd(rt))
	cmd.AddCommand(newQueryCmd(rt))
	cmd.AddCommand(newConfigCmd(rt))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func (rt *app) load(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadEngineConfig(rt.configPath)
	if err != nil {
		return err
	}
	if rt.dataDir != "" {
		cfg.DataDir = rt.dataDir
	}
	if rt.logLevel != "" {
		cfg.Logging.Level = rt.logLevel
	}

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.File,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	rt.cfg = cfg
	rt.logger = logger
	rt.cleanup = cleanup
	return nil
}

// openEngine opens the engine over the configured data directory.
func (rt *app) openEngine() *engine.Engine {
	return engine.NewEngine(rt.cfg.DataDir,
		engine.WithLogger(rt.logger),
		engine.WithSearchConfig(rt.cfg.Search),
		engine.WithJobWorkers(rt.cfg.Jobs.Workers))
}
