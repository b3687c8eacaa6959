package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"PortfolioChat/internal/config"
	"PortfolioChat/internal/knowledge"
	"PortfolioChat/internal/telemetry"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	configFile string
	debug      bool
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "portfoliochat",
	Short: "Portfolio chat assistant",
	Long: `portfoliochat answers questions about a developer's portfolio.

"serve" runs the backend chat endpoint, which asks an upstream model and
falls back to a fixed message when none answers. "chat" is the terminal
widget: it talks to that endpoint and falls back to answers composed from
the local portfolio data whenever the remote reply is unusable.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.portfoliochat/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")
}

// loadConfig reads the config and applies the global flags.
func loadConfig() (cfg config.Config, err error) {
	cfg, err = config.Load(configFile)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to load config")
	}
	if debug {
		cfg.Debug = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Stderr = true
	}
	return cfg, nil
}

// setupLogging initializes the file logger and, when tracing is wanted,
// the OpenTelemetry providers. The returned cleanup flushes both.
func setupLogging(ctx context.Context, cfg config.Config, withTelemetry bool) (*slog.Logger, func(), error) {
	logger, closeLog, err := telemetry.InitLogger(cfg.Logging.Dir, telemetry.ParseLevel(cfg.Logging.Level), cfg.Logging.Stderr)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to initialize logger")
	}
	if !withTelemetry {
		return logger, closeLog, nil
	}

	shutdownTelemetry, err := telemetry.InitTelemetry(ctx, cfg.Logging.Dir)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
		return logger, closeLog, nil
	}
	return logger, func() {
		shutdownTelemetry()
		closeLog()
	}, nil
}

// newKnowledgeStore builds the portfolio store from config. The bundled
// tables are used unless knowledge.data_path names a file.
func newKnowledgeStore(cfg config.Config, logger *slog.Logger) *knowledge.Store {
	var source knowledge.Source = knowledge.BundledSource{}
	opts := knowledge.Options{
		RefreshInterval: cfg.RefreshInterval(),
		Logger:          logger,
	}
	if cfg.Knowledge.DataPath != "" {
		source = knowledge.FileSource{Path: cfg.Knowledge.DataPath}
		if cfg.Knowledge.Watch {
			opts.WatchPath = cfg.Knowledge.DataPath
		}
	}
	return knowledge.NewStore(source, opts)
}
