package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"PortfolioChat/internal/backend"
	"PortfolioChat/internal/cache"
	"PortfolioChat/internal/config"
	"PortfolioChat/internal/server"
	"PortfolioChat/internal/telemetry"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveAddr string

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backend chat endpoint",
	Long: `Run the HTTP backend:

  POST /api/chat       one completion per request, always 200 once the body decodes
  GET  /api/chat/ws    the same exchange over a websocket
  GET  /api/portfolio  the current portfolio snapshot
  GET  /healthz        liveness

Provider A is any OpenAI-compatible API (OPENAI_API_KEY or GROQ_API_KEY),
Provider B is Gemini (GEMINI_API_KEY).`,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.ListenAddr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, cleanup, err := setupLogging(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer cleanup()

	store := newKnowledgeStore(cfg, logger)
	defer store.Shutdown()

	chain, err := newChain(ctx, cfg, store.Snapshot, logger)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Chain:          chain,
		Snapshot:       store.Snapshot,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The store keeps polling after a failed first load; /api/portfolio
		// answers 503 until one succeeds.
		if err := store.Initialize(gctx); err != nil {
			logger.Error("failed to load portfolio data", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Server.ListenAddr)
	})

	logger.Info("portfoliochat serving", "addr", cfg.Server.ListenAddr, "version", telemetry.Version)
	if err = g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

func newChain(ctx context.Context, cfg config.Config, snapshot backend.SnapshotFunc, logger *slog.Logger) (*backend.Chain, error) {
	primary := backend.NewOpenAIProvider(backend.OpenAIConfig{
		Name:      cfg.Providers.Primary.Name,
		BaseURL:   cfg.Providers.Primary.BaseURL,
		APIKey:    cfg.Providers.Primary.APIKey,
		Model:     cfg.Providers.Primary.Model,
		MaxTokens: cfg.Providers.Primary.MaxTokens,
		Timeout:   cfg.ChatTimeout(),
	}, logger)

	secondary, err := backend.NewGeminiProvider(ctx, cfg.Providers.Secondary.APIKey, cfg.Providers.Secondary.Model, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini provider")
	}

	if !primary.Configured() && !secondary.Configured() {
		logger.Warn("no provider configured, every reply will be degraded")
	}

	return backend.NewChain(backend.ChainOptions{
		Primary:            primary,
		Secondary:          secondary,
		Snapshot:           snapshot,
		Cache:              cache.New(cfg.CacheTTL(), logger),
		MaxContextMessages: cfg.Chat.MaxContextMessages,
		Logger:             logger,
	}), nil
}
