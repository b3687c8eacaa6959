package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"PortfolioChat/internal/chatbot"
	"PortfolioChat/internal/gateway"
	"PortfolioChat/internal/session"
)

//nolint:gochecknoglobals // Cobra boilerplate
var (
	chatEndpoint  string
	chatSessionID string
	chatPlain     bool
)

//nolint:gochecknoglobals // Cobra boilerplate
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the portfolio assistant in the terminal",
	Long: `Start an interactive chat. Each message is sent to the backend chat
endpoint; when that fails or returns an unusable reply, the answer is
composed from the local portfolio data instead.

Set chat.transcripts_path in the config to keep transcripts, and pass
--session-id to resume one.`,
	RunE: runChat,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatEndpoint, "endpoint", "", "Backend chat URL (default from config)")
	chatCmd.Flags().StringVar(&chatSessionID, "session-id", "", "Resume a stored session by ID")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "Print replies without markdown styling")
}

func runChat(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if chatEndpoint != "" {
		cfg.Chat.Endpoint = chatEndpoint
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, cleanup, err := setupLogging(ctx, cfg, cfg.Debug)
	if err != nil {
		return err
	}
	defer cleanup()

	store := newKnowledgeStore(cfg, logger)
	defer store.Shutdown()
	if err = store.Initialize(ctx); err != nil {
		// Local answers report "still loading" until a refresh succeeds.
		logger.Error("failed to load portfolio data", "error", err)
	}

	opts := chatbot.Options{
		Gateway:   gateway.NewClient(cfg.Chat.Endpoint, cfg.ChatTimeout(), logger),
		Knowledge: store,
		DenyList:  cfg.Chat.DenyList,
		Source:    "cli",
		Logger:    logger,
	}

	var transcripts *session.Store
	if cfg.Chat.TranscriptsPath != "" {
		transcripts, err = session.OpenStore(cfg.Chat.TranscriptsPath, logger)
		if err != nil {
			return errors.Wrap(err, "failed to open transcript store")
		}
		defer transcripts.Close()
		opts.Recorder = transcripts
	}

	bot := chatbot.New(opts)
	defer bot.Close()

	if chatSessionID != "" {
		if transcripts == nil {
			return errors.New("--session-id requires chat.transcripts_path in the config")
		}
		sess, loadErr := transcripts.Load(ctx, chatSessionID)
		if loadErr != nil {
			return errors.Wrapf(loadErr, "failed to resume session %s", chatSessionID)
		}
		bot.Resume(sess)
	}

	return chatbot.NewREPL(bot, cmd.InOrStdin(), cmd.OutOrStdout(), chatPlain).Run(ctx)
}
