package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"PortfolioChat/internal/chatbot"
)

//nolint:gochecknoglobals // Cobra boilerplate
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question from local portfolio data",
	Long: `Classify the question and print the locally composed answer without
contacting any backend.

Example:
  portfoliochat ask "Tell me about TORI"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	logger, cleanup, err := setupLogging(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	// No background refresh for a single answer.
	cfg.Knowledge.RefreshInterval = ""
	cfg.Knowledge.Watch = false
	store := newKnowledgeStore(cfg, logger)
	defer store.Shutdown()
	if err = store.Initialize(ctx); err != nil {
		return err
	}

	bot := chatbot.New(chatbot.Options{Knowledge: store, Source: "ask", Logger: logger})
	defer bot.Close()

	reply := bot.Send(ctx, strings.Join(args, " "))
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, reply.Text)
	if len(reply.SuggestedFollowUps) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "You could also ask:")
		for _, q := range reply.SuggestedFollowUps {
			fmt.Fprintf(out, "  - %s\n", q)
		}
	}
	return nil
}
