// Package backend implements the server side of the chat widget: a
// two-provider completion chain that always produces displayable text.
package backend

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"PortfolioChat/internal/cache"
	"PortfolioChat/internal/knowledge"
	"PortfolioChat/internal/session"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"

	// DegradedText is returned when no provider produced an answer.
	DegradedText = "I'm experiencing technical difficulties right now. Please try again in a moment, or reach out directly through the contact section."

	DefaultMaxContextMessages = 20
)

// Provider is one upstream completion service.
type Provider interface {
	Name() string
	Configured() bool
	Complete(ctx context.Context, system string, messages []session.Message) (string, error)
}

// Result is the chain outcome. Status separates a real provider answer
// from the degraded fallback text.
type Result struct {
	Text     string
	Provider string
	Status   string
	Cached   bool
}

// Degraded reports whether no provider answered.
func (r Result) Degraded() bool { return r.Status == StatusDegraded }

// SnapshotFunc returns the current portfolio snapshot, possibly nil.
type SnapshotFunc func() *knowledge.Snapshot

// ChainOptions configures a Chain.
type ChainOptions struct {
	Primary            Provider
	Secondary          Provider
	Snapshot           SnapshotFunc
	Cache              *cache.Cache
	MaxContextMessages int
	Logger             *slog.Logger
}

// Chain tries the primary provider, then the secondary, then gives up
// with DegradedText.
type Chain struct {
	providers  []Provider
	snapshot   SnapshotFunc
	cache      *cache.Cache
	maxContext int
	logger     *slog.Logger
	failures   metric.Int64Counter
}

// NewChain creates a Chain. Nil providers are ignored.
func NewChain(opts ChainOptions) *Chain {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxContext := opts.MaxContextMessages
	if maxContext <= 0 {
		maxContext = DefaultMaxContextMessages
	}
	snapshot := opts.Snapshot
	if snapshot == nil {
		snapshot = func() *knowledge.Snapshot { return nil }
	}

	var providers []Provider
	for _, p := range []Provider{opts.Primary, opts.Secondary} {
		if p != nil {
			providers = append(providers, p)
		}
	}

	failures, err := otel.Meter("portfoliochat/backend").Int64Counter(
		"chat.provider_failures",
		metric.WithDescription("Upstream provider calls that failed"),
	)
	if err != nil {
		logger.Warn("failed to create failure counter", "error", err)
	}

	return &Chain{
		providers:  providers,
		snapshot:   snapshot,
		cache:      opts.Cache,
		maxContext: maxContext,
		logger:     logger,
		failures:   failures,
	}
}

// Complete answers the conversation. It never returns an error; every
// failure ends in a degraded Result.
func (c *Chain) Complete(ctx context.Context, messages []session.Message) Result {
	trimmed := TrimHistory(messages, c.maxContext)
	if len(trimmed) == 0 {
		return Result{Text: DegradedText, Status: StatusDegraded}
	}

	system := SystemPrompt(c.snapshot())

	// The prompt is part of the key so a new snapshot never serves stale facts.
	keyed := make([]session.Message, 0, len(trimmed)+1)
	keyed = append(keyed, session.Message{Role: session.RoleSystem, Content: system})
	key := cache.GenerateCacheKey(append(keyed, trimmed...))
	if cached, ok := c.cache.Get(key); ok {
		return Result{Text: cached.Response, Provider: cached.Provider, Status: StatusOK, Cached: true}
	}

	for _, p := range c.providers {
		if !p.Configured() {
			c.logger.Debug("provider not configured, skipping", "provider", p.Name())
			continue
		}

		c.logger.Info("attempting provider", "provider", p.Name(), "messages", len(trimmed))
		text, err := p.Complete(ctx, system, trimmed)
		if err != nil {
			c.logger.Warn("provider failed", "provider", p.Name(), "error", err)
			if c.failures != nil {
				c.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", p.Name())))
			}
			continue
		}

		c.cache.Put(key, p.Name(), text)
		c.logger.Info("provider succeeded", "provider", p.Name())
		return Result{Text: text, Provider: p.Name(), Status: StatusOK}
	}

	c.logger.Error("all providers failed or unconfigured", "providers", len(c.providers))
	return Result{Text: DegradedText, Status: StatusDegraded}
}

// TrimHistory keeps the last max user/assistant messages, starting at a
// user turn.
func TrimHistory(messages []session.Message, max int) []session.Message {
	filtered := make([]session.Message, 0, len(messages))
	for _, m := range messages {
		if (m.Role == session.RoleUser || m.Role == session.RoleAssistant) && m.Content != "" {
			filtered = append(filtered, m)
		}
	}
	if max > 0 && len(filtered) > max {
		filtered = filtered[len(filtered)-max:]
	}
	for len(filtered) > 0 && filtered[0].Role != session.RoleUser {
		filtered = filtered[1:]
	}
	return filtered
}
