package backend

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"PortfolioChat/internal/session"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiProvider calls Gemini's generateContent through the genai SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
	logger *slog.Logger
	tracer trace.Tracer
}

// NewGeminiProvider creates the provider. An empty apiKey yields an
// unconfigured provider that the chain skips.
func NewGeminiProvider(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	p := &GeminiProvider{
		model:  model,
		logger: logger,
		tracer: otel.Tracer("portfoliochat/backend"),
	}
	if apiKey == "" {
		return p, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GenAI client")
	}
	p.client = client
	return p, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Configured() bool { return p.client != nil }

// Complete sends the conversation reshaped to Gemini's user/model turns.
func (p *GeminiProvider) Complete(ctx context.Context, system string, messages []session.Message) (string, error) {
	ctx, span := p.tracer.Start(ctx, "gemini_api_call")
	defer span.End()

	if p.client == nil {
		return "", errors.New("GEMINI_API_KEY not set")
	}

	contents := toGeminiContents(messages)
	if len(contents) == 0 {
		return "", errors.New("no user message to send")
	}

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", errors.Wrap(err, "GenAI generate failed")
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", errors.New("empty response from Gemini")
	}
	return text, nil
}

// toGeminiContents maps assistant turns to the model role, drops system
// turns, and skips anything before the first user turn.
func toGeminiContents(messages []session.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		var role genai.Role
		switch msg.Role {
		case session.RoleUser:
			role = genai.RoleUser
		case session.RoleAssistant:
			if len(contents) == 0 {
				continue
			}
			role = genai.RoleModel
		default:
			continue
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}
