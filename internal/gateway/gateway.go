// Package gateway calls the backend chat endpoint once per turn.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"PortfolioChat/internal/session"
)

// EmptyCompletionText is returned when a successful response carries no content.
const EmptyCompletionText = "Sorry, I couldn't generate a response."

// StatusDegraded marks a backend reply that is fallback text, not a provider answer.
const StatusDegraded = "degraded"

// Completion is the outcome of a successful call.
type Completion struct {
	Text     string
	Provider string
	Degraded bool
}

// Request is the body POSTed to the chat endpoint.
type Request struct {
	Messages []WireMessage `json:"messages"`
}

type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the body returned by the chat endpoint.
type Response struct {
	Message  *WireMessage `json:"message,omitempty"`
	Provider string       `json:"provider,omitempty"`
	Status   string       `json:"status,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Client posts conversation history to the chat endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewClient creates a gateway client. A zero timeout keeps the transport default.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		tracer:     otel.Tracer("portfoliochat/gateway"),
	}
}

// Complete sends history and returns the assistant text. It makes a single
// attempt and leaves fallback decisions to the caller.
func (c *Client) Complete(ctx context.Context, history []session.Message) (Completion, error) {
	ctx, span := c.tracer.Start(ctx, "gateway_complete")
	defer span.End()

	comp, err := c.complete(ctx, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("completion failed", "endpoint", c.endpoint, "error", err)
		return Completion{}, err
	}

	span.SetAttributes(attribute.String("provider", comp.Provider), attribute.Bool("degraded", comp.Degraded))
	c.logger.Info("completion succeeded", "provider", comp.Provider, "degraded", comp.Degraded)
	return comp, nil
}

func (c *Client) complete(ctx context.Context, history []session.Message) (Completion, error) {
	if c.endpoint == "" {
		return Completion{}, errors.New("no chat endpoint configured")
	}

	reqBody := Request{Messages: make([]WireMessage, len(history))}
	for i, msg := range history {
		reqBody.Messages[i] = WireMessage{Role: msg.Role, Content: msg.Content}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Completion{}, errors.Wrap(err, "failed to marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return Completion{}, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("content-type", "application/json")

	c.logger.Debug("sending completion request", "endpoint", c.endpoint, "messages", len(history))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Completion{}, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, errors.Wrap(err, "failed to read response")
	}

	c.logger.Debug("completion response", "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	var apiResp Response
	decodeErr := json.Unmarshal(body, &apiResp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && apiResp.Error != "" {
			return Completion{}, errors.Errorf("chat endpoint error: %s - %s", resp.Status, apiResp.Error)
		}
		return Completion{}, errors.Errorf("chat endpoint error: %s", resp.Status)
	}

	if decodeErr != nil {
		return Completion{}, errors.Wrap(decodeErr, "failed to unmarshal response")
	}

	comp := Completion{
		Provider: apiResp.Provider,
		Degraded: apiResp.Status == StatusDegraded,
	}
	if apiResp.Message == nil || apiResp.Message.Content == "" {
		comp.Text = EmptyCompletionText
		return comp, nil
	}
	comp.Text = apiResp.Message.Content
	return comp, nil
}
