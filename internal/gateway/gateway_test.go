package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioChat/internal/session"
)

func history() []session.Message {
	return []session.Message{
		session.NewUserMessage("hi"),
		session.NewAssistantMessage("hello"),
		session.NewUserMessage("what are your skills?"),
	}
}

func TestComplete_Success(t *testing.T) {
	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(Response{
			Message:  &WireMessage{Role: "assistant", Content: "Go and TypeScript."},
			Provider: "openai",
			Status:   "ok",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, nil)
	comp, err := client.Complete(context.Background(), history())
	require.NoError(t, err)

	assert.Equal(t, "Go and TypeScript.", comp.Text)
	assert.Equal(t, "openai", comp.Provider)
	assert.False(t, comp.Degraded)

	require.Len(t, got.Messages, 3)
	assert.Equal(t, "user", got.Messages[2].Role)
	assert.Equal(t, "what are your skills?", got.Messages[2].Content)
}

func TestComplete_MissingContentReturnsPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"other":"field"}`))
	}))
	defer server.Close()

	comp, err := NewClient(server.URL, 0, nil).Complete(context.Background(), history())
	require.NoError(t, err)
	assert.Equal(t, EmptyCompletionText, comp.Text)
}

func TestComplete_DegradedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":{"content":"fallback"},"status":"degraded"}`))
	}))
	defer server.Close()

	comp, err := NewClient(server.URL, 0, nil).Complete(context.Background(), history())
	require.NoError(t, err)
	assert.True(t, comp.Degraded)
}

func TestComplete_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		errText string
	}{
		{
			name: "non-2xx with error body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(`{"error":"upstream down"}`))
			},
			errText: "upstream down",
		},
		{
			name: "non-2xx without body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			errText: "500",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{not json`))
			},
			errText: "unmarshal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewClient(server.URL, 0, nil).Complete(context.Background(), history())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestComplete_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, 0, nil).Complete(context.Background(), history())
	assert.Error(t, err)
}

func TestComplete_NoEndpoint(t *testing.T) {
	_, err := NewClient("", 0, nil).Complete(context.Background(), history())
	assert.Error(t, err)
}
