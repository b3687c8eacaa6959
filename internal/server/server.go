// Package server exposes the provider chain and the portfolio snapshot over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"PortfolioChat/internal/backend"
	"PortfolioChat/internal/gateway"
	"PortfolioChat/internal/knowledge"
	"PortfolioChat/internal/session"
)

const maxBodyBytes = 1 << 20

// Completer answers a conversation. backend.Chain satisfies it.
type Completer interface {
	Complete(ctx context.Context, messages []session.Message) backend.Result
}

// Options configures a Server.
type Options struct {
	Chain Completer
	// Snapshot returns the current portfolio snapshot, nil until loaded.
	Snapshot       func() *knowledge.Snapshot
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server is the backend chat endpoint.
type Server struct {
	chain    Completer
	snapshot func() *knowledge.Snapshot
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

type errorResponse struct {
	Error string `json:"error"`
}

// New builds the router. Chain must not be nil.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	snapshot := opts.Snapshot
	if snapshot == nil {
		snapshot = func() *knowledge.Snapshot { return nil }
	}

	s := &Server{
		chain:    opts.Chain,
		snapshot: snapshot,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write error", "error", err)
		}
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/chat/ws", s.handleChatWS)
		r.Get("/portfolio", s.handlePortfolio)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "graceful shutdown failed")
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req gateway.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	history, err := toHistory(req)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, s.answer(r.Context(), history))
}

func (s *Server) answer(ctx context.Context, history []session.Message) gateway.Response {
	result := s.chain.Complete(ctx, history)
	return gateway.Response{
		Message:  &gateway.WireMessage{Role: session.RoleAssistant, Content: result.Text},
		Provider: result.Provider,
		Status:   result.Status,
	}
}

func toHistory(req gateway.Request) ([]session.Message, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("messages must not be empty")
	}
	history := make([]session.Message, 0, len(req.Messages))
	for i, m := range req.Messages {
		switch m.Role {
		case session.RoleUser, session.RoleAssistant, session.RoleSystem:
		default:
			return nil, errors.Errorf("messages[%d]: unknown role %q", i, m.Role)
		}
		history = append(history, session.Message{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxBodyBytes)
	s.logger.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var req gateway.Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var resp any
		if history, err := toHistory(req); err != nil {
			resp = errorResponse{Error: err.Error()}
		} else {
			resp = s.answer(r.Context(), history)
		}

		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	if snap == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "portfolio data is still loading"})
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// originChecker allows same-origin requests, listed origins, or any
// origin when the list contains "*".
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] {
			return true
		}
		if set[strings.ToLower(origin)] {
			return true
		}
		// Same origin.
		return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "http://"), "https://"), r.Host)
	}
}
