package chatbot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"PortfolioChat/internal/composer"
	"PortfolioChat/internal/gateway"
	"PortfolioChat/internal/intent"
	"PortfolioChat/internal/knowledge"
	"PortfolioChat/internal/session"
)

const (
	SourceRemote  = "remote"
	SourceLocal   = "local"
	SourceApology = "apology"

	// ApologyText is the last-resort reply when nothing else is usable.
	ApologyText = "Sorry, I'm having trouble answering right now. Please try again, or use the contact section to reach out directly."
)

// DefaultDenyList holds phrases that mark a remote reply as a service
// failure dressed up as an answer.
var DefaultDenyList = []string{
	"technical difficulties",
	"couldn't generate a response",
	"i'm having trouble",
	"service is unavailable",
	"service unavailable",
	"please try again later",
	"an error occurred",
}

// Completer is the remote completion gateway.
type Completer interface {
	Complete(ctx context.Context, history []session.Message) (gateway.Completion, error)
}

// Knowledge provides the current snapshot and change notifications.
type Knowledge interface {
	Snapshot() *knowledge.Snapshot
	Subscribe(fn knowledge.Listener) (unsubscribe func())
}

// Recorder archives transcripts.
type Recorder interface {
	Save(ctx context.Context, sess *session.Session) error
}

// Options configures a ChatBot. Gateway, Knowledge and Recorder may be nil.
type Options struct {
	Gateway   Completer
	Knowledge Knowledge
	Recorder  Recorder
	DenyList  []string
	Source    string
	Logger    *slog.Logger
}

// Reply is one assistant turn as shown to the visitor.
type Reply struct {
	Text               string
	Source             string
	Provider           string
	Intent             intent.Intent
	SuggestedFollowUps []string
}

// ChatBot owns one conversation and decides, per turn, between the remote
// answer and a locally composed one.
type ChatBot struct {
	gateway   Completer
	knowledge Knowledge
	recorder  Recorder
	denyList  []string
	source    string
	logger    *slog.Logger

	classifier   atomic.Pointer[intent.Classifier]
	classifierMu sync.Mutex
	unsubscribe  func()
	fallbacks    metric.Int64Counter
	tracer       trace.Tracer

	turnMu  sync.Mutex // one outstanding turn
	mu      sync.Mutex // guards session
	session *session.Session

	saves   sync.WaitGroup
	saveMu  sync.Mutex
	saveSeq atomic.Uint64
	saved   map[string]uint64 // session ID -> newest persisted seq
}

// New creates a ChatBot with a fresh session.
func New(opts Options) *ChatBot {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	denyList := opts.DenyList
	if len(denyList) == 0 {
		denyList = DefaultDenyList
	}
	lowered := make([]string, 0, len(denyList))
	for _, p := range denyList {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	source := opts.Source
	if source == "" {
		source = "cli"
	}

	cb := &ChatBot{
		gateway:   opts.Gateway,
		knowledge: opts.Knowledge,
		recorder:  opts.Recorder,
		denyList:  lowered,
		source:    source,
		logger:    logger,
		tracer:    otel.Tracer("portfoliochat/chatbot"),
		saved:     map[string]uint64{},
	}

	fallbacks, err := otel.Meter("portfoliochat/chatbot").Int64Counter(
		"chat.local_fallbacks",
		metric.WithDescription("Turns answered from local knowledge"),
	)
	if err != nil {
		logger.Warn("failed to create fallback counter", "error", err)
	}
	cb.fallbacks = fallbacks

	cb.classifier.Store(intent.NewClassifier())
	if cb.knowledge != nil {
		cb.unsubscribe = cb.knowledge.Subscribe(func(*knowledge.Snapshot) { cb.rebuildClassifier() })
		cb.rebuildClassifier()
	}

	cb.session = session.New(source)
	logger.Info("created new session", "session_id", cb.session.ID, "source", source)
	return cb
}

// rebuildClassifier re-reads the current snapshot rather than trusting the
// notification, so the last rebuild always reflects the newest data.
func (cb *ChatBot) rebuildClassifier() {
	cb.classifierMu.Lock()
	defer cb.classifierMu.Unlock()

	snap := cb.knowledge.Snapshot()
	if snap == nil {
		return
	}
	cb.classifier.Store(intent.NewClassifier(snap.ProjectTerms()...))
}

// SessionID returns the current session ID.
func (cb *ChatBot) SessionID() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.session.ID
}

// History returns a copy of the conversation so far.
func (cb *ChatBot) History() []session.Message {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	out := make([]session.Message, len(cb.session.Messages))
	copy(out, cb.session.Messages)
	return out
}

// NewSession saves the current conversation and starts an empty one.
func (cb *ChatBot) NewSession() string {
	cb.turnMu.Lock()
	defer cb.turnMu.Unlock()

	cb.mu.Lock()
	old := cb.session.Clone()
	cb.session = session.New(cb.source)
	id := cb.session.ID
	cb.mu.Unlock()

	cb.persist(old)
	cb.logger.Info("created new session", "session_id", id, "source", cb.source)
	return id
}

// Resume replaces the current conversation with a stored one.
func (cb *ChatBot) Resume(sess *session.Session) {
	cb.turnMu.Lock()
	defer cb.turnMu.Unlock()

	cb.mu.Lock()
	cb.session = sess.Clone()
	cb.mu.Unlock()
	cb.logger.Info("loaded existing session", "session_id", sess.ID, "messages", len(sess.Messages))
}

// Send runs one turn. It never fails: the reply is a usable remote
// answer, a locally composed answer, or ApologyText.
func (cb *ChatBot) Send(ctx context.Context, text string) Reply {
	cb.turnMu.Lock()
	defer cb.turnMu.Unlock()

	ctx, span := cb.tracer.Start(ctx, "chat_turn")
	defer span.End()

	cb.mu.Lock()
	cb.session.Messages = append(cb.session.Messages, session.NewUserMessage(text))
	history := make([]session.Message, len(cb.session.Messages))
	copy(history, cb.session.Messages)
	cb.mu.Unlock()

	in := cb.classifier.Load().Classify(text)

	reply, ok := cb.remoteReply(ctx, history)
	if !ok {
		reply = cb.localReply(ctx, in, text)
	}
	reply.Intent = in
	span.SetAttributes(attribute.String("chat.source", reply.Source), attribute.String("chat.intent", string(in)))
	if len(reply.SuggestedFollowUps) == 0 {
		reply.SuggestedFollowUps = composer.FollowUps(in)
	}

	cb.mu.Lock()
	cb.session.Messages = append(cb.session.Messages, session.NewAssistantMessage(reply.Text))
	snapshot := cb.session.Clone()
	cb.mu.Unlock()

	cb.persist(snapshot)
	return reply
}

func (cb *ChatBot) remoteReply(ctx context.Context, history []session.Message) (Reply, bool) {
	if cb.gateway == nil {
		return Reply{}, false
	}

	comp, err := cb.gateway.Complete(ctx, history)
	if err != nil {
		cb.logger.Warn("remote completion failed, using local knowledge", "error", err)
		return Reply{}, false
	}
	if !cb.usable(comp) {
		cb.logger.Warn("remote reply not usable, using local knowledge", "provider", comp.Provider, "degraded", comp.Degraded)
		return Reply{}, false
	}

	return Reply{Text: comp.Text, Source: SourceRemote, Provider: comp.Provider}, true
}

// usable rejects degraded replies and any text containing a deny-listed phrase.
func (cb *ChatBot) usable(comp gateway.Completion) bool {
	if comp.Degraded || strings.TrimSpace(comp.Text) == "" {
		return false
	}
	lower := strings.ToLower(comp.Text)
	for _, phrase := range cb.denyList {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}

func (cb *ChatBot) localReply(ctx context.Context, in intent.Intent, text string) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			cb.logger.Error("local composition panicked", "panic", r)
			reply = Reply{Text: ApologyText, Source: SourceApology}
		}
	}()

	if cb.fallbacks != nil {
		cb.fallbacks.Add(ctx, 1)
	}

	var snap *knowledge.Snapshot
	if cb.knowledge != nil {
		snap = cb.knowledge.Snapshot()
	}

	composed := composer.Compose(in, snap, text)
	if strings.TrimSpace(composed.Text) == "" {
		return Reply{Text: ApologyText, Source: SourceApology}
	}

	cb.logger.Info("answered locally", "intent", string(in), "confidence", composed.Confidence)
	return Reply{
		Text:               composed.Text,
		Source:             SourceLocal,
		SuggestedFollowUps: composed.SuggestedFollowUps,
	}
}

func (cb *ChatBot) persist(sess *session.Session) {
	if cb.recorder == nil || len(sess.Messages) == 0 {
		return
	}
	seq := cb.saveSeq.Add(1)
	cb.saves.Add(1)
	go func() {
		defer cb.saves.Done()

		cb.saveMu.Lock()
		defer cb.saveMu.Unlock()
		// A later turn of the same session may already be on disk.
		if cb.saved[sess.ID] > seq {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cb.recorder.Save(ctx, sess); err != nil {
			cb.logger.Error("failed to save session", "session_id", sess.ID, "error", err)
			return
		}
		cb.saved[sess.ID] = seq
	}()
}

// Close waits for pending transcript writes and stops listening for
// snapshot changes.
func (cb *ChatBot) Close() {
	if cb.unsubscribe != nil {
		cb.unsubscribe()
		cb.unsubscribe = nil
	}
	cb.saves.Wait()
}
