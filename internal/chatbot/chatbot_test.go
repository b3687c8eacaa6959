package chatbot

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioChat/internal/composer"
	"PortfolioChat/internal/gateway"
	"PortfolioChat/internal/intent"
	"PortfolioChat/internal/knowledge"
	"PortfolioChat/internal/session"
)

type fakeGateway struct {
	mu      sync.Mutex
	calls   [][]session.Message
	respond func(history []session.Message) (gateway.Completion, error)
}

func (f *fakeGateway) Complete(_ context.Context, history []session.Message) (gateway.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, history)
	f.mu.Unlock()
	return f.respond(history)
}

type fakeRecorder struct {
	mu    sync.Mutex
	saved map[string]*session.Session
	count int
}

func (f *fakeRecorder) Save(_ context.Context, sess *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = map[string]*session.Session{}
	}
	f.saved[sess.ID] = sess.Clone()
	f.count++
	return nil
}

type staticKnowledge struct {
	snap *knowledge.Snapshot
}

func (k staticKnowledge) Snapshot() *knowledge.Snapshot { return k.snap }

func (k staticKnowledge) Subscribe(knowledge.Listener) func() { return func() {} }

func bundledStore(t *testing.T) *knowledge.Store {
	t.Helper()
	store := knowledge.NewStore(knowledge.BundledSource{}, knowledge.Options{})
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(store.Shutdown)
	return store
}

func failing(err error) *fakeGateway {
	return &fakeGateway{respond: func([]session.Message) (gateway.Completion, error) {
		return gateway.Completion{}, err
	}}
}

func answering(text string) *fakeGateway {
	return &fakeGateway{respond: func([]session.Message) (gateway.Completion, error) {
		return gateway.Completion{Text: text, Provider: "openai"}, nil
	}}
}

func TestSend_RemoteSuccess(t *testing.T) {
	gw := answering("Sam built TORI, a study companion.")
	cb := New(Options{Gateway: gw, Knowledge: bundledStore(t)})
	defer cb.Close()

	reply := cb.Send(context.Background(), "What projects have you built?")

	assert.Equal(t, "Sam built TORI, a study companion.", reply.Text)
	assert.Equal(t, SourceRemote, reply.Source)
	assert.Equal(t, "openai", reply.Provider)
	assert.Equal(t, intent.Projects, reply.Intent)
	assert.Len(t, reply.SuggestedFollowUps, 3)

	require.Len(t, gw.calls, 1)
	require.Len(t, gw.calls[0], 1)
	assert.Equal(t, session.RoleUser, gw.calls[0][0].Role)
}

func TestSend_FallsBackOnGatewayError(t *testing.T) {
	cb := New(Options{Gateway: failing(errors.New("connection refused")), Knowledge: bundledStore(t)})
	defer cb.Close()

	reply := cb.Send(context.Background(), "What are your skills?")

	assert.Equal(t, SourceLocal, reply.Source)
	assert.NotEmpty(t, strings.TrimSpace(reply.Text))
	assert.Equal(t, intent.Skills, reply.Intent)
	assert.Contains(t, reply.Text, "Languages")
}

func TestSend_DiscardsDenyListedReply(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"technical difficulties", "I'm experiencing technical difficulties right now. Please try again later."},
		{"placeholder", gateway.EmptyCompletionText},
		{"case insensitive", "SERVICE UNAVAILABLE"},
		{"blank", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := New(Options{Gateway: answering(tt.text), Knowledge: bundledStore(t)})
			defer cb.Close()

			reply := cb.Send(context.Background(), "How can I contact you?")
			assert.Equal(t, SourceLocal, reply.Source)
			assert.NotEqual(t, tt.text, reply.Text)
			assert.Equal(t, intent.Contact, reply.Intent)
		})
	}
}

func TestSend_CustomDenyList(t *testing.T) {
	cb := New(Options{
		Gateway:   answering("As an AI model I cannot help."),
		Knowledge: bundledStore(t),
		DenyList:  []string{"  As an AI model "},
	})
	defer cb.Close()

	reply := cb.Send(context.Background(), "hello")
	assert.Equal(t, SourceLocal, reply.Source)
	assert.Len(t, reply.SuggestedFollowUps, 4)
}

func TestSend_DegradedStatusFallsBack(t *testing.T) {
	gw := &fakeGateway{respond: func([]session.Message) (gateway.Completion, error) {
		return gateway.Completion{Text: "Here is a perfectly normal sentence.", Degraded: true}, nil
	}}
	cb := New(Options{Gateway: gw, Knowledge: bundledStore(t)})
	defer cb.Close()

	reply := cb.Send(context.Background(), "Where did you study?")
	assert.Equal(t, SourceLocal, reply.Source)
	assert.Equal(t, intent.Education, reply.Intent)
}

func TestSend_ProjectDetailWithoutGateway(t *testing.T) {
	cb := New(Options{Knowledge: bundledStore(t)})
	defer cb.Close()

	reply := cb.Send(context.Background(), "Tell me about TORI")
	assert.Equal(t, SourceLocal, reply.Source)
	assert.Equal(t, intent.Projects, reply.Intent)
	assert.True(t, strings.HasPrefix(reply.Text, "**TORI**"), reply.Text)
}

func TestSend_LoadingWhenNoSnapshot(t *testing.T) {
	cb := New(Options{Gateway: failing(errors.New("timeout")), Knowledge: staticKnowledge{}})
	defer cb.Close()

	reply := cb.Send(context.Background(), "What are your skills?")
	assert.Equal(t, SourceLocal, reply.Source)
	assert.Equal(t, composer.LoadingText, reply.Text)
}

func TestSend_NoKnowledgeAtAll(t *testing.T) {
	cb := New(Options{})
	defer cb.Close()

	reply := cb.Send(context.Background(), "anything")
	assert.NotEmpty(t, reply.Text)
	assert.Equal(t, intent.General, reply.Intent)
}

func TestHistory_Ordering(t *testing.T) {
	gw := &fakeGateway{}
	gw.respond = func(history []session.Message) (gateway.Completion, error) {
		return gateway.Completion{Text: "reply to " + history[len(history)-1].Content}, nil
	}
	cb := New(Options{Gateway: gw})
	defer cb.Close()

	cb.Send(context.Background(), "first")
	cb.Send(context.Background(), "second")

	history := cb.History()
	require.Len(t, history, 4)
	assert.Equal(t, []string{"first", "reply to first", "second", "reply to second"},
		[]string{history[0].Content, history[1].Content, history[2].Content, history[3].Content})
	assert.Equal(t, session.RoleUser, history[2].Role)
	assert.Equal(t, session.RoleAssistant, history[3].Role)

	// The second call carries the full conversation up to and including the new turn.
	require.Len(t, gw.calls, 2)
	assert.Len(t, gw.calls[1], 3)

	// History returns a copy.
	history[0].Content = "mutated"
	assert.Equal(t, "first", cb.History()[0].Content)
}

func TestNewSessionAndResume(t *testing.T) {
	rec := &fakeRecorder{}
	cb := New(Options{Gateway: answering("ok"), Recorder: rec})

	firstID := cb.SessionID()
	cb.Send(context.Background(), "hello")

	secondID := cb.NewSession()
	assert.NotEqual(t, firstID, secondID)
	assert.Empty(t, cb.History())

	cb.Send(context.Background(), "again")
	cb.Close()

	rec.mu.Lock()
	first := rec.saved[firstID]
	second := rec.saved[secondID]
	rec.mu.Unlock()
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Len(t, first.Messages, 2)
	assert.Len(t, second.Messages, 2)

	other := New(Options{Gateway: answering("ok")})
	defer other.Close()
	other.Resume(first)
	assert.Equal(t, firstID, other.SessionID())
	assert.Len(t, other.History(), 2)

	other.Send(context.Background(), "follow up")
	assert.Len(t, other.History(), 4)
	// Resume takes a copy.
	assert.Len(t, first.Messages, 2)
}

func TestRecorder_KeepsNewestTurn(t *testing.T) {
	rec := &fakeRecorder{}
	cb := New(Options{Gateway: answering("ok"), Recorder: rec})
	id := cb.SessionID()

	for i := 0; i < 5; i++ {
		cb.Send(context.Background(), "turn")
	}
	cb.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotNil(t, rec.saved[id])
	assert.Len(t, rec.saved[id].Messages, 10)
}

func TestClassifierFollowsSnapshot(t *testing.T) {
	store := knowledge.NewStore(knowledge.SourceFunc(func(context.Context) (knowledge.Tables, error) {
		tables := knowledge.Tables{
			Personal: knowledge.PersonalInfo{Name: "Test"},
			Projects: []knowledge.Project{{ID: "zephyr", Title: "Zephyr"}},
		}
		return tables, nil
	}), knowledge.Options{})
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Shutdown()

	cb := New(Options{Knowledge: store})
	defer cb.Close()

	reply := cb.Send(context.Background(), "what is zephyr")
	assert.Equal(t, intent.Projects, reply.Intent)
	assert.True(t, strings.HasPrefix(reply.Text, "**Zephyr**"), reply.Text)
}

// swappingKnowledge publishes next on the first Snapshot call after arm.
type swappingKnowledge struct {
	mu       sync.Mutex
	snap     *knowledge.Snapshot
	next     *knowledge.Snapshot
	armed    bool
	listener knowledge.Listener
	onSub    func(k *swappingKnowledge)
}

func (k *swappingKnowledge) Snapshot() *knowledge.Snapshot {
	k.mu.Lock()
	if !k.armed {
		defer k.mu.Unlock()
		return k.snap
	}
	k.armed = false
	k.snap = k.next
	listener := k.listener
	snap := k.snap
	k.mu.Unlock()

	if listener != nil {
		listener(snap)
	}
	return snap
}

func (k *swappingKnowledge) Subscribe(fn knowledge.Listener) func() {
	k.mu.Lock()
	k.listener = fn
	onSub := k.onSub
	k.mu.Unlock()
	if onSub != nil {
		onSub(k)
	}
	return func() {}
}

func snapshotWithProject(id, title string) *knowledge.Snapshot {
	return &knowledge.Snapshot{Tables: knowledge.Tables{
		Personal: knowledge.PersonalInfo{Name: "Test", Summary: "Builds things."},
		Projects: []knowledge.Project{{ID: id, Title: title, Description: title + " does things."}},
	}}
}

func TestNew_SeesSnapshotPublishedWhileSubscribing(t *testing.T) {
	k := &swappingKnowledge{}
	// Published after registration but without a delivery reaching the listener.
	k.onSub = func(k *swappingKnowledge) {
		k.mu.Lock()
		k.snap = snapshotWithProject("zephyr", "Zephyr")
		k.mu.Unlock()
	}

	cb := New(Options{Knowledge: k})
	defer cb.Close()

	reply := cb.Send(context.Background(), "what is zephyr")
	assert.Equal(t, intent.Projects, reply.Intent)
	assert.True(t, strings.HasPrefix(reply.Text, "**Zephyr**"), reply.Text)
}

func TestClassifierRebuildUsesCurrentSnapshot(t *testing.T) {
	k := &swappingKnowledge{snap: snapshotWithProject("zephyr", "Zephyr")}
	cb := New(Options{Knowledge: k})
	defer cb.Close()

	// A late delivery of an older snapshot must not win over the current one.
	k.listener(snapshotWithProject("old", "Old"))

	reply := cb.Send(context.Background(), "what is zephyr")
	assert.Equal(t, intent.Projects, reply.Intent)
}

func TestSend_IntentMatchesComposedReply(t *testing.T) {
	k := &swappingKnowledge{snap: snapshotWithProject("alpha", "Alpha")}
	cb := New(Options{Knowledge: k})
	defer cb.Close()

	// The snapshot gains "zephyr" while the turn is being answered.
	k.mu.Lock()
	k.next = snapshotWithProject("zephyr", "Zephyr")
	k.armed = true
	k.mu.Unlock()

	reply := cb.Send(context.Background(), "what is zephyr")
	assert.Equal(t, SourceLocal, reply.Source)
	assert.Equal(t, intent.General, reply.Intent)
	assert.False(t, strings.HasPrefix(reply.Text, "**Zephyr**"), reply.Text)
	assert.Contains(t, reply.Text, "Builds things.")
}
