package chatbot

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runREPL(t *testing.T, cb *ChatBot, input string) string {
	t.Helper()
	var out bytes.Buffer
	repl := NewREPL(cb, strings.NewReader(input), &out, true)
	require.NoError(t, repl.Run(context.Background()))
	return out.String()
}

func TestREPL_Conversation(t *testing.T) {
	cb := New(Options{Knowledge: bundledStore(t)})
	defer cb.Close()

	out := runREPL(t, cb, "hello\n\n/suggest\n/history\n/quit\nnever sent\n")

	assert.Contains(t, out, "Session: "+cb.SessionID())
	assert.Contains(t, out, "Bot:")
	assert.Contains(t, out, "(answered from local knowledge)")
	assert.Contains(t, out, "You could ask:")
	assert.Contains(t, out, "What projects have you built?")
	assert.Contains(t, out, "user: hello")
	assert.Contains(t, out, "Goodbye!")
	assert.Len(t, cb.History(), 2)
}

func TestREPL_Commands(t *testing.T) {
	cb := New(Options{Gateway: answering("remote answer")})
	defer cb.Close()
	firstID := cb.SessionID()

	out := runREPL(t, cb, "/help\n/history\n/suggest\n/bogus\nhi\n/new-session\n")

	assert.Contains(t, out, "/new-session")
	assert.Contains(t, out, "No messages yet.")
	assert.Contains(t, out, "No suggestions yet.")
	assert.Contains(t, out, "unknown command: /bogus")
	assert.Contains(t, out, "remote answer")
	assert.NotContains(t, out, "answered from")
	assert.Contains(t, out, "Started new session:")
	assert.NotEqual(t, firstID, cb.SessionID())
	assert.Empty(t, cb.History())
}

func TestREPL_EOFEndsSession(t *testing.T) {
	cb := New(Options{})
	defer cb.Close()

	out := runREPL(t, cb, "")
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"))
}
