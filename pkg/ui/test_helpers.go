package ui

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"

	"folio/pkg/chat"
	"folio/pkg/ui/components/testutils"
)

const testWelcome = "Welcome! Ask me about my projects."

var testSuggestions = []string{"What do you build?", "Where are you based?"}

type stubTransport func(ctx context.Context, question string, onPartial func(string)) (string, error)

func (f stubTransport) Predict(ctx context.Context, question string, onPartial func(string)) (string, error) {
	return f(ctx, question, onPartial)
}

func replyWith(answer string) stubTransport {
	return func(context.Context, string, func(string)) (string, error) {
		return answer, nil
	}
}

func newTestSession(tr chat.Transport) *chat.Session {
	return chat.NewSession(tr,
		chat.WithWelcomeMessage(testWelcome),
		chat.WithLogger(slog.New(slog.DiscardHandler)),
	)
}

// newTestModel returns a sized model and the buffer standing in for the
// terminal clipboard channel.
func newTestModel(t *testing.T, tr chat.Transport) (Model, *bytes.Buffer) {
	t.Helper()
	clip := &bytes.Buffer{}
	m := NewModel(newTestSession(tr), Options{
		BotName:     "Folio",
		BotSubtitle: "Ask about my work",
		Suggestions: testSuggestions,
		Clipboard:   clip,
		Logger:      slog.New(slog.DiscardHandler),
	})
	m, _ = update(t, m, testutils.NewWindowSizeMsg(80, 30))
	return m, clip
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	next, ok := updated.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", updated)
	}
	return next, cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, key := range testutils.TypeText(text) {
		m, _ = update(t, m, key)
	}
	return m
}

// pumpTurn feeds the running turn's events into the model until the
// channel closes.
func pumpTurn(t *testing.T, m Model) Model {
	t.Helper()
	for m.events != nil {
		m, _ = update(t, m, waitForEvent(m.events)())
	}
	return m
}

func viewText(m Model) string {
	return ansi.Strip(m.View().Content)
}
