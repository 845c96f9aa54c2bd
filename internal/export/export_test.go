// ABOUTME: Tests for transcript export in markdown and HTML formats.

package export

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentchat/internal/store"
)

func testConversation() *store.Conversation {
	base := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return &store.Conversation{
		ID:    "conv-1",
		Title: "Quarterly numbers",
		Messages: []store.Message{
			{ID: "m1", Role: store.RoleUser, Content: "Summarize **Q1**", Timestamp: base},
			{ID: "m2", Role: store.RoleAssistant, AgentID: "Researcher", Content: "Revenue grew 12%.", Timestamp: base.Add(time.Minute)},
			{ID: "m3", Role: store.RoleSystem, Content: "Error: Researcher agent timeout: Response took too long", Timestamp: base.Add(2 * time.Minute)},
		},
	}
}

func newTestRenderer() *Renderer {
	r := NewRenderer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }
	return r
}

func TestMarkdown(t *testing.T) {
	out := string(newTestRenderer().Markdown(testConversation()))

	assert.True(t, strings.HasPrefix(out, "# Quarterly numbers\n"))
	assert.Contains(t, out, "## You — 2026-03-14T09:30:00Z")
	assert.Contains(t, out, "Summarize **Q1**")
	assert.Contains(t, out, "## Researcher — 2026-03-14T09:31:00Z")
	assert.Contains(t, out, "## System — 2026-03-14T09:32:00Z")
	assert.Contains(t, out, "Exported 2026-03-14T10:00:00Z")
}

func TestHTML(t *testing.T) {
	raw, err := newTestRenderer().HTML(testConversation())
	require.NoError(t, err)
	out := string(raw)

	assert.Contains(t, out, "<title>Quarterly numbers</title>")
	// Markdown in the body was converted, not escaped.
	assert.Contains(t, out, "<strong>Q1</strong>")
	assert.Contains(t, out, `class="message user"`)
	assert.Contains(t, out, `class="message assistant"`)
	assert.Contains(t, out, `class="message system"`)
	assert.Contains(t, out, "Researcher")
}

func TestHTML_EscapesTitle(t *testing.T) {
	conv := testConversation()
	conv.Title = `<script>alert("x")</script>`
	raw, err := newTestRenderer().HTML(conv)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "<script>alert")
}

func TestSpeakerFallbacks(t *testing.T) {
	assert.Equal(t, "Assistant", speaker(store.Message{Role: store.RoleAssistant}))
	assert.Equal(t, "You", speaker(store.Message{Role: store.RoleUser}))
}
