// ABOUTME: Transcript export: conversation -> Markdown or standalone HTML.
// ABOUTME: Message bodies are treated as markdown and converted with goldmark.

package export

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/2389/agentchat/internal/store"
)

// Renderer converts conversations into downloadable transcripts.
type Renderer struct {
	logger *slog.Logger
	md     goldmark.Markdown
	now    func() time.Time
}

// NewRenderer creates a Renderer. A nil logger falls back to slog.Default.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		logger: logger.With("component", "export"),
		md:     goldmark.New(),
		now:    time.Now,
	}
}

// Markdown renders the transcript as a markdown document, one heading per
// turn with the speaker and timestamp.
func (r *Renderer) Markdown(conv *store.Conversation) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", conv.Title)
	fmt.Fprintf(&buf, "Exported %s\n", r.now().UTC().Format(time.RFC3339))
	for _, msg := range conv.Messages {
		fmt.Fprintf(&buf, "\n## %s — %s\n\n", speaker(msg), msg.Timestamp.UTC().Format(time.RFC3339))
		buf.WriteString(strings.TrimRight(msg.Content, "\n"))
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

type htmlMessage struct {
	Speaker string
	Role    string
	Stamp   string
	Body    template.HTML
}

type htmlPage struct {
	Title    string
	Exported string
	Messages []htmlMessage
}

// HTML renders the transcript as a standalone HTML page. Each message body
// goes through goldmark; a body that fails to convert is escaped verbatim
// rather than dropped.
func (r *Renderer) HTML(conv *store.Conversation) ([]byte, error) {
	page := htmlPage{
		Title:    conv.Title,
		Exported: r.now().UTC().Format(time.RFC3339),
	}
	for _, msg := range conv.Messages {
		var body bytes.Buffer
		if err := r.md.Convert([]byte(msg.Content), &body); err != nil {
			r.logger.Warn("markdown conversion failed", "message_id", msg.ID, "error", err)
			body.Reset()
			body.WriteString("<p>" + template.HTMLEscapeString(msg.Content) + "</p>")
		}
		page.Messages = append(page.Messages, htmlMessage{
			Speaker: speaker(msg),
			Role:    msg.Role,
			Stamp:   msg.Timestamp.UTC().Format(time.RFC3339),
			Body:    template.HTML(body.String()),
		})
	}

	var out bytes.Buffer
	if err := pageTemplate.Execute(&out, page); err != nil {
		return nil, fmt.Errorf("rendering transcript: %w", err)
	}
	return out.Bytes(), nil
}

// speaker maps a message to its display name: the agent for assistant
// turns, a fixed label otherwise.
func speaker(msg store.Message) string {
	switch msg.Role {
	case store.RoleAssistant:
		if msg.AgentID != "" {
			return msg.AgentID
		}
		return "Assistant"
	case store.RoleSystem:
		return "System"
	default:
		return "You"
	}
}

var pageTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; }
.message { margin: 1.5rem 0; padding: 0.75rem 1rem; border-radius: 0.5rem; }
.message.user { background: #eef2ff; }
.message.assistant { background: #f0fdf4; }
.message.system { background: #fef2f2; }
.meta { font-size: 0.8rem; color: #666; margin-bottom: 0.25rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">Exported {{.Exported}}</p>
{{range .Messages}}<div class="message {{.Role}}">
<div class="meta">{{.Speaker}} — {{.Stamp}}</div>
{{.Body}}</div>
{{end}}</body>
</html>
`))
