package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ziadkadry99/cube-pilot/internal/conversation"
)

// TranscriptReport renders a session transcript to a standalone HTML file.
// Message content is treated as markdown so query JSON blocks and result
// tables render readably.
type TranscriptReport struct {
	SessionID string
	Title     string
	Messages  []conversation.StoredMessage
}

type transcriptEntry struct {
	Role         string
	ResponseType string
	Time         string
	Content      template.HTML
}

type transcriptData struct {
	Title       string
	SessionID   string
	GeneratedAt string
	Entries     []transcriptEntry
}

// WriteHTML renders the transcript under dir and returns the file path.
func (r *TranscriptReport) WriteHTML(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
			),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)

	data := transcriptData{
		Title:       r.Title,
		SessionID:   r.SessionID,
		GeneratedAt: time.Now().Format(time.RFC1123),
	}
	if data.Title == "" {
		data.Title = "Session transcript"
	}

	for _, msg := range r.Messages {
		var buf bytes.Buffer
		if err := md.Convert([]byte(msg.Content), &buf); err != nil {
			return "", fmt.Errorf("rendering message: %w", err)
		}
		data.Entries = append(data.Entries, transcriptEntry{
			Role:         msg.Role,
			ResponseType: msg.ResponseType,
			Time:         msg.CreatedAt.Format("15:04:05"),
			Content:      template.HTML(buf.String()),
		})
	}

	tmpl, err := template.New("transcript").Parse(transcriptTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing transcript template: %w", err)
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("executing transcript template: %w", err)
	}

	name := fmt.Sprintf("transcript_%s_%s.html",
		sanitizeID(r.SessionID), time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing transcript: %w", err)
	}
	return path, nil
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, id)
}

const transcriptTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; max-width: 860px; margin: 2rem auto; padding: 0 1rem; color: #24292f; }
header { border-bottom: 1px solid #d0d7de; padding-bottom: 0.75rem; margin-bottom: 1.5rem; }
header h1 { margin: 0 0 0.25rem; font-size: 1.4rem; }
header .meta { color: #57606a; font-size: 0.85rem; }
.msg { border: 1px solid #d0d7de; border-radius: 6px; margin-bottom: 1rem; }
.msg .head { display: flex; justify-content: space-between; padding: 0.4rem 0.8rem; font-size: 0.8rem; color: #57606a; background: #f6f8fa; border-bottom: 1px solid #d0d7de; border-radius: 6px 6px 0 0; }
.msg .body { padding: 0.6rem 0.8rem; }
.msg.user .head { background: #ddf4ff; }
.msg .body pre { background: #f6f8fa; padding: 0.6rem; border-radius: 6px; overflow-x: auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: 0.3rem 0.6rem; }
</style>
</head>
<body>
<header>
<h1>{{.Title}}</h1>
<div class="meta">Session {{.SessionID}} · generated {{.GeneratedAt}}</div>
</header>
{{range .Entries}}
<div class="msg {{.Role}}">
<div class="head"><span>{{.Role}}{{if .ResponseType}} · {{.ResponseType}}{{end}}</span><span>{{.Time}}</span></div>
<div class="body">{{.Content}}</div>
</div>
{{end}}
</body>
</html>
`
