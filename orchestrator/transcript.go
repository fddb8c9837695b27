package orchestrator

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/groxaxo/chatmode/types"
)

// TranscriptFormat selects the export encoding.
type TranscriptFormat string

const (
	FormatMarkdown TranscriptFormat = "markdown"
	FormatCSV      TranscriptFormat = "csv"
	FormatJSON     TranscriptFormat = "json"
	FormatText     TranscriptFormat = "txt"
)

// ParseTranscriptFormat maps a request parameter to a format, defaulting to
// markdown for the empty string.
func ParseTranscriptFormat(s string) (TranscriptFormat, error) {
	switch strings.ToLower(s) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "txt", "text", "plain":
		return FormatText, nil
	}
	return "", types.NewError(types.ErrInvalidRequest, fmt.Sprintf("unknown transcript format %q", s))
}

// MimeType returns the Content-Type for the format.
func (f TranscriptFormat) MimeType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "text/markdown; charset=utf-8"
	}
}

// Transcript renders the active session's full history in the requested
// format.
func (o *Orchestrator) Transcript(format TranscriptFormat) ([]byte, error) {
	o.mu.Lock()
	session := o.session
	o.mu.Unlock()

	if session == nil {
		return nil, types.NewError(types.ErrNoActiveSession, "no active session")
	}
	return renderTranscript(session, format)
}

func renderTranscript(session *Session, format TranscriptFormat) ([]byte, error) {
	history := session.History()

	switch format {
	case FormatMarkdown:
		return renderMarkdown(session, history), nil
	case FormatCSV:
		return renderCSV(history)
	case FormatJSON:
		return renderJSON(session, history)
	case FormatText:
		return renderText(history), nil
	}
	return nil, types.NewError(types.ErrInvalidRequest, fmt.Sprintf("unknown transcript format %q", format))
}

func renderMarkdown(session *Session, history []Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", session.Topic)
	fmt.Fprintf(&b, "Session `%s`, started %s.\n\n", session.ID, session.CreatedAt.Format(time.RFC3339))
	for _, m := range history {
		fmt.Fprintf(&b, "**%s** (%s):\n\n%s\n\n", m.Sender, m.CreatedAt.Format("15:04:05"), m.Content)
	}
	return b.Bytes()
}

func renderCSV(history []Message) ([]byte, error) {
	var b bytes.Buffer
	w := csv.NewWriter(&b)
	if err := w.Write([]string{"timestamp", "sender", "agent_id", "content", "tokens"}); err != nil {
		return nil, err
	}
	for _, m := range history {
		record := []string{
			m.CreatedAt.Format(time.RFC3339),
			m.Sender,
			m.AgentID,
			m.Content,
			strconv.Itoa(m.TokenCount),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func renderJSON(session *Session, history []Message) ([]byte, error) {
	doc := struct {
		SessionID string    `json:"session_id"`
		Topic     string    `json:"topic"`
		CreatedAt time.Time `json:"created_at"`
		Messages  []Message `json:"messages"`
	}{
		SessionID: session.ID,
		Topic:     session.Topic,
		CreatedAt: session.CreatedAt,
		Messages:  history,
	}
	return json.MarshalIndent(doc, "", "  ")
}

func renderText(history []Message) []byte {
	var b bytes.Buffer
	for _, m := range history {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), m.Sender, m.Content)
	}
	return b.Bytes()
}
