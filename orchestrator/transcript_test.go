package orchestrator

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groxaxo/chatmode/types"
)

func transcriptSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession("test topic")
	s.Append(Message{AgentID: "a", Sender: "Ada", Content: "Opening statement", TokenCount: 5})
	s.Append(Message{AgentID: "b", Sender: "Ben", Content: "A reply, with commas", TokenCount: 7})
	s.Append(Message{Sender: "admin", Content: "Stay on topic"})
	return s
}

func TestParseTranscriptFormat(t *testing.T) {
	for in, want := range map[string]TranscriptFormat{
		"":         FormatMarkdown,
		"md":       FormatMarkdown,
		"markdown": FormatMarkdown,
		"CSV":      FormatCSV,
		"json":     FormatJSON,
		"txt":      FormatText,
		"plain":    FormatText,
	} {
		got, err := ParseTranscriptFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTranscriptFormat("pdf")
	assert.True(t, types.IsCode(err, types.ErrInvalidRequest))
}

func TestRenderMarkdown(t *testing.T) {
	out, err := renderTranscript(transcriptSession(t), FormatMarkdown)
	require.NoError(t, err)

	text := string(out)
	assert.True(t, strings.HasPrefix(text, "# test topic\n"))
	assert.Contains(t, text, "**Ada**")
	assert.Contains(t, text, "Opening statement")
	assert.Contains(t, text, "**admin**")
}

func TestRenderCSV(t *testing.T) {
	out, err := renderTranscript(transcriptSession(t), FormatCSV)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4) // header + 3 messages
	assert.Equal(t, []string{"timestamp", "sender", "agent_id", "content", "tokens"}, records[0])
	assert.Equal(t, "Ben", records[2][1])
	assert.Equal(t, "A reply, with commas", records[2][3])
	assert.Equal(t, "7", records[2][4])
}

func TestRenderJSON(t *testing.T) {
	session := transcriptSession(t)
	out, err := renderTranscript(session, FormatJSON)
	require.NoError(t, err)

	var doc struct {
		SessionID string    `json:"session_id"`
		Topic     string    `json:"topic"`
		Messages  []Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, session.ID, doc.SessionID)
	assert.Equal(t, "test topic", doc.Topic)
	require.Len(t, doc.Messages, 3)
	assert.Equal(t, "Ada", doc.Messages[0].Sender)
}

func TestRenderText(t *testing.T) {
	out, err := renderTranscript(transcriptSession(t), FormatText)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Ada: Opening statement")
	assert.Contains(t, lines[2], "admin: Stay on topic")
}

func TestTranscriptWithoutSession(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig(), stubProfiles{}, stubProviders{})
	_, err := o.Transcript(FormatMarkdown)
	assert.True(t, types.IsCode(err, types.ErrNoActiveSession))
}

func TestFormatMimeTypes(t *testing.T) {
	assert.Equal(t, "text/markdown; charset=utf-8", FormatMarkdown.MimeType())
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.MimeType())
	assert.Equal(t, "application/json; charset=utf-8", FormatJSON.MimeType())
	assert.Equal(t, "text/plain; charset=utf-8", FormatText.MimeType())
}
