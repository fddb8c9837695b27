package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/groxaxo/chatmode/speech"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
)

// AudioRef references the synthesized audio rendition of a message. When
// synthesis failed, FailReason is set instead of the artifact fields.
type AudioRef struct {
	Key        string `json:"key,omitempty"`
	URL        string `json:"url,omitempty"`
	Format     string `json:"format,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
	FailReason string `json:"fail_reason,omitempty"`
}

// Message is one appended conversation turn. Messages are immutable once
// appended, with the single exception of the audio reference, which is
// attached asynchronously when synthesis completes.
type Message struct {
	ID         string        `json:"id"`
	AgentID    string        `json:"agent_id,omitempty"`
	Sender     string        `json:"sender"` // persona name or "admin"
	Content    string        `json:"content"`
	TokenCount int           `json:"token_count,omitempty"`
	Latency    time.Duration `json:"latency,omitempty"`
	Audio      *AudioRef     `json:"audio,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Session is one conversation instance. History is append-only during a
// run; insertion order is chronological order and is never reordered.
type Session struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"created_at"`

	mu      sync.RWMutex
	status  Status
	history []Message
}

// NewSession creates a running session for the given topic.
func NewSession(topic string) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Topic:     topic,
		CreatedAt: time.Now(),
		status:    StatusRunning,
	}
}

// Status returns the session's lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus updates the session's lifecycle state.
func (s *Session) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Append adds a message to the history, assigning its ID and timestamp when
// unset, and returns the stored message.
func (s *Session) Append(m Message) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.history = append(s.history, m)
	return m
}

// SetAudio attaches an audio artifact (or a synthesis failure reason) to an
// already-appended message.
func (s *Session) SetAudio(messageID string, artifact *speech.Artifact, failReason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.history {
		if s.history[i].ID != messageID {
			continue
		}
		if artifact != nil {
			s.history[i].Audio = &AudioRef{
				Key:      artifact.Key,
				URL:      artifact.URL,
				Format:   artifact.Format,
				MimeType: artifact.MimeType,
				Cached:   artifact.Cached,
			}
		} else {
			s.history[i].Audio = &AudioRef{FailReason: failReason}
		}
		return
	}
}

// History returns a copy of the full history.
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Recent returns a copy of the last n messages.
func (s *Session) Recent(n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.history) {
		n = len(s.history)
	}
	out := make([]Message, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}

// Len returns the history length.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Compact replaces the oldest n messages with the given summary message,
// preserving the remainder's order. Used by history summarization only.
func (s *Session) Compact(n int, summary Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.history) {
		return
	}
	if summary.ID == "" {
		summary.ID = uuid.New().String()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = s.history[0].CreatedAt
	}
	rest := s.history[n:]
	compacted := make([]Message, 0, len(rest)+1)
	compacted = append(compacted, summary)
	compacted = append(compacted, rest...)
	s.history = compacted
}
