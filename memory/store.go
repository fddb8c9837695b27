// Package memory implements the long-term conversation memory index: embed,
// store, cosine-nearest-k query with metadata filters, and selective purge.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metadata tags a stored entry with its origin. Every entry written by the
// orchestrator carries the session and agent that produced it so that later
// retrieval can be scoped and purges can be selective.
type Metadata struct {
	SessionID string    `json:"session_id"`
	AgentID   string    `json:"agent_id"`
	Topic     string    `json:"topic,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Entry is one persisted (text, embedding, metadata) unit.
type Entry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding,omitempty"`
	Metadata  Metadata  `json:"metadata"`
}

// Filter selects entries by exact metadata match. Zero-value fields are
// ignored; an empty filter matches everything.
type Filter struct {
	SessionID string `json:"session_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty"`
}

// Matches reports whether the entry's metadata satisfies the filter.
func (f Filter) Matches(m Metadata) bool {
	if f.SessionID != "" && m.SessionID != f.SessionID {
		return false
	}
	if f.AgentID != "" && m.AgentID != f.AgentID {
		return false
	}
	return true
}

// SearchResult is one scored retrieval hit.
type SearchResult struct {
	Entry Entry   `json:"entry"`
	Score float64 `json:"score"`
}

// VectorStore is the storage backend for the memory index.
//
// Scoping guarantee: Search and Purge must never touch entries whose
// metadata does not match the supplied filter. Violating this is a
// data-leakage defect, not a performance issue.
type VectorStore interface {
	// Add stores entries with their embeddings.
	Add(ctx context.Context, entries []Entry) error

	// Search returns the k nearest entries by cosine similarity whose
	// metadata matches the filter.
	Search(ctx context.Context, queryEmbedding []float64, k int, filter Filter) ([]SearchResult, error)

	// Purge deletes all entries matching the filter and returns the count
	// removed.
	Purge(ctx context.Context, filter Filter) (int, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
}

// InMemoryStore is a mutex-guarded in-process VectorStore. It backs tests
// and single-node deployments; the VectorStore interface leaves room for a
// hosted vector database behind the same contract.
type InMemoryStore struct {
	entries []Entry
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewInMemoryStore creates an empty in-memory vector store.
func NewInMemoryStore(logger *zap.Logger) *InMemoryStore {
	return &InMemoryStore{
		entries: make([]Entry, 0),
		logger:  logger.With(zap.String("component", "memory_store")),
	}
}

// Add stores entries with their embeddings.
func (s *InMemoryStore) Add(ctx context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entries...)

	s.logger.Debug("entries added to memory store",
		zap.Int("count", len(entries)),
		zap.Int("total", len(s.entries)))
	return nil
}

// Search returns the top-k filtered entries by cosine similarity.
func (s *InMemoryStore) Search(ctx context.Context, queryEmbedding []float64, k int, filter Filter) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.Matches(e.Metadata) {
			continue
		}
		if e.Embedding == nil {
			continue
		}
		results = append(results, SearchResult{
			Entry: e,
			Score: cosineSimilarity(queryEmbedding, e.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Purge deletes all entries matching the filter.
func (s *InMemoryStore) Purge(ctx context.Context, filter Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if !filter.Matches(e.Metadata) {
			kept = append(kept, e)
		}
	}

	removed := len(s.entries) - len(kept)
	s.entries = kept

	s.logger.Info("memory entries purged",
		zap.Int("removed", removed),
		zap.Int("remaining", len(s.entries)),
		zap.String("session_id", filter.SessionID),
		zap.String("agent_id", filter.AgentID))
	return removed, nil
}

// Count returns the number of stored entries.
func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
