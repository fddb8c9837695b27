package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/embedding"
)

// Index is the memory index used by the conversation orchestrator. It embeds
// text on write and on query, delegating storage and similarity search to a
// VectorStore.
type Index struct {
	embedder embedding.Provider
	store    VectorStore
	logger   *zap.Logger
}

// NewIndex creates a memory index over the given embedder and store.
func NewIndex(embedder embedding.Provider, store VectorStore, logger *zap.Logger) *Index {
	return &Index{
		embedder: embedder,
		store:    store,
		logger:   logger.With(zap.String("component", "memory_index")),
	}
}

// Add embeds text and stores it with the given metadata. The metadata must
// carry at least the session and agent identifiers.
func (i *Index) Add(ctx context.Context, text string, meta Metadata) error {
	vec, err := i.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return err
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	return i.store.Add(ctx, []Entry{{
		ID:        uuid.New().String(),
		Text:      text,
		Embedding: vec,
		Metadata:  meta,
	}})
}

// Query embeds the query text and returns the k nearest stored entries whose
// metadata matches the filter.
func (i *Index) Query(ctx context.Context, text string, k int, filter Filter) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := i.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return i.store.Search(ctx, vec, k, filter)
}

// Purge deletes all entries matching the filter and returns the count
// removed.
func (i *Index) Purge(ctx context.Context, filter Filter) (int, error) {
	return i.store.Purge(ctx, filter)
}

// Count returns the number of stored entries.
func (i *Index) Count(ctx context.Context) (int, error) {
	return i.store.Count(ctx)
}
