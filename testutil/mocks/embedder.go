package mocks

import (
	"context"
	"sync"

	"github.com/groxaxo/chatmode/embedding"
)

const embedderDims = 32

// Embedder is a deterministic mock embedding provider. Vectors are derived
// from byte histograms, so near-duplicate texts produce near-identical
// vectors, enough for similarity ordering in tests without a model.
type Embedder struct {
	mu    sync.Mutex
	err   error
	calls []string
}

// NewEmbedder creates a deterministic mock embedder.
func NewEmbedder() *Embedder {
	return &Embedder{}
}

// WithError makes every embed call fail with err.
func (m *Embedder) WithError(err error) *Embedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Embed implements embedding.Provider.
func (m *Embedder) Embed(ctx context.Context, req *embedding.Request) (*embedding.Response, error) {
	m.mu.Lock()
	err := m.err
	m.calls = append(m.calls, req.Input...)
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	resp := &embedding.Response{Provider: "mock", Model: "mock-embed"}
	for i, text := range req.Input {
		resp.Embeddings = append(resp.Embeddings, embedding.Data{
			Index:     i,
			Embedding: hashEmbed(text),
		})
	}
	return resp, nil
}

// EmbedQuery implements embedding.Provider.
func (m *Embedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	resp, err := m.Embed(ctx, &embedding.Request{Input: []string{query}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0].Embedding, nil
}

// Dimensions implements embedding.Provider.
func (m *Embedder) Dimensions() int { return embedderDims }

// Name implements embedding.Provider.
func (m *Embedder) Name() string { return "mock" }

// Calls returns the texts embedded so far.
func (m *Embedder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func hashEmbed(text string) []float64 {
	vec := make([]float64, embedderDims)
	for i := 0; i < len(text); i++ {
		vec[int(text[i])%embedderDims]++
	}
	return vec
}
