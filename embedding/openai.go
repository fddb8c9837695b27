package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/groxaxo/chatmode/types"
)

// OpenAIConfig configures the OpenAI-compatible embedding provider.
type OpenAIConfig struct {
	APIKey     string        `json:"api_key" yaml:"api_key"`
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	Model      string        `json:"model,omitempty" yaml:"model,omitempty"`
	Dimensions int           `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultOpenAIConfig returns the default embedding configuration.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
	}
}

// OpenAIProvider implements Provider against an OpenAI-compatible endpoint.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAIProvider creates a new OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *OpenAIProvider) Name() string    { return "openai" }
func (p *OpenAIProvider) Dimensions() int { return p.cfg.Dimensions }

type openAIEmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed generates embeddings for the given inputs.
func (p *OpenAIProvider) Embed(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body, err := json.Marshal(openAIEmbeddingRequest{Input: req.Input, Model: model})
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailure, "encode request").WithCause(err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/embeddings"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailure, "build request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailure, "embedding request failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewError(types.ErrEmbeddingFailure,
			fmt.Sprintf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))).
			WithRetryable(resp.StatusCode >= 500)
	}

	var wire openAIEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, types.NewError(types.ErrEmbeddingFailure, "decode response").WithCause(err)
	}

	out := &Response{
		Provider:  p.Name(),
		Model:     wire.Model,
		CreatedAt: time.Now(),
	}
	out.Usage.PromptTokens = wire.Usage.PromptTokens
	out.Usage.TotalTokens = wire.Usage.TotalTokens
	for _, d := range wire.Data {
		out.Embeddings = append(out.Embeddings, Data{Index: d.Index, Embedding: d.Embedding})
	}
	return out, nil
}

// EmbedQuery embeds a single query string.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	resp, err := p.Embed(ctx, &Request{Input: []string{query}})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, types.NewError(types.ErrEmbeddingFailure, "no embeddings returned")
	}
	return resp.Embeddings[0].Embedding, nil
}
