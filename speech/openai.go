package speech

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

// OpenAIConfig configures the OpenAI TTS provider.
type OpenAIConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"` // tts-1, tts-1-hd
	Voice   string        `json:"voice,omitempty" yaml:"voice,omitempty"` // alloy, echo, fable, onyx, nova, shimmer
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultOpenAIConfig returns the default OpenAI TTS configuration.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL: "https://api.openai.com/v1",
		Model:   "tts-1",
		Voice:   "alloy",
		Timeout: 60 * time.Second,
	}
}

// OpenAIProvider implements Provider against the OpenAI speech endpoint.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAIProvider creates a new OpenAI TTS provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "tts-1"
	}
	if cfg.Voice == "" {
		cfg.Voice = "alloy"
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type openAISpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize converts text to speech.
func (p *OpenAIProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	voice := req.Voice
	if voice == "" {
		voice = p.cfg.Voice
	}
	format := req.Format
	if format == "" {
		format = "mp3"
	}

	body, err := json.Marshal(openAISpeechRequest{
		Model:          model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: format,
		Speed:          req.Speed,
	})
	if err != nil {
		return nil, types.NewError(types.ErrSynthesisFailure, "encode request").WithCause(err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/audio/speech"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrSynthesisFailure, "build request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrSynthesisFailure, "speech request failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, types.NewError(types.ErrSynthesisFailure,
			fmt.Sprintf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))).
			WithRetryable(resp.StatusCode >= 500)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrSynthesisFailure, "read audio stream").WithCause(err)
	}

	return &SynthesizeResponse{
		Provider:  p.Name(),
		Model:     model,
		AudioData: audio,
		Format:    format,
		MimeType:  MimeTypeFor(format),
		CharCount: len(req.Text),
		CreatedAt: time.Now(),
	}, nil
}
