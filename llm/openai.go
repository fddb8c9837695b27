package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/groxaxo/chatmode/types"
)

// OpenAIConfig configures an OpenAI-compatible chat provider. Most hosted
// backends (OpenAI, DeepSeek, Qwen via DashScope, local vLLM/Ollama gateways)
// speak this wire format.
type OpenAIConfig struct {
	Name    string        `json:"name" yaml:"name"`
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultOpenAIConfig returns the default OpenAI provider configuration.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Name:    "openai",
		BaseURL: "https://api.openai.com/v1",
		Timeout: 60 * time.Second,
	}
}

// OpenAIProvider implements Provider against an OpenAI-compatible endpoint.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI-compatible provider instance.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("provider", cfg.Name)),
	}
}

func (p *OpenAIProvider) Name() string { return p.cfg.Name }

// OpenAI wire types.
type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	Name       string           `json:"name,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	Arguments   json.RawMessage `json:"arguments,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  interface{}     `json:"tool_choice,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
	TopP        float32         `json:"top_p,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	FinishReason string        `json:"finish_reason"`
	Message      openAIMessage `json:"message"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage,omitempty"`
	Created int64          `json:"created,omitempty"`
}

type openAIErrorResp struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Completion performs a synchronous chat completion call.
func (p *OpenAIProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(p.toWire(req))
	if err != nil {
		return nil, types.NewError(types.ErrProviderFailure, "encode request").WithCause(err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrProviderFailure, "build request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrProviderFailure, "chat completion request failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	latency := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		msg := readErrMsg(resp.Body)
		p.logger.Warn("chat completion returned non-200",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, types.NewError(types.ErrProviderFailure,
			fmt.Sprintf("upstream status %d: %s", resp.StatusCode, msg)).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests)
	}

	var wire openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, types.NewError(types.ErrProviderFailure, "decode response").WithCause(err)
	}

	return p.fromWire(&wire, latency), nil
}

// HealthCheck probes the models endpoint.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("health check failed: status=%d", resp.StatusCode)
	}
	return &HealthStatus{Healthy: true, Latency: latency}, nil
}

func (p *OpenAIProvider) toWire(req *ChatRequest) *openAIRequest {
	out := &openAIRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}

	out.Messages = make([]openAIMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		wm := openAIMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, openAIToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: openAIFunction{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out.Messages = append(out.Messages, wm)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	if req.ToolChoice != "" && len(out.Tools) > 0 {
		out.ToolChoice = req.ToolChoice
	}

	return out
}

func (p *OpenAIProvider) fromWire(wire *openAIResponse, latency time.Duration) *ChatResponse {
	out := &ChatResponse{
		ID:       wire.ID,
		Provider: p.cfg.Name,
		Model:    wire.Model,
		Latency:  latency,
	}
	if wire.Created > 0 {
		out.CreatedAt = time.Unix(wire.Created, 0)
	}
	if wire.Usage != nil {
		out.Usage = ChatUsage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		}
	}
	for _, c := range wire.Choices {
		msg := types.Message{
			Role:       types.Role(c.Message.Role),
			Content:    c.Message.Content,
			Name:       c.Message.Name,
			ToolCallID: c.Message.ToolCallID,
		}
		for _, tc := range c.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		out.Choices = append(out.Choices, ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      msg,
		})
	}
	return out
}

func readErrMsg(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var wire openAIErrorResp
	if err := json.Unmarshal(raw, &wire); err == nil && wire.Error.Message != "" {
		return wire.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
