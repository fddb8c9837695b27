package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/groxaxo/chatmode/llm"
	"github.com/groxaxo/chatmode/types"
)

// Config holds the orchestrator's tunables.
type Config struct {
	// TurnDelay is the pause between consecutive agent turns.
	TurnDelay time.Duration `yaml:"turn_delay" json:"turn_delay"`

	// IdleInterval is how long the loop sleeps when no agent is eligible
	// for a turn. An all-paused session idles instead of terminating.
	IdleInterval time.Duration `yaml:"idle_interval" json:"idle_interval"`

	// HistoryWindow is the number of most recent messages included in each
	// prompt. Agents may override it per profile.
	HistoryWindow int `yaml:"history_window" json:"history_window"`

	// HistoryCeiling is the message count above which the oldest half of
	// the history is summarized before prompt assembly.
	HistoryCeiling int `yaml:"history_ceiling" json:"history_ceiling"`

	// DefaultTopK is the memory retrieval count used when an agent has no
	// per-profile override.
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`

	// StatusWindow bounds the recent-message window returned by Status.
	StatusWindow int `yaml:"status_window" json:"status_window"`

	// MaxPersonaBytes bounds an agent's persona prompt size.
	MaxPersonaBytes int `yaml:"max_persona_bytes" json:"max_persona_bytes"`

	// ModeratorProvider and ModeratorModel configure the synthetic
	// moderator injected when a session starts with fewer than two agents.
	ModeratorProvider string `yaml:"moderator_provider" json:"moderator_provider"`
	ModeratorModel    string `yaml:"moderator_model" json:"moderator_model"`
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		TurnDelay:         2 * time.Second,
		IdleInterval:      1 * time.Second,
		HistoryWindow:     12,
		HistoryCeiling:    40,
		DefaultTopK:       5,
		StatusWindow:      20,
		MaxPersonaBytes:   32 << 10,
		ModeratorProvider: "openai",
		ModeratorModel:    "gpt-4o-mini",
	}
}

// VoiceConfig holds an agent's speech synthesis settings.
type VoiceConfig struct {
	Enabled  bool    `yaml:"enabled" json:"enabled"`
	Provider string  `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model    string  `yaml:"model,omitempty" json:"model,omitempty"`
	Voice    string  `yaml:"voice,omitempty" json:"voice,omitempty"`
	Speed    float64 `yaml:"speed,omitempty" json:"speed,omitempty"`
	Format   string  `yaml:"format,omitempty" json:"format,omitempty"`
}

// AgentConfig is the validated runtime profile of one participating agent.
// Required fields are checked at session start, not at first use; optional
// fields fall back to the orchestrator defaults.
type AgentConfig struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`

	// Provider selection.
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// Per-agent overrides. Zero means "use the orchestrator default".
	TopK          int `json:"top_k,omitempty"`
	ContextWindow int `json:"context_window,omitempty"`
	RatePerMinute int `json:"rate_per_minute,omitempty"` // 0 = unlimited

	// Permission set.
	Tools         []string `json:"tools,omitempty"`
	BlockedTopics []string `json:"blocked_topics,omitempty"`

	Voice VoiceConfig `json:"voice"`
}

// Validate checks the profile against the orchestrator limits.
func (c *AgentConfig) Validate(maxPersonaBytes int) error {
	if c.ID == "" {
		return types.NewError(types.ErrInvalidConfiguration, "agent id is required")
	}
	if c.Name == "" {
		return types.NewError(types.ErrInvalidConfiguration,
			fmt.Sprintf("agent %s: name is required", c.ID))
	}
	if c.Model == "" {
		return types.NewError(types.ErrInvalidConfiguration,
			fmt.Sprintf("agent %s: model is required", c.ID))
	}
	if maxPersonaBytes > 0 && len(c.SystemPrompt) > maxPersonaBytes {
		return types.NewError(types.ErrInvalidConfiguration,
			fmt.Sprintf("agent %s: persona exceeds %d bytes", c.ID, maxPersonaBytes))
	}
	if c.Voice.Speed != 0 && (c.Voice.Speed < 0.25 || c.Voice.Speed > 4.0) {
		return types.NewError(types.ErrInvalidConfiguration,
			fmt.Sprintf("agent %s: voice speed must be within 0.25-4.0", c.ID))
	}
	return nil
}

// ProviderFactory resolves a provider name to a chat backend.
type ProviderFactory interface {
	Provider(name string) (llm.Provider, error)
}

// ProfileSource resolves agent identifiers to validated runtime profiles.
// Disabled or unknown agents are simply absent from the result.
type ProfileSource interface {
	ResolveAgents(ctx context.Context, ids []string) ([]AgentConfig, error)
}
