// Package store persists agent profiles, admin users, and the audit trail
// in a relational database.
package store

import (
	"time"

	"github.com/groxaxo/chatmode/orchestrator"
)

// AgentProfile is the persisted form of an agent configuration. Profiles are
// soft-disabled rather than deleted so past sessions keep their attribution.
type AgentProfile struct {
	ID           string `gorm:"primaryKey;size:64" json:"id"`
	Name         string `gorm:"size:128;index" json:"name"`
	SystemPrompt string `gorm:"type:text" json:"system_prompt"`

	Provider    string  `gorm:"size:64" json:"provider"`
	Model       string  `gorm:"size:128" json:"model"`
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`

	TopK          int `json:"top_k"`
	ContextWindow int `json:"context_window"`
	RatePerMinute int `json:"rate_per_minute"`

	Tools         []string `gorm:"serializer:json" json:"tools"`
	BlockedTopics []string `gorm:"serializer:json" json:"blocked_topics"`

	VoiceEnabled bool    `json:"voice_enabled"`
	VoiceModel   string  `gorm:"size:64" json:"voice_model"`
	Voice        string  `gorm:"size:64" json:"voice"`
	VoiceSpeed   float64 `json:"voice_speed"`
	VoiceFormat  string  `gorm:"size:16" json:"voice_format"`

	Enabled   bool      `gorm:"index" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToAgentConfig converts the stored profile into a runtime configuration.
func (p *AgentProfile) ToAgentConfig() orchestrator.AgentConfig {
	return orchestrator.AgentConfig{
		ID:            p.ID,
		Name:          p.Name,
		SystemPrompt:  p.SystemPrompt,
		Provider:      p.Provider,
		Model:         p.Model,
		Temperature:   p.Temperature,
		TopP:          p.TopP,
		MaxTokens:     p.MaxTokens,
		TopK:          p.TopK,
		ContextWindow: p.ContextWindow,
		RatePerMinute: p.RatePerMinute,
		Tools:         p.Tools,
		BlockedTopics: p.BlockedTopics,
		Voice: orchestrator.VoiceConfig{
			Enabled: p.VoiceEnabled,
			Model:   p.VoiceModel,
			Voice:   p.Voice,
			Speed:   p.VoiceSpeed,
			Format:  p.VoiceFormat,
		},
	}
}

// User is an admin account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"size:128" json:"-"`
	Role         string    `gorm:"size:32" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditLog records one admin mutation for traceability.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Actor     string    `gorm:"size:64;index" json:"actor"`
	Action    string    `gorm:"size:64" json:"action"`
	Resource  string    `gorm:"size:128" json:"resource"`
	Detail    string    `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
