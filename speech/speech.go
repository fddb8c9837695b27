// Package speech provides the text-to-speech provider contract, an
// OpenAI-compatible implementation, speech text normalization, and a
// content-addressed caching synthesizer.
package speech

import (
	"context"
	"time"
)

// SynthesizeRequest represents a text-to-speech request.
type SynthesizeRequest struct {
	Text   string  `json:"text"`
	Model  string  `json:"model,omitempty"`
	Voice  string  `json:"voice,omitempty"`
	Speed  float64 `json:"speed,omitempty"`  // 0.25-4.0
	Format string  `json:"format,omitempty"` // mp3, opus, aac, flac, wav, pcm
}

// SynthesizeResponse represents the response to a TTS request.
type SynthesizeResponse struct {
	Provider  string        `json:"provider"`
	Model     string        `json:"model,omitempty"`
	AudioData []byte        `json:"-"`
	Format    string        `json:"format"`
	MimeType  string        `json:"mime_type"`
	Duration  time.Duration `json:"duration,omitempty"`
	CharCount int           `json:"char_count,omitempty"`
	CreatedAt time.Time     `json:"created_at,omitempty"`
}

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to speech.
	Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error)

	// Name returns the provider name.
	Name() string
}

// MimeTypeFor maps an audio format to its MIME type.
func MimeTypeFor(format string) string {
	switch format {
	case "mp3":
		return "audio/mpeg"
	case "opus":
		return "audio/opus"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	case "wav":
		return "audio/wav"
	case "pcm":
		return "audio/pcm"
	default:
		return "application/octet-stream"
	}
}
