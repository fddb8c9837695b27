package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/groxaxo/chatmode/types"
)

// Cache stores synthesized audio bytes by content-addressed key.
type Cache interface {
	GetAudio(ctx context.Context, key string) ([]byte, bool, error)
	SetAudio(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Artifact references a cached audio rendition of a message.
type Artifact struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	Format   string `json:"format"`
	MimeType string `json:"mime_type"`
	Cached   bool   `json:"cached"` // true when served from cache, no synthesis call made
}

// SynthesizerConfig configures the caching synthesizer.
type SynthesizerConfig struct {
	// ArtifactTTL bounds how long cached audio is retained. Zero means no
	// expiry.
	ArtifactTTL time.Duration `yaml:"artifact_ttl" json:"artifact_ttl"`

	// URLPrefix is prepended to artifact keys to form the download URL
	// attached to messages.
	URLPrefix string `yaml:"url_prefix" json:"url_prefix"`
}

// DefaultSynthesizerConfig returns the default synthesizer configuration.
func DefaultSynthesizerConfig() SynthesizerConfig {
	return SynthesizerConfig{
		ArtifactTTL: 24 * time.Hour,
		URLPrefix:   "/v1/audio/",
	}
}

// Synthesizer wraps a TTS provider with normalization and a
// content-addressed cache: the same (text, voice, model, format, speed)
// tuple is synthesized at most once. Concurrent requests for the same key
// are collapsed through singleflight.
type Synthesizer struct {
	provider Provider
	cache    Cache
	cfg      SynthesizerConfig
	group    singleflight.Group
	logger   *zap.Logger
}

// NewSynthesizer creates a caching synthesizer.
func NewSynthesizer(provider Provider, cache Cache, cfg SynthesizerConfig, logger *zap.Logger) *Synthesizer {
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = "/v1/audio/"
	}
	return &Synthesizer{
		provider: provider,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "synthesizer")),
	}
}

// ArtifactKey derives the content-addressed cache key for a request. Text is
// normalized first, so formatting-only differences share an artifact.
func ArtifactKey(req *SynthesizeRequest) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%s|%.2f",
		Normalize(req.Text), req.Voice, req.Model, req.Format, req.Speed))
	return hex.EncodeToString(sum[:])
}

// Synthesize returns an audio artifact for the request, reusing the cached
// rendition when one exists.
func (s *Synthesizer) Synthesize(ctx context.Context, req *SynthesizeRequest) (*Artifact, error) {
	normalized := Normalize(req.Text)
	if normalized == "" {
		return nil, types.NewError(types.ErrSynthesisFailure, "nothing to synthesize after normalization")
	}

	key := ArtifactKey(req)
	format := req.Format
	if format == "" {
		format = "mp3"
	}

	if data, ok, err := s.cache.GetAudio(ctx, key); err == nil && ok && len(data) > 0 {
		return &Artifact{
			Key:      key,
			URL:      s.cfg.URLPrefix + key,
			Format:   format,
			MimeType: MimeTypeFor(format),
			Cached:   true,
		}, nil
	}

	_, err, _ := s.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: another caller may have filled the
		// cache while we waited.
		if data, ok, err := s.cache.GetAudio(ctx, key); err == nil && ok && len(data) > 0 {
			return nil, nil
		}

		synthReq := *req
		synthReq.Text = normalized
		resp, err := s.provider.Synthesize(ctx, &synthReq)
		if err != nil {
			return nil, err
		}

		if err := s.cache.SetAudio(ctx, key, resp.AudioData, s.cfg.ArtifactTTL); err != nil {
			s.logger.Warn("failed to cache audio artifact",
				zap.String("key", key),
				zap.Error(err))
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Key:      key,
		URL:      s.cfg.URLPrefix + key,
		Format:   format,
		MimeType: MimeTypeFor(format),
	}, nil
}

// GetArtifact returns the cached audio bytes for a key, for the download
// endpoint.
func (s *Synthesizer) GetArtifact(ctx context.Context, key string) ([]byte, bool, error) {
	return s.cache.GetAudio(ctx, key)
}

// MemoryCache is an in-process Cache used when no redis backend is
// configured and in tests.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryCache creates an empty in-process audio cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string][]byte)}
}

// GetAudio implements Cache.
func (c *MemoryCache) GetAudio(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[key]
	return data, ok, nil
}

// SetAudio implements Cache. TTL is ignored by the in-process cache.
func (c *MemoryCache) SetAudio(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	return nil
}
