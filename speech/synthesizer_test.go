package speech

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingProvider struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *countingProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &SynthesizeResponse{
		Provider:  "counting",
		AudioData: []byte("audio:" + req.Text),
		Format:    "mp3",
		MimeType:  "audio/mpeg",
	}, nil
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestSynthesizeCachesByContent(t *testing.T) {
	provider := &countingProvider{}
	s := NewSynthesizer(provider, NewMemoryCache(), DefaultSynthesizerConfig(), zap.NewNop())

	req := &SynthesizeRequest{Text: "Hello there.", Voice: "alloy", Format: "mp3"}
	first, err := s.Synthesize(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, provider.callCount())

	second, err := s.Synthesize(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, 1, provider.callCount(), "repeated phrase must not re-synthesize")
}

func TestSynthesizeNormalizationSharesArtifact(t *testing.T) {
	provider := &countingProvider{}
	s := NewSynthesizer(provider, NewMemoryCache(), DefaultSynthesizerConfig(), zap.NewNop())

	a, err := s.Synthesize(context.Background(), &SynthesizeRequest{Text: "**Hello** there.", Voice: "alloy"})
	require.NoError(t, err)
	b, err := s.Synthesize(context.Background(), &SynthesizeRequest{Text: "Hello   there.", Voice: "alloy"})
	require.NoError(t, err)

	assert.Equal(t, a.Key, b.Key)
	assert.Equal(t, 1, provider.callCount())
}

func TestSynthesizeDistinctVoicesDistinctArtifacts(t *testing.T) {
	provider := &countingProvider{}
	s := NewSynthesizer(provider, NewMemoryCache(), DefaultSynthesizerConfig(), zap.NewNop())

	a, err := s.Synthesize(context.Background(), &SynthesizeRequest{Text: "Hello.", Voice: "alloy"})
	require.NoError(t, err)
	b, err := s.Synthesize(context.Background(), &SynthesizeRequest{Text: "Hello.", Voice: "nova"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Key, b.Key)
	assert.Equal(t, 2, provider.callCount())
}

func TestSynthesizeEmptyAfterNormalization(t *testing.T) {
	s := NewSynthesizer(&countingProvider{}, NewMemoryCache(), DefaultSynthesizerConfig(), zap.NewNop())
	_, err := s.Synthesize(context.Background(), &SynthesizeRequest{Text: "🎉🎉🎉"})
	require.Error(t, err)
}

func TestSynthesizeProviderFailure(t *testing.T) {
	provider := &countingProvider{err: errors.New("upstream down")}
	s := NewSynthesizer(provider, NewMemoryCache(), DefaultSynthesizerConfig(), zap.NewNop())

	_, err := s.Synthesize(context.Background(), &SynthesizeRequest{Text: "Hello."})
	require.Error(t, err)
}

func TestGetArtifact(t *testing.T) {
	provider := &countingProvider{}
	s := NewSynthesizer(provider, NewMemoryCache(), DefaultSynthesizerConfig(), zap.NewNop())

	art, err := s.Synthesize(context.Background(), &SynthesizeRequest{Text: "Hello.", Format: "mp3"})
	require.NoError(t, err)

	data, ok, err := s.GetArtifact(context.Background(), art.Key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("audio:Hello."), data)

	_, ok, err = s.GetArtifact(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
