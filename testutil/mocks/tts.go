package mocks

import (
	"context"
	"sync"

	"github.com/groxaxo/chatmode/speech"
)

// TTSProvider is a mock speech synthesizer that returns the request text as
// audio bytes, recording every request.
type TTSProvider struct {
	mu    sync.Mutex
	err   error
	calls []*speech.SynthesizeRequest
}

// NewTTSProvider creates a mock TTS provider.
func NewTTSProvider() *TTSProvider {
	return &TTSProvider{}
}

// WithError makes every synthesis call fail with err.
func (m *TTSProvider) WithError(err error) *TTSProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Synthesize implements speech.Provider.
func (m *TTSProvider) Synthesize(ctx context.Context, req *speech.SynthesizeRequest) (*speech.SynthesizeResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	err := m.err
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	format := req.Format
	if format == "" {
		format = "mp3"
	}
	return &speech.SynthesizeResponse{
		Provider:  "mock",
		AudioData: []byte("audio:" + req.Text),
		Format:    format,
		MimeType:  speech.MimeTypeFor(format),
	}, nil
}

// Name implements speech.Provider.
func (m *TTSProvider) Name() string { return "mock" }

// CallCount returns the number of synthesis calls made.
func (m *TTSProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
