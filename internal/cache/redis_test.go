package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	srv := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Addr = srv.Addr()

	m, err := NewManager(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestAudioRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, ok, err := m.GetAudio(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	audio := []byte("mp3 bytes")
	require.NoError(t, m.SetAudio(ctx, "abc123", audio, time.Hour))

	got, ok, err := m.GetAudio(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, audio, got)
}

func TestAudioTTLExpiry(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Addr = srv.Addr()
	m, err := NewManager(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.SetAudio(ctx, "short", []byte("x"), time.Minute))
	srv.FastForward(2 * time.Minute)

	_, ok, err := m.GetAudio(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewManagerConnectFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1" // nothing listens here
	cfg.DialTimeout = 100 * time.Millisecond

	_, err := NewManager(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
