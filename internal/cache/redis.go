// Package cache provides the Redis-backed audio artifact cache. When no
// Redis endpoint is configured the service falls back to the in-process
// cache in the speech package.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string `yaml:"addr" json:"addr"` // empty disables Redis
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`

	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// DefaultConfig returns the default Redis settings with no endpoint set.
func DefaultConfig() Config {
	return Config{
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// audioKeyPrefix namespaces artifact keys within the Redis keyspace.
const audioKeyPrefix = "chatmode:audio:"

// Manager is a Redis client wrapper implementing the speech.Cache interface.
type Manager struct {
	client *redis.Client
	logger *zap.Logger
}

// NewManager connects to Redis and verifies the connection.
func NewManager(ctx context.Context, cfg Config, logger *zap.Logger) (*Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("redis cache connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &Manager{
		client: client,
		logger: logger.With(zap.String("component", "redis_cache")),
	}, nil
}

// GetAudio implements speech.Cache.
func (m *Manager) GetAudio(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := m.client.Get(ctx, audioKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

// SetAudio implements speech.Cache.
func (m *Manager) SetAudio(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := m.client.Set(ctx, audioKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks connectivity, for the health endpoint.
func (m *Manager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close shuts down the client.
func (m *Manager) Close() error {
	return m.client.Close()
}
