// Package kvstore provides a small key-value abstraction for JSON documents.
// Supports both a local file backend and Redis for multi-instance deployments.
package kvstore

import (
	"context"
	"fmt"
	"time"

	"clarifyai/config"
)

// Type constants for key-value backends
const (
	TypeLocal = "local"
	TypeRedis = "redis"
)

// Store defines the interface for key-value storage.
// Values are JSON documents. Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the value stored under key.
	// Returns nil, nil if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Type      string
	LocalPath string
	Redis     RedisConfig
}

// New creates the configured store.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "", TypeLocal:
		return NewLocal(cfg.LocalPath), nil
	case TypeRedis:
		return NewRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown kv store type: %s (valid: local, redis)", cfg.Type)
	}
}

// FromAppConfig converts the application's kv section.
func FromAppConfig(c config.KVConfig) Config {
	return Config{
		Type:      c.Type,
		LocalPath: c.Local.Path,
		Redis: RedisConfig{
			URL: c.Redis.URL,
			Key: c.Redis.Key,
			TTL: time.Duration(c.Redis.TTL) * time.Second,
		},
	}
}
