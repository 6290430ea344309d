package db

import (
	"context"
	"fmt"

	"feed_spider/internal/config"
	"feed_spider/internal/logger"
)

// KV is the durable key-value primitive behind the record store and the
// crawl checkpoint. Values are written whole, JSON-encoded.
type KV interface {
	// Get decodes the value stored under key into dst and reports whether
	// the key existed.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Close(ctx context.Context) error
}

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig, log logger.Logger) (KV, error) {
	switch cfg.Backend {
	case "", "memory":
		log.Warn("using in-memory storage, data will not survive a restart")
		return NewMemoryKV(), nil
	case "redis":
		return NewRedisKV(cfg.Redis, cfg.KeyPrefix, log)
	case "mongo":
		return NewMongoKV(ctx, cfg.Mongo, cfg.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func prefixed(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
