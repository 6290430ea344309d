package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"feed_spider/internal/config"
	"feed_spider/internal/logger"
)

type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV connects to Redis, retrying with exponential backoff until
// cfg.ConnectTimeout elapses.
func NewRedisKV(cfg config.RedisConfig, prefix string, log logger.Logger) (*RedisKV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := connectWithRetry(client, cfg, log); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &RedisKV{client: client, prefix: prefix}, nil
}

func connectWithRetry(client *redis.Client, cfg config.RedisConfig, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	log.Info("connecting to redis",
		logger.String("addr", cfg.Addr),
		logger.Duration("timeout", cfg.ConnectTimeout))

	attempt := 0
	wait := cfg.RetryInterval
	for {
		attempt++

		pingCtx, pingCancel := context.WithTimeout(ctx, cfg.PingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()

		if err == nil {
			if attempt > 1 {
				log.Warn("connected to redis after retry",
					logger.String("addr", cfg.Addr),
					logger.Int("attempts", attempt))
			} else {
				log.Info("connected to redis", logger.String("addr", cfg.Addr))
			}
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Error("redis unavailable - failed to connect after timeout",
				logger.String("addr", cfg.Addr),
				logger.Int("attempts", attempt),
				logger.Error(err))
			return fmt.Errorf("redis unavailable at %s after %d attempts: %w", cfg.Addr, attempt, err)
		case <-timer.C:
			log.Warn("redis connection failed, retrying",
				logger.String("addr", cfg.Addr),
				logger.Int("attempt", attempt),
				logger.Duration("next_retry_in", wait),
				logger.Error(err))
			wait *= 2
			if wait > cfg.MaxWait {
				wait = cfg.MaxWait
			}
		}
	}
}

func (r *RedisKV) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := r.client.Get(ctx, prefixed(r.prefix, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, dst)
}

func (r *RedisKV) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, prefixed(r.prefix, key), raw, 0).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, prefixed(r.prefix, key)).Err()
}

func (r *RedisKV) Close(context.Context) error {
	return r.client.Close()
}
