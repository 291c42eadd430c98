package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Redis stores each key as a plain string value.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
}

// NewRedis creates a Redis backend. Keys are namespaced with prefix.
func NewRedis(client *redis.Client, prefix string, logger *slog.Logger) *Redis {
	return &Redis{client: client, prefix: prefix, logger: logger}
}

// Get reads a key, retrying transient failures.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}

	var data []byte
	err := withRetry(ctx, r.logger, "load", key, func() error {
		val, getErr := r.client.Get(ctx, r.prefix+key).Bytes()
		if errors.Is(getErr, redis.Nil) {
			return ErrNotFound
		}
		if getErr != nil {
			return fmt.Errorf("redis get: %w", getErr)
		}
		data = val
		return nil
	})
	if IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load after retries: %w", err)
	}
	return data, nil
}

// Put writes a key without expiry, retrying transient failures.
func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}

	err := withRetry(ctx, r.logger, "save", key, func() error {
		if setErr := r.client.Set(ctx, r.prefix+key, value, 0).Err(); setErr != nil {
			return fmt.Errorf("redis set: %w", setErr)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save after retries: %w", err)
	}
	return nil
}
