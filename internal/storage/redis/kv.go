package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// KV is a plain string key-value store without expiry.
type KV struct {
	client goredis.UniversalClient
}

// NewKV returns a KV using client.
func NewKV(client goredis.UniversalClient) *KV {
	return &KV{client: client}
}

// Get returns the value under key and whether it exists.
func (kv *KV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := kv.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key.
func (kv *KV) Set(ctx context.Context, key, value string) error {
	if err := kv.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// SetNX stores value under key only when the key is absent and reports
// whether it did.
func (kv *KV) SetNX(ctx context.Context, key, value string) (bool, error) {
	ok, err := kv.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %q: %w", key, err)
	}
	return ok, nil
}
