package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the keyed store the checkout flow persists state into. It is an
// interface so the coordinator can be exercised without a real Redis.
type KV interface {
	// GetJSON unmarshals the value stored under key into dst. It reports
	// whether the key existed.
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	// SetJSON serialises v as JSON under key with the provided TTL. A zero
	// TTL stores the key without expiry.
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// RedisKV implements KV on top of a Redis client.
type RedisKV struct {
	Client *redis.Client
}

// NewRedisKV constructs a Redis-backed keyed store.
func NewRedisKV(client *redis.Client) RedisKV {
	return RedisKV{Client: client}
}

func (s RedisKV) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if s.Client == nil || key == "" {
		return false, nil
	}
	data, err := s.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (s RedisKV) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if s.Client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, key, data, ttl).Err()
}

func (s RedisKV) Delete(ctx context.Context, key string) error {
	if s.Client == nil || key == "" {
		return nil
	}
	return s.Client.Del(ctx, key).Err()
}
