package checkout

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const guardKeyPrefix = "checkout:submit:"

// SubmitGuard is a Redis single-flight latch that blocks concurrent order
// submissions for the same session, e.g. a double-clicked pay button.
type SubmitGuard struct {
	R   *redis.Client
	TTL time.Duration
}

func (g SubmitGuard) ttl() time.Duration {
	if g.TTL <= 0 {
		return 30 * time.Second
	}
	return g.TTL
}

// Acquire reports whether the caller holds the submission slot. When Redis
// is not configured the guard is permissive.
func (g SubmitGuard) Acquire(ctx context.Context, sessionID string) (bool, error) {
	if g.R == nil {
		return true, nil
	}
	return g.R.SetNX(ctx, guardKeyPrefix+sessionID, "in-flight", g.ttl()).Result()
}

// Release frees the submission slot so a failed submit can be retried.
func (g SubmitGuard) Release(ctx context.Context, sessionID string) {
	if g.R == nil {
		return
	}
	_ = g.R.Del(ctx, guardKeyPrefix+sessionID).Err()
}
