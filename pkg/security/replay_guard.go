// Package security implements the Redis-backed replay guard and rate
// limiter used at the edges of the mesh: a governance decision must apply
// its side effects (replaying the original request into the Orchestrator)
// at most once, and the governance decision endpoint is throttled per
// reviewer.
package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ReplayGuard deduplicates a one-time action keyed by an arbitrary
// subject string (a scan_id, an escalation decision id, an anchor
// attempt id) for a bounded window, backed by a Redis SETNX.
type ReplayGuard struct {
	redis  *redis.Client
	logger *zap.Logger
	window time.Duration
}

// ReplayGuardConfig controls how long a claimed key blocks a repeat.
type ReplayGuardConfig struct {
	Window time.Duration
}

// DefaultReplayGuardConfig returns sensible defaults: a governance
// decision claim is considered "in flight or done" for five minutes.
func DefaultReplayGuardConfig() ReplayGuardConfig {
	return ReplayGuardConfig{Window: 5 * time.Minute}
}

func NewReplayGuard(redisClient *redis.Client, cfg ReplayGuardConfig, logger *zap.Logger) *ReplayGuard {
	return &ReplayGuard{redis: redisClient, logger: logger, window: cfg.Window}
}

// Claim atomically marks key as taken, returning false if it was already
// claimed within the window (a concurrent or double-submitted call).
func (g *ReplayGuard) Claim(ctx context.Context, namespace, key string) (bool, error) {
	redisKey := fmt.Sprintf("replay:%s:%s", namespace, key)
	claimed, err := g.redis.SetNX(ctx, redisKey, "1", g.window).Result()
	if err != nil {
		g.logger.Warn("replay guard redis error, failing open", zap.String("key", redisKey), zap.Error(err))
		return true, nil
	}
	if !claimed {
		g.logger.Warn("replay detected", zap.String("namespace", namespace), zap.String("key", key))
	}
	return claimed, nil
}

// Release clears a claim early, so the key can be claimed again
// immediately rather than after the window.
func (g *ReplayGuard) Release(ctx context.Context, namespace, key string) error {
	return g.redis.Del(ctx, fmt.Sprintf("replay:%s:%s", namespace, key)).Err()
}

// RateLimiter is a fixed-window counter over Redis, used to throttle the
// governance decision endpoint against abusive or misbehaving reviewers.
type RateLimiter struct {
	redis  *redis.Client
	logger *zap.Logger
}

func NewRateLimiter(redisClient *redis.Client, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{redis: redisClient, logger: logger}
}

// Allow reports whether another call under key is permitted within the
// given window, incrementing the window's counter as a side effect.
// Fails open on a Redis error so an outage never blocks governance.
func (r *RateLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) bool {
	windowSeconds := int64(window.Seconds())
	if windowSeconds == 0 {
		windowSeconds = 1
	}
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, time.Now().Unix()/windowSeconds)

	current, err := r.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		r.logger.Warn("rate limiter redis error, failing open", zap.Error(err))
		return true
	}
	if current == 1 {
		r.redis.Expire(ctx, redisKey, window)
	}
	return current <= int64(max)
}
