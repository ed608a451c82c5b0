// Package services provides external service integrations and technical concerns like notifications, tokens and media
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownLimiter allows one action per key per window across all replicas
type CooldownLimiter interface {
	// Acquire starts the window for key. When the window is already running it
	// returns false and the time left.
	Acquire(ctx context.Context, key string, window time.Duration) (bool, time.Duration, error)
}

type RedisCooldownLimiter struct {
	rc     *redis.Client
	prefix string
}

func NewRedisCooldownLimiter(rc *redis.Client, prefix string) *RedisCooldownLimiter {
	return &RedisCooldownLimiter{rc: rc, prefix: prefix}
}

func (l *RedisCooldownLimiter) Acquire(ctx context.Context, key string, window time.Duration) (bool, time.Duration, error) {
	if window <= 0 {
		return true, 0, nil
	}
	full := fmt.Sprintf("%s:cooldown:%s", l.prefix, key)
	ok, err := l.rc.SetNX(ctx, full, 1, window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("cooldown acquire: %w", err)
	}
	if ok {
		return true, 0, nil
	}
	ttl, err := l.rc.PTTL(ctx, full).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return false, ttl, nil
}
