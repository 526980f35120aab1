// Package limiter implements a Redis fixed-window request counter shared
// by every server instance.
package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts hits per key in Redis.
type Limiter struct {
	rdb    *redis.Client
	prefix string
	script *redis.Script
}

// New creates a Limiter whose keys start with "ratelimit:<scope>:".
func New(rdb *redis.Client, scope string) *Limiter {
	return &Limiter{
		rdb:    rdb,
		prefix: "ratelimit:" + scope + ":",
		script: redis.NewScript(LuaFixedWindow),
	}
}

// Allow records a hit for id and reports whether it is within limit for
// the current window. When it is not, retryAfter is the time until the
// window resets.
func (l *Limiter) Allow(ctx context.Context, id string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error) {
	if limit <= 0 {
		return true, 0, nil
	}
	res, err := l.script.Run(ctx, l.rdb, []string{l.prefix + id}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit lua: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit lua: unexpected reply %v", res)
	}
	hits, ttl := res[0], time.Duration(res[1])*time.Millisecond
	if hits > int64(limit) {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Reset clears the counter for id.
func (l *Limiter) Reset(ctx context.Context, id string) error {
	return l.rdb.Del(ctx, l.prefix+id).Err()
}
