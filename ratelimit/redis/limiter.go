package redislimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limit defines window and max count for a bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter is a Redis-backed fixed-window limiter using INCR + EXPIRE.
// Counters reset at window boundaries; a burst can straddle two windows.
type Limiter struct {
	rdb    *redis.Client
	keyNS  string
	limits map[string]Limit
}

func New(rdb *redis.Client, limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{rdb: rdb, keyNS: "billing:rl:", limits: limits}
}

func (l *Limiter) get(bucket string) Limit {
	if v, ok := l.limits[bucket]; ok {
		return v
	}
	if v, ok := l.limits["default"]; ok {
		return v
	}
	return Limit{Limit: 300, Window: time.Minute}
}

// AllowNamed reports whether one more request in the bucket/key pair fits the
// window. A nil limiter or client allows everything.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}
	lim := l.get(bucket)
	if lim.Window <= 0 {
		lim.Window = time.Minute
	}
	window := time.Now().UnixMilli() / lim.Window.Milliseconds()
	limitKey := fmt.Sprintf("%s%s:%s:%d", l.keyNS, bucket, key, window)

	ctx := context.Background()
	pipe := l.rdb.TxPipeline()
	countCmd := pipe.Incr(ctx, limitKey)
	pipe.Expire(ctx, limitKey, lim.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	count, err := countCmd.Result()
	if err != nil {
		return false, err
	}
	return count <= int64(lim.Limit), nil
}
