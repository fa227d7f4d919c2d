package memorylimiter

import (
	"fmt"
	"sync"
	"time"
)

// Limit defines window and max count for a bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

type window struct {
	start time.Time
	count int
}

// Limiter is an in-memory fixed-window limiter, the single-node fallback when
// Redis is not configured.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	windows map[string]*window
	now     func() time.Time
}

// New constructs an in-memory limiter with the provided per-bucket limits.
func New(limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{
		limits:  limits,
		windows: make(map[string]*window),
		now:     time.Now,
	}
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

// AllowNamed matches the adapter's RateLimiter interface. The counter resets
// whenever the window rolls over; stale windows are dropped in place so the
// map does not grow with dead keys.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}
	lim := l.get(bucket)
	now := l.now()
	limitKey := fmt.Sprintf("%s:%s", bucket, key)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[limitKey]
	if !ok || now.Sub(w.start) >= lim.Window {
		w = &window{start: now}
		l.windows[limitKey] = w
	}
	if w.count >= lim.Limit {
		return false, nil
	}
	w.count++
	return true, nil
}
