// Package ratelimit bounds how often a key may act within a sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Limiter decides whether one more attempt for key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config sets the window size and the number of attempts allowed inside it.
type Config struct {
	Max    int
	Window time.Duration
}

func (c Config) normalized() Config {
	if c.Max <= 0 {
		c.Max = 5
	}
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	return c
}

// MemoryLimiter keeps attempt timestamps per key in process memory.
type MemoryLimiter struct {
	cfg     Config
	mu      sync.Mutex
	entries map[string][]time.Time
	now     func() time.Time
}

// NewMemoryLimiter constructs an in-process sliding window limiter.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{cfg: cfg.normalized(), entries: make(map[string][]time.Time), now: time.Now}
}

// Allow records an attempt for key and reports whether it is within the limit.
// Rejected attempts are not recorded.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	attempts := prune(l.entries[key], now.Add(-l.cfg.Window))
	if len(attempts) >= l.cfg.Max {
		l.entries[key] = attempts
		return false, nil
	}
	l.entries[key] = append(attempts, now)
	return true, nil
}

// Cleanup drops keys whose attempts have all left the window and returns how many were removed.
func (l *MemoryLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.cfg.Window)
	removed := 0
	for key, attempts := range l.entries {
		kept := prune(attempts, cutoff)
		if len(kept) == 0 {
			delete(l.entries, key)
			removed++
			continue
		}
		l.entries[key] = kept
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func prune(attempts []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(attempts) && !attempts[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return attempts
	}
	return append([]time.Time(nil), attempts[idx:]...)
}

// FallbackLimiter asks primary first and switches to secondary when primary errors.
type FallbackLimiter struct {
	primary   Limiter
	secondary Limiter
	logger    *zap.Logger
}

// NewFallbackLimiter wires a shared limiter in front of a local one.
func NewFallbackLimiter(primary, secondary Limiter, logger *zap.Logger) *FallbackLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackLimiter{primary: primary, secondary: secondary, logger: logger}
}

// Allow implements Limiter.
func (l *FallbackLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.primary != nil {
		allowed, err := l.primary.Allow(ctx, key)
		if err == nil {
			return allowed, nil
		}
		l.logger.Warn("rate limiter unavailable, using local window", zap.String("key", key), zap.Error(err))
	}
	return l.secondary.Allow(ctx, key)
}
