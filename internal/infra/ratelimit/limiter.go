// Package ratelimit admits or rejects requests against a per-key quota
// inside a fixed time window.
package ratelimit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Result is a single admission decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// RetryAfterSeconds rounds the wait up to whole seconds, never below one.
func (r Result) RetryAfterSeconds() int {
	secs := int((r.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Strategy is one counting backend. Take records the request and decides.
type Strategy interface {
	Take(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Limiter tries its strategies in order, falling through on backend errors.
// The chain is expected to end with an in-process strategy that cannot fail,
// so an outage of a shared backend loosens the limit across instances but
// never turns it off.
type Limiter struct {
	strategies []Strategy
	logger     *slog.Logger
}

func New(logger *slog.Logger, strategies ...Strategy) *Limiter {
	return &Limiter{strategies: strategies, logger: logger}
}

// Check never returns an error: backend failures are swallowed and the next
// strategy decides. If every strategy fails the request is admitted.
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) Result {
	for _, s := range l.strategies {
		res, err := s.Take(ctx, key, limit, window)
		if err == nil {
			return res
		}
		if l.logger != nil {
			l.logger.Warn("rate limit backend failed, falling back", "key", key, "error", err)
		}
	}
	return Result{Allowed: true, Limit: limit, Remaining: limit}
}

const maxKeyLen = 120

// NormalizeKey turns a raw caller address into a quota key: port and IPv6
// brackets stripped, length capped, with a sentinel when nothing usable
// remains.
func NormalizeKey(remote string) string {
	key := strings.TrimSpace(remote)
	if i := strings.LastIndex(key, ":"); i > 0 && strings.Count(key, ":") == 1 {
		key = key[:i]
	}
	if strings.HasPrefix(key, "[") {
		if i := strings.Index(key, "]"); i > 0 {
			key = key[1:i]
		}
	}
	key = strings.Trim(key, "[]")
	if len(key) > maxKeyLen {
		key = key[:maxKeyLen]
	}
	if key == "" {
		return "unknown"
	}
	return key
}
