package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	radix "github.com/mediocregopher/radix/v3"
)

// Redis counts in a shared Redis instance so that multiple application
// processes enforce one quota. The counter key carries the window slot
// index, and atomicity comes from Redis's own INCR.
type Redis struct {
	Client radix.Client
	Prefix string

	now func() time.Time
}

func NewRedis(client radix.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &Redis{Client: client, Prefix: prefix, now: time.Now}
}

func (r *Redis) Take(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	if r == nil || r.Client == nil {
		return Result{}, errors.New("ratelimit: redis client not configured")
	}
	if window <= 0 {
		return Result{}, errors.New("ratelimit: window must be positive")
	}

	now := r.now()
	windowMs := window.Milliseconds()
	slot := now.UnixMilli() / windowMs
	counterKey := fmt.Sprintf("%s:%s:%d", r.Prefix, key, slot)

	var count int
	if err := r.Client.Do(radix.Cmd(&count, "INCR", counterKey)); err != nil {
		return Result{}, fmt.Errorf("ratelimit: incr: %w", err)
	}
	// Keep the counter one extra window so clock skew between instances
	// cannot expire it mid-window, and never below one second so short
	// windows do not delete the key outright.
	ttlSecs := int64(2 * window / time.Second)
	if ttlSecs < 1 {
		ttlSecs = 1
	}
	ttl := strconv.FormatInt(ttlSecs, 10)
	if count == 1 {
		if err := r.Client.Do(radix.Cmd(nil, "EXPIRE", counterKey, ttl)); err != nil {
			return Result{}, fmt.Errorf("ratelimit: expire: %w", err)
		}
	} else {
		// A failed EXPIRE at creation would leave the key immortal; repair
		// it whenever we see the counter without a TTL.
		var remaining int
		if err := r.Client.Do(radix.Cmd(&remaining, "TTL", counterKey)); err != nil {
			return Result{}, fmt.Errorf("ratelimit: ttl: %w", err)
		}
		if remaining == -1 {
			if err := r.Client.Do(radix.Cmd(nil, "EXPIRE", counterKey, ttl)); err != nil {
				return Result{}, fmt.Errorf("ratelimit: expire: %w", err)
			}
		}
	}

	resetAt := time.UnixMilli((slot + 1) * windowMs)
	res := Result{
		Limit:   limit,
		ResetAt: resetAt,
	}
	if count <= limit {
		res.Allowed = true
		res.Remaining = limit - count
	} else {
		res.RetryAfter = resetAt.Sub(now)
	}
	return res, nil
}

var _ Strategy = (*Redis)(nil)
