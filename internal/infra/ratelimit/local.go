package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Local is the in-process fixed-window counter. It guards its map with a
// mutex and sweeps entries whose window expired long ago, so key cardinality
// does not grow without bound.
type Local struct {
	mu        sync.Mutex
	entries   map[string]*localEntry
	lastSweep time.Time

	// now is swapped out by tests.
	now func() time.Time
}

type localEntry struct {
	count   int
	resetAt time.Time
}

const sweepInterval = time.Minute

func NewLocal() *Local {
	return &Local{
		entries: make(map[string]*localEntry),
		now:     time.Now,
	}
}

func (l *Local) Take(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	e := l.entries[key]
	if e == nil || !now.Before(e.resetAt) {
		// Window rolled over: the entry is replaced, not incremented.
		e = &localEntry{count: 0, resetAt: now.Add(window)}
		l.entries[key] = e
	}
	e.count++

	res := Result{
		Limit:   limit,
		ResetAt: e.resetAt,
	}
	if e.count <= limit {
		res.Allowed = true
		res.Remaining = limit - e.count
	} else {
		res.RetryAfter = e.resetAt.Sub(now)
	}
	return res, nil
}

// sweep drops entries whose window has been closed for at least a full
// sweep interval. Caller holds the mutex.
func (l *Local) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-sweepInterval)
	for key, e := range l.entries {
		if e.resetAt.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

var _ Strategy = (*Local)(nil)
