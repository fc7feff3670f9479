package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestLocal(start time.Time) (*Local, *time.Time) {
	current := start
	l := NewLocal()
	l.now = func() time.Time { return current }
	return l, &current
}

func TestLocalAdmitsUpToLimitThenRejects(t *testing.T) {
	l, _ := newTestLocal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := l.Take(ctx, "1.2.3.4", 5, time.Minute)
		if err != nil {
			t.Fatalf("take %d: unexpected error: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("take %d: expected allowed", i)
		}
		if want := 5 - i; res.Remaining != want {
			t.Errorf("take %d: remaining = %d, want %d", i, res.Remaining, want)
		}
	}

	res, err := l.Take(ctx, "1.2.3.4", 5, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed {
		t.Error("expected sixth request to be rejected")
	}
	if res.RetryAfterSeconds() < 1 {
		t.Errorf("retry after = %d, want >= 1", res.RetryAfterSeconds())
	}
}

func TestLocalWindowRolloverResetsCounter(t *testing.T) {
	l, clock := newTestLocal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if res, _ := l.Take(ctx, "k", 2, time.Minute); i == 2 && res.Allowed {
			t.Fatal("expected key to be exhausted")
		}
	}

	*clock = clock.Add(61 * time.Second)

	res, err := l.Take(ctx, "k", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Allowed {
		t.Error("expected request after rollover to be allowed")
	}
	// Counter restarts at 1, it does not keep incrementing.
	if res.Remaining != 1 {
		t.Errorf("remaining = %d, want 1", res.Remaining)
	}
}

func TestLocalKeysAreIndependent(t *testing.T) {
	l, _ := newTestLocal(time.Now())
	ctx := context.Background()

	if res, _ := l.Take(ctx, "a", 1, time.Minute); !res.Allowed {
		t.Fatal("first request for a should pass")
	}
	if res, _ := l.Take(ctx, "a", 1, time.Minute); res.Allowed {
		t.Fatal("second request for a should be rejected")
	}
	if res, _ := l.Take(ctx, "b", 1, time.Minute); !res.Allowed {
		t.Error("key b must not share a's counter")
	}
}

func TestLocalSweepDropsStaleEntries(t *testing.T) {
	l, clock := newTestLocal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	l.Take(ctx, "stale", 5, time.Second)
	*clock = clock.Add(3 * time.Minute)
	l.Take(ctx, "fresh", 5, time.Minute)

	l.mu.Lock()
	_, ok := l.entries["stale"]
	l.mu.Unlock()
	if ok {
		t.Error("expected stale entry to be swept")
	}
}

type failingStrategy struct {
	calls int
}

func (f *failingStrategy) Take(context.Context, string, int, time.Duration) (Result, error) {
	f.calls++
	return Result{}, errors.New("backend down")
}

func TestLimiterFallsBackWhenRemoteFails(t *testing.T) {
	remote := &failingStrategy{}
	local, _ := newTestLocal(time.Now())
	limiter := New(nil, remote, local)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		res := limiter.Check(ctx, "k", 2, time.Minute)
		if !res.Allowed {
			t.Fatalf("request %d: expected allowed via local fallback", i)
		}
	}
	res := limiter.Check(ctx, "k", 2, time.Minute)
	if res.Allowed {
		t.Error("local fallback must still enforce the limit")
	}
	if remote.calls != 3 {
		t.Errorf("remote attempts = %d, want 3", remote.calls)
	}
}

func TestLimiterAdmitsWhenEveryStrategyFails(t *testing.T) {
	limiter := New(nil, &failingStrategy{})
	res := limiter.Check(context.Background(), "k", 2, time.Minute)
	if !res.Allowed {
		t.Error("a broken limiter must not turn into a hard outage")
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.2.3.4:8080", "1.2.3.4"},
		{"1.2.3.4", "1.2.3.4"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"  10.0.0.1  ", "10.0.0.1"},
		{"", "unknown"},
		{"   ", "unknown"},
	}
	for _, tc := range cases {
		if got := NormalizeKey(tc.in); got != tc.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	long := make([]byte, 0, 200)
	for i := 0; i < 200; i++ {
		long = append(long, 'a')
	}
	if got := NormalizeKey(string(long)); len(got) != 120 {
		t.Errorf("long key capped to %d chars, want 120", len(got))
	}
}
