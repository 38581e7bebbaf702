package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func TestMemoryLimiterAllow(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter(3, time.Minute)
	defer limiter.Close()

	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil || !allowed {
			t.Fatalf("request %d: allowed = %v, err = %v", i, allowed, err)
		}
	}
	if allowed, _ := limiter.Allow(ctx, "10.0.0.1"); allowed {
		t.Fatal("expected fourth request to be limited")
	}
	if allowed, _ := limiter.Allow(ctx, "10.0.0.2"); !allowed {
		t.Fatal("clients must have independent buckets")
	}

	now = now.Add(time.Minute)
	if allowed, _ := limiter.Allow(ctx, "10.0.0.1"); !allowed {
		t.Fatal("expected bucket to refill after the window")
	}
}

func TestMemoryLimiterZeroCapacity(t *testing.T) {
	limiter := NewMemoryLimiter(0, time.Minute)
	defer limiter.Close()

	if allowed, _ := limiter.Allow(context.Background(), "10.0.0.1"); allowed {
		t.Fatal("zero capacity must deny every request")
	}
}

func TestMemoryLimiterCleanup(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)
	defer limiter.Close()

	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	_, _ = limiter.Allow(context.Background(), "idle")
	_, _ = limiter.Allow(context.Background(), "active")

	now = now.Add(2 * time.Hour)
	limiter.clients["active"].lastRefill = now
	limiter.cleanup()

	if _, ok := limiter.clients["idle"]; ok {
		t.Error("expected idle bucket to be removed")
	}
	if _, ok := limiter.clients["active"]; !ok {
		t.Error("expected active bucket to be kept")
	}
}

func TestMemoryLimiterCloseTwice(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Minute)
	if err := limiter.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := limiter.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestRedisLimiterAllow(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	limiter, err := NewRedisLimiter(ctx, mr.Addr(), 2, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLimiter() error = %v", err)
	}
	defer limiter.Close()

	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil || !allowed {
			t.Fatalf("request %d: allowed = %v, err = %v", i, allowed, err)
		}
	}
	allowed, err := limiter.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Fatal("expected third request to be limited")
	}

	key := "emi:ratelimit:10.0.0.1:" + slotString(now, time.Minute)
	if got, err := mr.Get(key); err != nil || got != "3" {
		t.Errorf("counter %s = %q (err %v), expected 3", key, got, err)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %s, expected a positive expiry within the window", ttl)
	}

	now = now.Add(time.Minute)
	if allowed, _ := limiter.Allow(ctx, "10.0.0.1"); !allowed {
		t.Fatal("expected a new window to reset the counter")
	}
}

func TestRedisLimiterUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := NewRedisLimiter(ctx, addr, 2, time.Minute); err == nil {
		t.Fatal("expected error for unreachable redis")
	}
}

func TestRateLimitedFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter, err := NewRedisLimiter(context.Background(), mr.Addr(), 1, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLimiter() error = %v", err)
	}
	defer limiter.Close()

	calls := 0
	wrapped := rateLimited(limiter, zap.NewNop(), func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	})

	mr.SetError("server unavailable")
	rr := httptest.NewRecorder()
	wrapped(rr, httptest.NewRequest(http.MethodPost, "/api/emi", nil))
	if rr.Code != http.StatusNoContent || calls != 1 {
		t.Fatalf("expected request to pass when the limiter fails, got %d", rr.Code)
	}
}

func TestRateLimitedUsesClientIP(t *testing.T) {
	limiter := NewMemoryLimiter(1, time.Hour)
	defer limiter.Close()

	wrapped := rateLimited(limiter, zap.NewNop(), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		wrapped(rr, req)
		return rr.Code
	}

	if code := send("192.0.2.1:1000"); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	// Same host, different port.
	if code := send("192.0.2.1:2000"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send("192.0.2.2:1000"); code != http.StatusNoContent {
		t.Fatalf("expected 204 for another client, got %d", code)
	}
}

func slotString(t time.Time, window time.Duration) string {
	return strconv.FormatInt(t.UnixNano()/int64(window), 10)
}

func TestRedisLimiterRejectsNonPositiveWindow(t *testing.T) {
	mr := miniredis.RunT(t)

	for _, window := range []time.Duration{0, -time.Second} {
		if _, err := NewRedisLimiter(context.Background(), mr.Addr(), 5, window); err == nil {
			t.Errorf("NewRedisLimiter(window=%s) expected error", window)
		}
	}
}
