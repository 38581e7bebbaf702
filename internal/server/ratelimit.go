package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether a client may make another limited request.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

const (
	bucketIdleThreshold = time.Hour
	cleanupInterval     = 30 * time.Minute
)

type clientBucket struct {
	tokens     int
	lastRefill time.Time
}

// MemoryLimiter is a per-client token bucket that refills completely once per window.
type MemoryLimiter struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	clients  map[string]*clientBucket
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryLimiter creates a limiter allowing capacity requests per window
// and starts its idle bucket cleanup.
func NewMemoryLimiter(capacity int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		capacity: capacity,
		window:   window,
		clients:  make(map[string]*clientBucket),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

func (l *MemoryLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

func (l *MemoryLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, bucket := range l.clients {
		if now.Sub(bucket.lastRefill) > bucketIdleThreshold {
			delete(l.clients, key)
		}
	}
}

// Allow takes a token from key's bucket.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket, exists := l.clients[key]
	if !exists {
		l.clients[key] = &clientBucket{tokens: l.capacity - 1, lastRefill: now}
		return l.capacity > 0, nil
	}

	if now.Sub(bucket.lastRefill) >= l.window {
		bucket.tokens = l.capacity
		bucket.lastRefill = now
	}
	if bucket.tokens <= 0 {
		return false, nil
	}
	bucket.tokens--
	return true, nil
}

// Close stops the cleanup goroutine.
func (l *MemoryLimiter) Close() error {
	l.stopOnce.Do(func() { close(l.stop) })
	return nil
}

// RedisLimiter counts requests per client in fixed windows stored in Redis,
// so every server instance shares the same budget.
type RedisLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
	prefix   string
	now      func() time.Time
}

// NewRedisLimiter connects to addr and verifies the connection. window must
// be positive.
func NewRedisLimiter(ctx context.Context, addr string, requests int, window time.Duration) (*RedisLimiter, error) {
	if window <= 0 {
		return nil, fmt.Errorf("rate limit window must be positive, got %s", window)
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return &RedisLimiter{
		client:   client,
		requests: requests,
		window:   window,
		prefix:   "emi:ratelimit:",
		now:      time.Now,
	}, nil
}

// Allow increments key's counter for the current window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	slot := l.now().UnixNano() / int64(l.window)
	redisKey := l.prefix + key + ":" + strconv.FormatInt(slot, 10)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit counter %s: %w", redisKey, err)
	}
	return incr.Val() <= int64(l.requests), nil
}

// Close closes the Redis client.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// rateLimited wraps next so that each client IP is checked against limiter.
// Limiter failures let the request through.
func rateLimited(limiter Limiter, logger *zap.Logger, next http.HandlerFunc) http.HandlerFunc {
	if limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		allowed, err := limiter.Allow(r.Context(), ip)
		if err != nil {
			logger.Warn("rate limiter unavailable, allowing request",
				zap.String("op", "server.rateLimited"),
				zap.String("client", ip),
				zap.Error(err),
			)
			allowed = true
		}
		if !allowed {
			logger.Info("rate limit exceeded",
				zap.String("op", "server.rateLimited"),
				zap.String("client", ip),
				zap.String("path", r.URL.Path),
			)
			writeJSON(logger, w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next(w, r)
	}
}
