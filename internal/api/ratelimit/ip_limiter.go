package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	DefaultRequestsPerMinute = 120
	DefaultIdleTTL           = 10 * time.Minute
)

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter throttles trigger endpoints per client address with a token
// bucket, so a misbehaving uploader cannot flood the resolver queue.
type IPLimiter struct {
	mu      sync.Mutex
	buckets map[string]*ipBucket
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

// NewIPLimiter allows perMinute requests per IP with an equal burst.
// perMinute <= 0 uses DefaultRequestsPerMinute.
func NewIPLimiter(perMinute int) *IPLimiter {
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	return &IPLimiter{
		buckets: make(map[string]*ipBucket),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
	}
}

// Middleware rejects requests over the per-IP budget with 429 Too Many Requests.
func (l *IPLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
			}
			return next(c)
		}
	}
}

// Allow reports whether a request from ip may proceed.
func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket, exists := l.buckets[ip]
	if !exists {
		bucket = &ipBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

// Cleanup drops buckets idle for longer than the idle TTL.
func (l *IPLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	for ip, bucket := range l.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}

// StartCleanup runs Cleanup every interval until stop is closed.
func (l *IPLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
