// Package ratelimit throttles the admin API with per-key token buckets.
package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"triggerd/internal/common/errors"
)

type Config struct {
	Enabled           bool    `json:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
	// Keys idle for longer than CleanupPeriod are forgotten.
	CleanupPeriod time.Duration `json:"cleanup_period"`
	MaxKeys       int           `json:"max_keys"`
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RequestsPerSecond: 10,
		Burst:             20,
		CleanupPeriod:     5 * time.Minute,
		MaxKeys:           10000,
	}
}

// Validate fills defaults and rejects nonsensical limits.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerSecond <= 0 {
		return errors.ConfigError(fmt.Sprintf("requests per second must be positive, got %v", c.RequestsPerSecond))
	}
	if c.Burst <= 0 {
		c.Burst = int(c.RequestsPerSecond)
		if c.Burst < 1 {
			c.Burst = 1
		}
	}
	if c.CleanupPeriod <= 0 {
		c.CleanupPeriod = 5 * time.Minute
	}
	if c.MaxKeys <= 0 {
		c.MaxKeys = 10000
	}
	return nil
}

type entry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	mu          sync.Mutex
	config      Config
	limiters    map[string]*entry
	lastCleanup time.Time
	now         func() time.Time
}

func NewLimiter(config Config) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Limiter{
		config:      config,
		limiters:    make(map[string]*entry),
		lastCleanup: time.Now(),
		now:         time.Now,
	}, nil
}

// Allow takes a token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	if !l.config.Enabled {
		return true
	}
	return l.limiterFor(key).AllowN(l.now(), 1)
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCleanup) > l.config.CleanupPeriod {
		l.cleanup(now)
	}

	e, ok := l.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst)}
		l.limiters[key] = e
		if len(l.limiters) > l.config.MaxKeys {
			l.cleanup(now)
		}
	}
	e.lastUsed = now
	return e.limiter
}

func (l *Limiter) cleanup(now time.Time) {
	cutoff := now.Add(-l.config.CleanupPeriod)
	for key, e := range l.limiters {
		if e.lastUsed.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
	l.lastCleanup = now
}

// Keys returns the number of tracked keys.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Middleware rejects requests over the limit with 429. Requests whose key
// function returns "" are not limited.
func (l *Limiter) Middleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(l.config.RequestsPerSecond, 'f', -1, 64))
			w.Header().Set("X-RateLimit-Burst", strconv.Itoa(l.config.Burst))
			if !l.Allow(key) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPKey keys requests by client address, honouring proxy headers.
func IPKey(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.Header.Get("X-Real-IP")
	}
	if ip == "" {
		ip = r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
	}
	return "ip:" + ip
}
