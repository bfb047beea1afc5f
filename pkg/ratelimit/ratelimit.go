package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config contains configuration for the keyed rate limiter.
type Config struct {
	Burst  int           `json:"burst" yaml:"burst" default:"3"`     // Bucket capacity per key
	Period time.Duration `json:"period" yaml:"period" default:"30s"` // Full-refill period
}

// Limiter is a keyed token-bucket gate. Each distinct key owns an
// independent bucket with the configured burst capacity that fully refills
// over the configured period. Check never blocks; a denial is final for
// that instant.
type Limiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New creates a keyed limiter. Non-positive burst or period is a
// configuration error and fails startup.
func New(cfg *Config) (*Limiter, error) {
	if cfg.Burst <= 0 {
		return nil, fmt.Errorf("invalid rate-limit configuration: burst must be positive, got %d", cfg.Burst)
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("invalid rate-limit configuration: period must be positive, got %s", cfg.Period)
	}
	return &Limiter{
		limit:   rate.Every(cfg.Period / time.Duration(cfg.Burst)),
		burst:   cfg.Burst,
		buckets: make(map[string]*rate.Limiter),
	}, nil
}

// Check atomically attempts to consume one token from the key's bucket.
func (l *Limiter) Check(key string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow()
}
