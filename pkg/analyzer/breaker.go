package analyzer

import (
	"sync"
	"time"
)

// Breaker gates classifier calls behind a consecutive-failure threshold.
// Once the failure streak reaches the threshold the breaker trips and stays
// open for the cooldown period; while open, the agent skips the backend and
// leaves entries unclassified. The first call after the cooldown goes
// through again: a success resets the streak, another failure re-trips the
// breaker immediately.
type Breaker struct {
	mu       sync.RWMutex
	streak   int
	tripAt   int
	cooldown time.Duration
	reopenAt time.Time
}

// NewBreaker creates a breaker that trips after tripAt consecutive failures
// and holds open for the cooldown.
func NewBreaker(tripAt int, cooldown time.Duration) *Breaker {
	return &Breaker{
		tripAt:   tripAt,
		cooldown: cooldown,
	}
}

// Open reports whether calls should currently be skipped.
func (b *Breaker) Open() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.streak >= b.tripAt && time.Now().Before(b.reopenAt)
}

// Success clears the failure streak.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streak = 0
	b.reopenAt = time.Time{}
}

// Fail records one failure. Reaching the threshold (re)arms the cooldown.
func (b *Breaker) Fail() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streak++
	if b.streak >= b.tripAt {
		b.reopenAt = time.Now().Add(b.cooldown)
	}
}
