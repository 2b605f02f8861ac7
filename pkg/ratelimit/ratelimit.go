// Package ratelimit bounds outbound request rate to an external dependency
// using a sliding time window over admission timestamps.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// pollInterval is how often Wait re-checks admission. We poll on a fixed
// short interval rather than computing the exact wake time; under sustained
// overload this gives FIFO-ish eviction with no starvation guarantee, which
// is an accepted simplification.
const pollInterval = 100 * time.Millisecond

// Limiter admits at most maxRequests within any sliding window of the
// configured duration. Safe for concurrent use.
type Limiter struct {
	mu         sync.Mutex
	maxRequests int
	window     time.Duration
	admissions []time.Time

	now func() time.Time // test hook
}

func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Acquire is non-blocking: it evicts admissions older than the window, then
// admits and records the caller if the window has room. Returns false when
// the window is saturated.
func (l *Limiter) Acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(l.admissions) && !l.admissions[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.admissions = append(l.admissions[:0], l.admissions[idx:]...)
	}

	if len(l.admissions) < l.maxRequests {
		l.admissions = append(l.admissions, now)
		return true
	}
	return false
}

// Wait blocks until admitted or ctx is done, polling Acquire.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Acquire() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
