package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
)

func reasonHourly(retryAfter int) string {
	return fmt.Sprintf("hourly limit reached (%d/hr), retry in %ds", MaxPerHour, retryAfter)
}

func reasonDaily(retryAfter int) string {
	return fmt.Sprintf("daily limit reached (%d/day), retry in %ds", MaxPerDay, retryAfter)
}

// MemoryLimiter is the single-instance Limiter: a mutex-guarded map of
// customerID to send timestamps. Limiter state does not survive a
// process restart and does not scale horizontally; multi-instance
// deployments should use the Redis-backed limiter instead.
type MemoryLimiter struct {
	mu          sync.Mutex
	sendLog     map[string][]time.Time
	lastPruneAt time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryLimiter builds an empty in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		sendLog:     make(map[string][]time.Time),
		lastPruneAt: time.Now(),
		now:         time.Now,
	}
}

// Check evaluates both windows without mutating state.
func (l *MemoryLimiter) Check(_ context.Context, customerID string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()
	return decide(l.now(), l.sendLog[customerID]), nil
}

// Reserve evaluates both windows and, when allowed, appends the send
// timestamp in the same critical section. The returned release
// function removes the entry again if the dispatch fails outright.
func (l *MemoryLimiter) Reserve(_ context.Context, customerID string) (Decision, ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked()

	now := l.now()
	d := decide(now, l.sendLog[customerID])
	if !d.Allowed {
		return d, func() {}, nil
	}

	l.sendLog[customerID] = append(l.sendLog[customerID], now)

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.sendLog[customerID] = removeOne(l.sendLog[customerID], now)
		})
	}
	return d, release, nil
}

// Record appends the current timestamp unconditionally. Callers must
// only invoke it after a send is confirmed successful.
func (l *MemoryLimiter) Record(_ context.Context, customerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendLog[customerID] = append(l.sendLog[customerID], l.now())
	return nil
}

// Reset clears all history for a customer (administrative override).
func (l *MemoryLimiter) Reset(_ context.Context, customerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sendLog, customerID)
	return nil
}

// Status returns current window counts and caps for display purposes.
func (l *MemoryLimiter) Status(_ context.Context, customerID string) (model.RateLimitStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var hourCount, dayCount int
	for _, ts := range l.sendLog[customerID] {
		if ts.After(now.Add(-dayWindow)) {
			dayCount++
		}
		if ts.After(now.Add(-hourWindow)) {
			hourCount++
		}
	}
	return model.RateLimitStatus{
		CustomerID: customerID,
		HourCount:  hourCount,
		DayCount:   dayCount,
		HourLimit:  MaxPerHour,
		DayLimit:   MaxPerDay,
	}, nil
}

// pruneLocked sweeps entries older than the day window, at most every
// pruneInterval. Caller must hold l.mu.
func (l *MemoryLimiter) pruneLocked() {
	now := l.now()
	if now.Sub(l.lastPruneAt) < pruneInterval {
		return
	}
	l.lastPruneAt = now

	cutoff := now.Add(-dayWindow)
	for customerID, timestamps := range l.sendLog {
		valid := timestamps[:0]
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				valid = append(valid, ts)
			}
		}
		if len(valid) == 0 {
			delete(l.sendLog, customerID)
		} else {
			l.sendLog[customerID] = valid
		}
	}
}

func removeOne(timestamps []time.Time, target time.Time) []time.Time {
	for i := len(timestamps) - 1; i >= 0; i-- {
		if timestamps[i].Equal(target) {
			return append(timestamps[:i], timestamps[i+1:]...)
		}
	}
	return timestamps
}
