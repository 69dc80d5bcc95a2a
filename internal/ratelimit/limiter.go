// Package ratelimit implements the per-customer send-frequency limits:
// at most 3 sends per rolling hour and 10 per rolling 24 hours,
// independent of channel or notification type. Windows are sliding
// logs recomputed from raw send timestamps at check time.
package ratelimit

import (
	"context"
	"time"

	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
)

const (
	MaxPerHour = 3
	MaxPerDay  = 10

	hourWindow = time.Hour
	dayWindow  = 24 * time.Hour

	// pruneInterval bounds how often stale timestamps are swept.
	// Pruning is a memory bound, never a correctness concern: checks
	// always recompute windows from raw timestamps.
	pruneInterval = 5 * time.Minute
)

// Decision is the outcome of a limit check or reservation.
type Decision struct {
	Allowed bool
	// RetryAfterSeconds is the time until the oldest entry in the
	// violated window exits it, rounded up. Zero when allowed.
	RetryAfterSeconds int
	Reason            string
}

// ReleaseFunc undoes a reservation when the dispatch it admitted
// ultimately fails. Calling it more than once is a no-op.
type ReleaseFunc func()

// Limiter is the send-frequency gate. Reserve is the atomic
// check-and-record used on the dispatch path; Check is a read-only
// probe for the retry path and introspection. Record exists for
// callers that confirm success out of band; the orchestrator should
// prefer Reserve so two concurrent dispatches cannot both pass a
// check meant to admit only one.
type Limiter interface {
	Check(ctx context.Context, customerID string) (Decision, error)
	Reserve(ctx context.Context, customerID string) (Decision, ReleaseFunc, error)
	Record(ctx context.Context, customerID string) error
	Reset(ctx context.Context, customerID string) error
	Status(ctx context.Context, customerID string) (model.RateLimitStatus, error)
}

// decide evaluates both windows against the given send timestamps.
// Timestamps must be in append order (oldest first).
func decide(now time.Time, timestamps []time.Time) Decision {
	hourCut := now.Add(-hourWindow)
	dayCut := now.Add(-dayWindow)

	var hourCount, dayCount int
	var oldestHour, oldestDay time.Time
	for _, ts := range timestamps {
		if ts.After(dayCut) {
			if dayCount == 0 {
				oldestDay = ts
			}
			dayCount++
		}
		if ts.After(hourCut) {
			if hourCount == 0 {
				oldestHour = ts
			}
			hourCount++
		}
	}

	if hourCount >= MaxPerHour {
		retryAfter := ceilSeconds(oldestHour.Add(hourWindow).Sub(now))
		return Decision{
			Allowed:           false,
			RetryAfterSeconds: retryAfter,
			Reason:            reasonHourly(retryAfter),
		}
	}
	if dayCount >= MaxPerDay {
		retryAfter := ceilSeconds(oldestDay.Add(dayWindow).Sub(now))
		return Decision{
			Allowed:           false,
			RetryAfterSeconds: retryAfter,
			Reason:            reasonDaily(retryAfter),
		}
	}
	return Decision{Allowed: true}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
