package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	apperr "github.com/shivbardolabs/ShipOS-sub002/internal/errors"
	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
	"github.com/shivbardolabs/ShipOS-sub002/internal/store"
)

// RetryService re-evaluates failed and bounced notifications and
// re-submits them through the dispatch path, subject to the same rate
// limits and the attempt cap.
type RetryService interface {
	// Start runs the periodic retry worker until ctx is cancelled.
	Start(ctx context.Context) error
	RetryFailed(ctx context.Context, f store.RetryFilter) ([]model.RetryResult, error)
	RetrySingle(ctx context.Context, id string) (model.RetryResult, error)
}

type retryService struct {
	notifs     store.NotificationStorage
	dispatcher DispatchService
	interval   time.Duration
	batchSize  int
	maxAge     time.Duration
	workers    int
	l          *slog.Logger
}

// NewRetryService builds the retry manager.
func NewRetryService(
	notifs store.NotificationStorage,
	dispatcher DispatchService,
	interval time.Duration,
	batchSize int,
	maxAge time.Duration,
	workers int,
	logger *slog.Logger,
) RetryService {
	if workers <= 0 {
		workers = 1
	}
	return &retryService{
		notifs:     notifs,
		dispatcher: dispatcher,
		interval:   interval,
		batchSize:  batchSize,
		maxAge:     maxAge,
		workers:    workers,
		l:          logger,
	}
}

// Start begins periodic processing of retry candidates.
func (s *retryService) Start(ctx context.Context) error {
	s.l.InfoContext(ctx, "Starting retry worker",
		slog.Duration("interval", s.interval),
		slog.Int("batch_size", s.batchSize))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.l.InfoContext(ctx, "Retry worker shutting down")
			return ctx.Err()
		case <-ticker.C:
			filter := store.RetryFilter{MaxAge: s.maxAge, Limit: s.batchSize}
			if _, err := s.RetryFailed(ctx, filter); err != nil {
				s.l.ErrorContext(ctx, "Error processing retry batch", slog.Any("error", err))
			}
		}
	}
}

// RetryFailed processes all current candidates concurrently, capped by
// the worker limit. Each candidate is independent: one failure never
// rolls back or blocks the others.
func (s *retryService) RetryFailed(ctx context.Context, f store.RetryFilter) ([]model.RetryResult, error) {
	candidates, err := s.notifs.RetryCandidates(ctx, f)
	if err != nil {
		s.l.ErrorContext(ctx, "Error fetching retry candidates", slog.Any("error", err))
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	s.l.InfoContext(ctx, "Processing retry batch", slog.Int("count", len(candidates)))

	var mu sync.Mutex
	results := make([]model.RetryResult, 0, len(candidates))

	eg := new(errgroup.Group)
	eg.SetLimit(s.workers)
	for _, n := range candidates {
		n := n
		eg.Go(func() error {
			res := s.retryOne(ctx, &n)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return results, nil
}

// RetrySingle re-submits one record on demand.
func (s *retryService) RetrySingle(ctx context.Context, id string) (model.RetryResult, error) {
	n, err := s.notifs.GetByID(ctx, id)
	if err != nil {
		return model.RetryResult{}, err
	}
	if n.Status != model.StatusFailed && n.Status != model.StatusBounced {
		return model.RetryResult{
			NotificationID: id,
			Disposition:    model.RetryErrored,
			Reason:         "status " + string(n.Status) + " is not retryable",
		}, nil
	}
	return s.retryOne(ctx, n), nil
}

func (s *retryService) retryOne(ctx context.Context, n *model.Notification) model.RetryResult {
	// Records at the attempt cap move to the terminal abandoned state
	// instead of staying perpetually failed.
	if n.AttemptCount >= model.MaxAttempts {
		if err := s.notifs.UpdateStatus(ctx, n.ID, model.StatusAbandoned, n.SentAt, n.LastError); err != nil {
			s.l.ErrorContext(ctx, "Failed to abandon notification",
				slog.String("id", n.ID), slog.Any("error", err))
			return model.RetryResult{NotificationID: n.ID, Disposition: model.RetryErrored, Reason: err.Error()}
		}
		s.l.InfoContext(ctx, "Notification abandoned at attempt cap",
			slog.String("id", n.ID), slog.Int("attempts", n.AttemptCount))
		return model.RetryResult{
			NotificationID: n.ID,
			Disposition:    model.RetryAbandoned,
			Reason:         "attempt cap reached",
		}
	}

	result, err := s.dispatcher.Redispatch(ctx, n)
	if err != nil {
		// A rate-limited retry leaves the record untouched and is
		// reported as skipped, not dropped.
		if rl, ok := apperr.AsRateLimited(err); ok {
			return model.RetryResult{
				NotificationID:    n.ID,
				Disposition:       model.RetrySkipped,
				Reason:            "rate_limited",
				RetryAfterSeconds: rl.RetryAfterSeconds,
			}
		}
		s.l.ErrorContext(ctx, "Retry dispatch failed",
			slog.String("id", n.ID), slog.Any("error", err))
		return model.RetryResult{NotificationID: n.ID, Disposition: model.RetryErrored, Reason: err.Error()}
	}

	return model.RetryResult{
		NotificationID: n.ID,
		Disposition:    model.RetryDispatched,
		Outcome:        result.Outcome,
	}
}
