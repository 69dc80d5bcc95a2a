package store

import (
	"context"
	"time"

	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
)

// RetryFilter bounds retry-candidate selection to avoid unbounded
// reprocessing.
type RetryFilter struct {
	CustomerID string
	MaxAge     time.Duration
	Limit      int
}

// NotificationStorage defines the persistence operations for
// notification records. The engine calls it synchronously within the
// dispatch sequence.
type NotificationStorage interface {
	Create(ctx context.Context, n *model.Notification) error
	GetByID(ctx context.Context, id string) (*model.Notification, error)
	// UpdateStatus rewrites status, sent_at (nullable) and last_error.
	UpdateStatus(ctx context.Context, id string, status model.Status, sentAt *time.Time, lastError string) error
	// MarkDelivered applies an externally-driven delivery receipt.
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error
	// IncrementAttempt bumps attempt_count and returns the new value.
	IncrementAttempt(ctx context.Context, id string) (int, error)
	// RetryCandidates returns failed or bounced records, oldest first.
	RetryCandidates(ctx context.Context, f RetryFilter) ([]model.Notification, error)
	Ping(ctx context.Context) error
}

// CustomerStorage is the read-only customer lookup boundary. The
// customer record is owned by the platform's data store.
type CustomerStorage interface {
	GetByID(ctx context.Context, id string) (*model.Customer, error)
}
