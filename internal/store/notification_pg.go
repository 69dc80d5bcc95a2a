package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	apperr "github.com/shivbardolabs/ShipOS-sub002/internal/errors"
	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
)

type notificationStorage struct {
	db *sqlx.DB
}

// NewNotificationStorage builds the Postgres-backed notification store.
func NewNotificationStorage(db *sqlx.DB) NotificationStorage {
	return &notificationStorage{db: db}
}

// Create inserts a new notification record. The caller sets id,
// status and created_at beforehand.
func (s *notificationStorage) Create(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return fmt.Errorf("notification cannot be nil")
	}
	query := `INSERT INTO notifications
		(id, type, channel, status, subject, body, customer_id, attempt_count, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.Type, n.Channel, n.Status, n.Subject, n.Body,
		n.CustomerID, n.AttemptCount, n.LastError, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *notificationStorage) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	query := `SELECT * FROM notifications WHERE id = $1`
	if err := s.db.GetContext(ctx, &n, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return &n, nil
}

func (s *notificationStorage) UpdateStatus(ctx context.Context, id string, status model.Status, sentAt *time.Time, lastError string) error {
	query := `UPDATE notifications SET status = $1, sent_at = $2, last_error = $3 WHERE id = $4`
	res, err := s.db.ExecContext(ctx, query, status, sentAt, lastError, id)
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.ErrNotificationNotFound
	}
	return nil
}

func (s *notificationStorage) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	query := `UPDATE notifications SET status = $1, delivered_at = $2 WHERE id = $3`
	res, err := s.db.ExecContext(ctx, query, model.StatusDelivered, deliveredAt, id)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.ErrNotificationNotFound
	}
	return nil
}

func (s *notificationStorage) IncrementAttempt(ctx context.Context, id string) (int, error) {
	var count int
	query := `UPDATE notifications SET attempt_count = attempt_count + 1 WHERE id = $1 RETURNING attempt_count`
	if err := s.db.QueryRowxContext(ctx, query, id).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperr.ErrNotificationNotFound
		}
		return 0, fmt.Errorf("increment attempt: %w", err)
	}
	return count, nil
}

// RetryCandidates selects failed and bounced records, oldest first.
// At-cap records are included so the retry manager can transition
// them to abandoned.
func (s *notificationStorage) RetryCandidates(ctx context.Context, f RetryFilter) ([]model.Notification, error) {
	query := `SELECT * FROM notifications
		WHERE status IN ($1, $2)`
	args := []interface{}{model.StatusFailed, model.StatusBounced}

	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if f.MaxAge > 0 {
		args = append(args, time.Now().Add(-f.MaxAge))
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	query += " ORDER BY created_at ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var notifs []model.Notification
	if err := s.db.SelectContext(ctx, &notifs, query, args...); err != nil {
		return nil, fmt.Errorf("select retry candidates: %w", err)
	}
	return notifs, nil
}

func (s *notificationStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
