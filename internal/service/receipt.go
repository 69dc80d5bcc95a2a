package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperr "github.com/shivbardolabs/ShipOS-sub002/internal/errors"
	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
	"github.com/shivbardolabs/ShipOS-sub002/internal/store"
)

// ReceiptService applies provider delivery receipts to notification
// records. Provider-specific webhook parsing happens upstream; this
// is the provider-agnostic entry point.
type ReceiptService interface {
	ApplyReceipt(ctx context.Context, id string, status model.Status) (*model.Notification, error)
}

type receiptService struct {
	notifs store.NotificationStorage
	events EventPublisher
	l      *slog.Logger
	now    func() time.Time
}

// NewReceiptService builds the receipt applier. events may be nil.
func NewReceiptService(notifs store.NotificationStorage, events EventPublisher, logger *slog.Logger) ReceiptService {
	return &receiptService{notifs: notifs, events: events, l: logger, now: time.Now}
}

// ApplyReceipt transitions a sent or partially sent record to
// delivered or bounced.
func (s *receiptService) ApplyReceipt(ctx context.Context, id string, status model.Status) (*model.Notification, error) {
	if status != model.StatusDelivered && status != model.StatusBounced {
		return nil, fmt.Errorf("%w: receipt status must be delivered or bounced, got %q",
			apperr.ErrInvalidTransition, status)
	}

	n, err := s.notifs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status != model.StatusSent && n.Status != model.StatusPartiallySent {
		return nil, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, n.Status, status)
	}

	if status == model.StatusDelivered {
		deliveredAt := s.now()
		if err := s.notifs.MarkDelivered(ctx, id, deliveredAt); err != nil {
			return nil, err
		}
		n.DeliveredAt = &deliveredAt
	} else {
		if err := s.notifs.UpdateStatus(ctx, id, model.StatusBounced, n.SentAt, "bounced"); err != nil {
			return nil, err
		}
	}
	n.Status = status

	if s.events != nil {
		ev := model.StatusEvent{
			NotificationID: n.ID,
			CustomerID:     n.CustomerID,
			Type:           n.Type,
			Channel:        n.Channel,
			Status:         n.Status,
			At:             s.now(),
		}
		if err := s.events.Publish(ctx, ev); err != nil {
			s.l.WarnContext(ctx, "Failed to publish receipt event",
				slog.String("id", n.ID), slog.Any("error", err))
		}
	}

	s.l.InfoContext(ctx, "Delivery receipt applied",
		slog.String("id", n.ID), slog.String("status", string(status)))
	return n, nil
}
