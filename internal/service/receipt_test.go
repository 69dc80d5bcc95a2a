package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/shivbardolabs/ShipOS-sub002/internal/errors"
	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
)

func sentNotification(id string) model.Notification {
	sentAt := time.Now().Add(-time.Minute)
	return model.Notification{
		ID:           id,
		Type:         model.TypePackageArrival,
		Channel:      model.ChannelEmail,
		Status:       model.StatusSent,
		CustomerID:   "cust-1",
		AttemptCount: 1,
		CreatedAt:    sentAt.Add(-time.Second),
		SentAt:       &sentAt,
	}
}

func TestApplyReceipt_Delivered(t *testing.T) {
	notifs := newFakeNotifStore()
	n := sentNotification("n-1")
	require.NoError(t, notifs.Create(context.Background(), &n))
	events := &fakePublisher{}
	svc := NewReceiptService(notifs, events, testLogger())

	got, err := svc.ApplyReceipt(context.Background(), "n-1", model.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, got.Status)
	require.NotNil(t, got.DeliveredAt)

	stored, err := notifs.GetByID(context.Background(), "n-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, stored.Status)
	assert.NotNil(t, stored.DeliveredAt)

	require.Len(t, events.events, 1)
	assert.Equal(t, model.StatusDelivered, events.events[0].Status)
}

func TestApplyReceipt_Bounced(t *testing.T) {
	notifs := newFakeNotifStore()
	n := sentNotification("n-1")
	n.Status = model.StatusPartiallySent
	require.NoError(t, notifs.Create(context.Background(), &n))
	svc := NewReceiptService(notifs, nil, testLogger())

	got, err := svc.ApplyReceipt(context.Background(), "n-1", model.StatusBounced)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBounced, got.Status)

	stored, err := notifs.GetByID(context.Background(), "n-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBounced, stored.Status)
	// A bounce keeps the original send time on the record.
	assert.NotNil(t, stored.SentAt)
	assert.Equal(t, "bounced", stored.LastError)
}

func TestApplyReceipt_RejectsNonReceiptStatus(t *testing.T) {
	notifs := newFakeNotifStore()
	n := sentNotification("n-1")
	require.NoError(t, notifs.Create(context.Background(), &n))
	svc := NewReceiptService(notifs, nil, testLogger())

	_, err := svc.ApplyReceipt(context.Background(), "n-1", model.StatusSent)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestApplyReceipt_RejectsUnsentRecord(t *testing.T) {
	notifs := newFakeNotifStore()
	n := sentNotification("n-1")
	n.Status = model.StatusFailed
	require.NoError(t, notifs.Create(context.Background(), &n))
	svc := NewReceiptService(notifs, nil, testLogger())

	_, err := svc.ApplyReceipt(context.Background(), "n-1", model.StatusDelivered)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestApplyReceipt_UnknownID(t *testing.T) {
	svc := NewReceiptService(newFakeNotifStore(), nil, testLogger())

	_, err := svc.ApplyReceipt(context.Background(), "missing", model.StatusDelivered)
	assert.True(t, apperr.IsNotFound(err))
}
