package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/shivbardolabs/ShipOS-sub002/internal/errors"
	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
	"github.com/shivbardolabs/ShipOS-sub002/internal/store"
)

// stubDispatcher lets retry tests control the redispatch outcome per
// notification ID.
type stubDispatcher struct {
	mu       sync.Mutex
	errs     map[string]error
	outcomes map[string]model.DispatchOutcome
	calls    []string
}

func newStubDispatcher() *stubDispatcher {
	return &stubDispatcher{
		errs:     make(map[string]error),
		outcomes: make(map[string]model.DispatchOutcome),
	}
}

func (d *stubDispatcher) Dispatch(_ context.Context, _ model.DispatchPayload) (*model.DispatchResult, error) {
	panic("retry must use Redispatch")
}

func (d *stubDispatcher) Redispatch(_ context.Context, n *model.Notification) (*model.DispatchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, n.ID)
	if err := d.errs[n.ID]; err != nil {
		return nil, err
	}
	outcome := d.outcomes[n.ID]
	if outcome == "" {
		outcome = model.OutcomeSent
	}
	return &model.DispatchResult{NotificationID: n.ID, Outcome: outcome}, nil
}

func failedNotification(id string, attempts int) model.Notification {
	return model.Notification{
		ID:           id,
		Type:         model.TypePackageArrival,
		Channel:      model.ChannelBoth,
		Status:       model.StatusFailed,
		CustomerID:   "cust-1",
		AttemptCount: attempts,
		CreatedAt:    time.Now().Add(-time.Hour),
	}
}

func resultFor(t *testing.T, results []model.RetryResult, id string) model.RetryResult {
	t.Helper()
	for _, r := range results {
		if r.NotificationID == id {
			return r
		}
	}
	t.Fatalf("no result for %s", id)
	return model.RetryResult{}
}

func TestRetryFailed_DispatchesCandidates(t *testing.T) {
	notifs := newFakeNotifStore()
	notifs.candidates = []model.Notification{
		failedNotification("n-1", 1),
		failedNotification("n-2", 2),
	}
	dispatcher := newStubDispatcher()
	svc := NewRetryService(notifs, dispatcher, time.Minute, 100, 72*time.Hour, 4, testLogger())

	results, err := svc.RetryFailed(context.Background(), store.RetryFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, id := range []string{"n-1", "n-2"} {
		r := resultFor(t, results, id)
		assert.Equal(t, model.RetryDispatched, r.Disposition)
		assert.Equal(t, model.OutcomeSent, r.Outcome)
	}
	assert.ElementsMatch(t, []string{"n-1", "n-2"}, dispatcher.calls)
}

func TestRetryFailed_EmptyBatch(t *testing.T) {
	notifs := newFakeNotifStore()
	svc := NewRetryService(notifs, newStubDispatcher(), time.Minute, 100, 72*time.Hour, 4, testLogger())

	results, err := svc.RetryFailed(context.Background(), store.RetryFilter{Limit: 100})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetryFailed_AbandonsAtAttemptCap(t *testing.T) {
	notifs := newFakeNotifStore()
	capped := failedNotification("n-capped", model.MaxAttempts)
	require.NoError(t, notifs.Create(context.Background(), &capped))
	notifs.candidates = []model.Notification{capped}

	dispatcher := newStubDispatcher()
	svc := NewRetryService(notifs, dispatcher, time.Minute, 100, 72*time.Hour, 4, testLogger())

	results, err := svc.RetryFailed(context.Background(), store.RetryFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, model.RetryAbandoned, results[0].Disposition)
	assert.Empty(t, dispatcher.calls)

	stored, err := notifs.GetByID(context.Background(), "n-capped")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAbandoned, stored.Status)
}

func TestRetryFailed_RateLimitedCandidateIsSkipped(t *testing.T) {
	notifs := newFakeNotifStore()
	notifs.candidates = []model.Notification{
		failedNotification("n-limited", 1),
		failedNotification("n-ok", 1),
	}
	dispatcher := newStubDispatcher()
	dispatcher.errs["n-limited"] = apperr.NewRateLimited(300, "hourly limit reached")
	svc := NewRetryService(notifs, dispatcher, time.Minute, 100, 72*time.Hour, 4, testLogger())

	results, err := svc.RetryFailed(context.Background(), store.RetryFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, results, 2)

	limited := resultFor(t, results, "n-limited")
	assert.Equal(t, model.RetrySkipped, limited.Disposition)
	assert.Equal(t, "rate_limited", limited.Reason)
	assert.Equal(t, 300, limited.RetryAfterSeconds)

	// One rate-limited candidate never blocks the rest of the batch.
	ok := resultFor(t, results, "n-ok")
	assert.Equal(t, model.RetryDispatched, ok.Disposition)
}

func TestRetryFailed_ErrorIsIsolated(t *testing.T) {
	notifs := newFakeNotifStore()
	notifs.candidates = []model.Notification{
		failedNotification("n-err", 1),
		failedNotification("n-ok", 1),
	}
	dispatcher := newStubDispatcher()
	dispatcher.errs["n-err"] = errBoom
	svc := NewRetryService(notifs, dispatcher, time.Minute, 100, 72*time.Hour, 4, testLogger())

	results, err := svc.RetryFailed(context.Background(), store.RetryFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, model.RetryErrored, resultFor(t, results, "n-err").Disposition)
	assert.Equal(t, model.RetryDispatched, resultFor(t, results, "n-ok").Disposition)
}

func TestRetrySingle_NotRetryableStatus(t *testing.T) {
	notifs := newFakeNotifStore()
	sent := failedNotification("n-sent", 1)
	sent.Status = model.StatusSent
	require.NoError(t, notifs.Create(context.Background(), &sent))

	dispatcher := newStubDispatcher()
	svc := NewRetryService(notifs, dispatcher, time.Minute, 100, 72*time.Hour, 4, testLogger())

	result, err := svc.RetrySingle(context.Background(), "n-sent")
	require.NoError(t, err)
	assert.Equal(t, model.RetryErrored, result.Disposition)
	assert.Contains(t, result.Reason, "not retryable")
	assert.Empty(t, dispatcher.calls)
}

func TestRetrySingle_UnknownID(t *testing.T) {
	svc := NewRetryService(newFakeNotifStore(), newStubDispatcher(), time.Minute, 100, 72*time.Hour, 4, testLogger())

	_, err := svc.RetrySingle(context.Background(), "missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestRetrySingle_BouncedIsRetryable(t *testing.T) {
	notifs := newFakeNotifStore()
	bounced := failedNotification("n-bounced", 1)
	bounced.Status = model.StatusBounced
	require.NoError(t, notifs.Create(context.Background(), &bounced))

	dispatcher := newStubDispatcher()
	svc := NewRetryService(notifs, dispatcher, time.Minute, 100, 72*time.Hour, 4, testLogger())

	result, err := svc.RetrySingle(context.Background(), "n-bounced")
	require.NoError(t, err)
	assert.Equal(t, model.RetryDispatched, result.Disposition)
	assert.Equal(t, []string{"n-bounced"}, dispatcher.calls)
}
