package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	apperr "github.com/shivbardolabs/ShipOS-sub002/internal/errors"
	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
	"github.com/shivbardolabs/ShipOS-sub002/internal/ratelimit"
	"github.com/shivbardolabs/ShipOS-sub002/internal/store"
	"github.com/shivbardolabs/ShipOS-sub002/internal/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCustomer() model.Customer {
	return model.Customer{
		ID:              "cust-1",
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		Phone:           "5551234567",
		NotifyEmail:     true,
		NotifySMS:       true,
		PMBNumber:       "142",
		LocationName:    "Downtown Mail Center",
		LocationAddress: "1 Main St, Springfield",
	}
}

type fakeCustomerStore struct {
	customers map[string]model.Customer
}

func newFakeCustomerStore(customers ...model.Customer) *fakeCustomerStore {
	m := make(map[string]model.Customer, len(customers))
	for _, c := range customers {
		m[c.ID] = c
	}
	return &fakeCustomerStore{customers: m}
}

func (f *fakeCustomerStore) GetByID(_ context.Context, id string) (*model.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, apperr.ErrCustomerNotFound
	}
	return &c, nil
}

type fakeNotifStore struct {
	mu         sync.Mutex
	records    map[string]*model.Notification
	createErr  error
	candidates []model.Notification
}

func newFakeNotifStore() *fakeNotifStore {
	return &fakeNotifStore{records: make(map[string]*model.Notification)}
}

func (f *fakeNotifStore) Create(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *n
	f.records[n.ID] = &cp
	return nil
}

func (f *fakeNotifStore) GetByID(_ context.Context, id string) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.records[id]
	if !ok {
		return nil, apperr.ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNotifStore) UpdateStatus(_ context.Context, id string, status model.Status, sentAt *time.Time, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.records[id]
	if !ok {
		return apperr.ErrNotificationNotFound
	}
	n.Status = status
	n.SentAt = sentAt
	n.LastError = lastError
	return nil
}

func (f *fakeNotifStore) MarkDelivered(_ context.Context, id string, deliveredAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.records[id]
	if !ok {
		return apperr.ErrNotificationNotFound
	}
	n.Status = model.StatusDelivered
	n.DeliveredAt = &deliveredAt
	return nil
}

func (f *fakeNotifStore) IncrementAttempt(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.records[id]
	if !ok {
		return 0, apperr.ErrNotificationNotFound
	}
	n.AttemptCount++
	return n.AttemptCount, nil
}

func (f *fakeNotifStore) RetryCandidates(_ context.Context, _ store.RetryFilter) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.candidates, nil
}

func (f *fakeNotifStore) Ping(_ context.Context) error { return nil }

func (f *fakeNotifStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeNotifStore) single() *model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.records {
		cp := *n
		return &cp
	}
	return nil
}

// stubLimiter tracks reservations and releases; deny is flipped to
// simulate an exhausted window.
type stubLimiter struct {
	mu         sync.Mutex
	deny       bool
	retryAfter int
	reserved   int
	released   int
}

func (l *stubLimiter) decision() ratelimit.Decision {
	if l.deny {
		return ratelimit.Decision{Allowed: false, RetryAfterSeconds: l.retryAfter, Reason: "hourly limit reached"}
	}
	return ratelimit.Decision{Allowed: true}
}

func (l *stubLimiter) Check(_ context.Context, _ string) (ratelimit.Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.decision(), nil
}

func (l *stubLimiter) Reserve(_ context.Context, _ string) (ratelimit.Decision, ratelimit.ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.decision()
	if !d.Allowed {
		return d, func() {}, nil
	}
	l.reserved++
	var once sync.Once
	return d, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.released++
		})
	}, nil
}

func (l *stubLimiter) Record(_ context.Context, _ string) error { return nil }
func (l *stubLimiter) Reset(_ context.Context, _ string) error  { return nil }

func (l *stubLimiter) Status(_ context.Context, customerID string) (model.RateLimitStatus, error) {
	return model.RateLimitStatus{CustomerID: customerID}, nil
}

type fakeEmailSender struct {
	mu     sync.Mutex
	result transport.SendResult
	sent   []transport.EmailMessage
}

func (f *fakeEmailSender) SendEmail(_ context.Context, msg transport.EmailMessage) transport.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.result
}

type fakeSMSSender struct {
	mu     sync.Mutex
	result transport.SendResult
	sent   []transport.SMSMessage
}

func (f *fakeSMSSender) SendSMS(_ context.Context, msg transport.SMSMessage) transport.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.result
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.StatusEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, ev model.StatusEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

var errBoom = errors.New("boom")
