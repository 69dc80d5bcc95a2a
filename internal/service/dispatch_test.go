package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "github.com/shivbardolabs/ShipOS-sub002/internal/errors"
	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
	"github.com/shivbardolabs/ShipOS-sub002/internal/template"
	"github.com/shivbardolabs/ShipOS-sub002/internal/transport"
)

type dispatchFixture struct {
	svc       DispatchService
	customers *fakeCustomerStore
	notifs    *fakeNotifStore
	limiter   *stubLimiter
	email     *fakeEmailSender
	sms       *fakeSMSSender
	events    *fakePublisher
}

func newDispatchFixture() *dispatchFixture {
	f := &dispatchFixture{
		customers: newFakeCustomerStore(testCustomer()),
		notifs:    newFakeNotifStore(),
		limiter:   &stubLimiter{},
		email:     &fakeEmailSender{result: transport.SendResult{Success: true, MessageID: "em-1"}},
		sms:       &fakeSMSSender{result: transport.SendResult{Success: true, MessageID: "sm-1"}},
		events:    &fakePublisher{},
	}
	f.svc = NewDispatchService(
		f.customers, f.notifs, f.limiter, template.Default(),
		f.email, f.sms, f.events, time.Second, testLogger(),
	)
	return f
}

func arrivalPayload() model.DispatchPayload {
	return model.DispatchPayload{
		Type:       model.TypePackageArrival,
		CustomerID: "cust-1",
		Data:       map[string]interface{}{"carrier": "ups", "trackingNumber": "1Z999"},
	}
}

func TestDispatch_BothChannelsSucceed(t *testing.T) {
	f := newDispatchFixture()

	result, err := f.svc.Dispatch(context.Background(), arrivalPayload())
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSent, result.Outcome)
	assert.Empty(t, result.FailedChannels)
	require.NotNil(t, result.EmailResult)
	require.NotNil(t, result.SMSResult)
	assert.True(t, result.EmailResult.Success)
	assert.True(t, result.SMSResult.Success)

	n := f.notifs.single()
	require.NotNil(t, n)
	assert.Equal(t, model.StatusSent, n.Status)
	assert.Equal(t, model.ChannelBoth, n.Channel)
	assert.Equal(t, 1, n.AttemptCount)
	assert.NotNil(t, n.SentAt)

	// Successful sends keep their rate-limit reservation.
	assert.Equal(t, 1, f.limiter.reserved)
	assert.Equal(t, 0, f.limiter.released)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, model.StatusSent, f.events.events[0].Status)
	assert.Equal(t, "cust-1", f.events.events[0].CustomerID)
}

func TestDispatch_CustomerNotFoundLeavesNoRecord(t *testing.T) {
	f := newDispatchFixture()

	payload := arrivalPayload()
	payload.CustomerID = "nobody"
	_, err := f.svc.Dispatch(context.Background(), payload)

	assert.True(t, apperr.IsNotFound(err))
	assert.Zero(t, f.notifs.count())
	assert.Zero(t, f.limiter.reserved)
}

func TestDispatch_InvalidPayload(t *testing.T) {
	f := newDispatchFixture()

	tests := []struct {
		name   string
		mutate func(*model.DispatchPayload)
	}{
		{"missing customer id", func(p *model.DispatchPayload) { p.CustomerID = "" }},
		{"unknown type", func(p *model.DispatchPayload) { p.Type = "carrier_pigeon" }},
		{"unknown channel", func(p *model.DispatchPayload) { p.Channel = "fax" }},
		{"custom without body", func(p *model.DispatchPayload) {
			p.Type = model.TypeCustom
			p.Body = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := arrivalPayload()
			tt.mutate(&payload)
			_, err := f.svc.Dispatch(context.Background(), payload)
			assert.ErrorIs(t, err, apperr.ErrInvalidPayload)
		})
	}
	assert.Zero(t, f.notifs.count())
}

func TestDispatch_UnknownTemplateLeavesNoRecord(t *testing.T) {
	f := newDispatchFixture()
	// An empty registry makes every type unresolvable.
	f.svc = NewDispatchService(
		f.customers, f.notifs, f.limiter, template.NewRegistry(),
		f.email, f.sms, f.events, time.Second, testLogger(),
	)

	_, err := f.svc.Dispatch(context.Background(), arrivalPayload())

	assert.ErrorIs(t, err, apperr.ErrUnknownTemplate)
	assert.Zero(t, f.notifs.count())
	assert.Zero(t, f.limiter.reserved)
}

func TestDispatch_RateLimitedLeavesNoRecord(t *testing.T) {
	f := newDispatchFixture()
	f.limiter.deny = true
	f.limiter.retryAfter = 600

	_, err := f.svc.Dispatch(context.Background(), arrivalPayload())

	rl, ok := apperr.AsRateLimited(err)
	require.True(t, ok)
	assert.Equal(t, 600, rl.RetryAfterSeconds)

	assert.Zero(t, f.notifs.count())
	assert.Empty(t, f.email.sent)
	assert.Empty(t, f.sms.sent)
	assert.Empty(t, f.events.events)
}

func TestDispatch_SkipsSMSWithoutPhone(t *testing.T) {
	f := newDispatchFixture()
	c := testCustomer()
	c.Phone = ""
	f.customers = newFakeCustomerStore(c)
	f.svc = NewDispatchService(
		f.customers, f.notifs, f.limiter, template.Default(),
		f.email, f.sms, f.events, time.Second, testLogger(),
	)

	payload := arrivalPayload()
	payload.Channel = model.ChannelBoth
	result, err := f.svc.Dispatch(context.Background(), payload)
	require.NoError(t, err)

	// A channel without a usable contact field is skipped, not failed.
	assert.Equal(t, model.OutcomeSent, result.Outcome)
	assert.NotNil(t, result.EmailResult)
	assert.Nil(t, result.SMSResult)
	assert.Empty(t, f.sms.sent)
}

func TestDispatch_PartialFailureKeepsReservation(t *testing.T) {
	f := newDispatchFixture()
	f.sms.result = transport.SendResult{Success: false, Error: "undeliverable"}

	result, err := f.svc.Dispatch(context.Background(), arrivalPayload())
	require.NoError(t, err)

	assert.Equal(t, model.OutcomePartiallySent, result.Outcome)
	assert.Equal(t, []model.Channel{model.ChannelSMS}, result.FailedChannels)

	n := f.notifs.single()
	require.NotNil(t, n)
	assert.Equal(t, model.StatusPartiallySent, n.Status)
	assert.NotNil(t, n.SentAt)
	assert.Contains(t, n.LastError, "sms: undeliverable")

	// Something reached the customer, so the send still counts against
	// the rate limit.
	assert.Equal(t, 1, f.limiter.reserved)
	assert.Equal(t, 0, f.limiter.released)
}

func TestDispatch_TotalFailureReleasesReservation(t *testing.T) {
	f := newDispatchFixture()
	f.email.result = transport.SendResult{Success: false, Error: "smtp 550"}
	f.sms.result = transport.SendResult{Success: false, Error: "undeliverable"}

	result, err := f.svc.Dispatch(context.Background(), arrivalPayload())
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeFailed, result.Outcome)
	assert.ElementsMatch(t, []model.Channel{model.ChannelEmail, model.ChannelSMS}, result.FailedChannels)

	n := f.notifs.single()
	require.NotNil(t, n)
	assert.Equal(t, model.StatusFailed, n.Status)
	assert.Nil(t, n.SentAt)
	assert.Contains(t, n.LastError, "email: smtp 550")
	assert.Contains(t, n.LastError, "sms: undeliverable")

	// Nothing reached the customer, so the reserved slot is handed back.
	assert.Equal(t, 1, f.limiter.reserved)
	assert.Equal(t, 1, f.limiter.released)
}

func TestDispatch_NoDeliverableChannelFails(t *testing.T) {
	f := newDispatchFixture()
	c := testCustomer()
	c.Email = ""
	c.Phone = ""
	f.customers = newFakeCustomerStore(c)
	f.svc = NewDispatchService(
		f.customers, f.notifs, f.limiter, template.Default(),
		f.email, f.sms, f.events, time.Second, testLogger(),
	)

	result, err := f.svc.Dispatch(context.Background(), arrivalPayload())
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeFailed, result.Outcome)
	n := f.notifs.single()
	require.NotNil(t, n)
	assert.Equal(t, model.StatusFailed, n.Status)
	assert.Equal(t, "no deliverable channel for customer", n.LastError)
	assert.Equal(t, 1, f.limiter.released)
	assert.Empty(t, f.email.sent)
	assert.Empty(t, f.sms.sent)
}

func TestDispatch_ExplicitChannelOverridesPreferences(t *testing.T) {
	f := newDispatchFixture()

	payload := arrivalPayload()
	payload.Channel = model.ChannelSMS
	result, err := f.svc.Dispatch(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSent, result.Outcome)
	assert.Nil(t, result.EmailResult)
	require.NotNil(t, result.SMSResult)
	assert.Empty(t, f.email.sent)
	require.Len(t, f.sms.sent, 1)
	assert.Equal(t, "+15551234567", f.sms.sent[0].To)
}

func TestDispatch_CustomTypeUsesVerbatimContent(t *testing.T) {
	f := newDispatchFixture()

	payload := model.DispatchPayload{
		Type:       model.TypeCustom,
		CustomerID: "cust-1",
		Subject:    "Holiday hours",
		Body:       "We close at noon on Friday.",
	}
	result, err := f.svc.Dispatch(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSent, result.Outcome)

	require.Len(t, f.email.sent, 1)
	assert.Equal(t, "Holiday hours", f.email.sent[0].Subject)
	require.Len(t, f.sms.sent, 1)
	assert.Equal(t, "We close at noon on Friday.", f.sms.sent[0].Body)

	n := f.notifs.single()
	require.NotNil(t, n)
	assert.Equal(t, "Holiday hours", n.Subject)
	assert.Equal(t, "We close at noon on Friday.", n.Body)
}

func TestDispatch_WelcomeSMSMarkedFirstMessage(t *testing.T) {
	f := newDispatchFixture()

	payload := model.DispatchPayload{Type: model.TypeWelcome, CustomerID: "cust-1"}
	_, err := f.svc.Dispatch(context.Background(), payload)
	require.NoError(t, err)

	require.Len(t, f.sms.sent, 1)
	assert.True(t, f.sms.sent[0].FirstMessage)
}

func TestRedispatch_IncrementsAttemptAndSends(t *testing.T) {
	f := newDispatchFixture()

	// Seed a failed record from a real dispatch.
	f.email.result = transport.SendResult{Success: false, Error: "smtp 550"}
	f.sms.result = transport.SendResult{Success: false, Error: "undeliverable"}
	_, err := f.svc.Dispatch(context.Background(), arrivalPayload())
	require.NoError(t, err)

	f.email.result = transport.SendResult{Success: true, MessageID: "em-2"}
	f.sms.result = transport.SendResult{Success: true, MessageID: "sm-2"}

	n := f.notifs.single()
	result, err := f.svc.Redispatch(context.Background(), n)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSent, result.Outcome)
	updated := f.notifs.single()
	assert.Equal(t, 2, updated.AttemptCount)
	assert.Equal(t, model.StatusSent, updated.Status)
}

func TestRedispatch_RateLimited(t *testing.T) {
	f := newDispatchFixture()

	f.email.result = transport.SendResult{Success: false, Error: "smtp 550"}
	f.sms.result = transport.SendResult{Success: false, Error: "undeliverable"}
	_, err := f.svc.Dispatch(context.Background(), arrivalPayload())
	require.NoError(t, err)

	f.limiter.deny = true
	f.limiter.retryAfter = 120

	n := f.notifs.single()
	_, err = f.svc.Redispatch(context.Background(), n)

	rl, ok := apperr.AsRateLimited(err)
	require.True(t, ok)
	assert.Equal(t, 120, rl.RetryAfterSeconds)

	// The record stays untouched for a later cycle.
	updated := f.notifs.single()
	assert.Equal(t, model.StatusFailed, updated.Status)
	assert.Equal(t, 1, updated.AttemptCount)
}
