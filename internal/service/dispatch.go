package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shivbardolabs/ShipOS-sub002/internal/channel"
	apperr "github.com/shivbardolabs/ShipOS-sub002/internal/errors"
	"github.com/shivbardolabs/ShipOS-sub002/internal/metrics"
	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
	"github.com/shivbardolabs/ShipOS-sub002/internal/ratelimit"
	"github.com/shivbardolabs/ShipOS-sub002/internal/store"
	"github.com/shivbardolabs/ShipOS-sub002/internal/template"
	"github.com/shivbardolabs/ShipOS-sub002/internal/transport"
)

// EventPublisher emits status-change events to downstream consumers.
// Publishing is best effort; dispatch never fails on a publish error.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.StatusEvent) error
}

// DispatchService coordinates one end-to-end notification dispatch:
// rate-limit reservation, channel and content resolution, record
// creation, per-channel sends, and status aggregation.
type DispatchService interface {
	// Dispatch runs the full sequence for a new notification.
	Dispatch(ctx context.Context, payload model.DispatchPayload) (*model.DispatchResult, error)
	// Redispatch re-runs an existing record through the send path,
	// keeping its type, channel and customer but re-resolving content.
	Redispatch(ctx context.Context, n *model.Notification) (*model.DispatchResult, error)
}

type dispatchService struct {
	customers   store.CustomerStorage
	notifs      store.NotificationStorage
	limiter     ratelimit.Limiter
	content     template.Resolver
	email       transport.EmailSender
	sms         transport.SMSSender
	events      EventPublisher
	sendTimeout time.Duration
	l           *slog.Logger
	now         func() time.Time
}

// NewDispatchService wires the orchestrator. events may be nil.
func NewDispatchService(
	customers store.CustomerStorage,
	notifs store.NotificationStorage,
	limiter ratelimit.Limiter,
	content template.Resolver,
	email transport.EmailSender,
	sms transport.SMSSender,
	events EventPublisher,
	sendTimeout time.Duration,
	logger *slog.Logger,
) DispatchService {
	return &dispatchService{
		customers:   customers,
		notifs:      notifs,
		limiter:     limiter,
		content:     content,
		email:       email,
		sms:         sms,
		events:      events,
		sendTimeout: sendTimeout,
		l:           logger,
		now:         time.Now,
	}
}

func (s *dispatchService) Dispatch(ctx context.Context, payload model.DispatchPayload) (*model.DispatchResult, error) {
	start := s.now()

	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	// 1. Customer lookup. Fatal before any record exists.
	customer, err := s.customers.GetByID(ctx, payload.CustomerID)
	if err != nil {
		return nil, err
	}

	// 2. Channel resolution, fixed at creation time.
	ch := channel.Resolve(payload.Channel, *customer)

	// 3. Content resolution. Fails before any side effect.
	content, err := s.content.Resolve(payload.Type, s.templateData(*customer, payload))
	if err != nil {
		return nil, err
	}
	if payload.Subject != "" {
		content.EmailSubject = payload.Subject
	}
	if payload.Body != "" {
		content.SMSBody = payload.Body
	}

	// 4. Rate-limit reservation before the record is created, so a
	// denied dispatch leaves no trace and two concurrent dispatches
	// cannot both pass a check meant to admit only one.
	decision, release, err := s.limiter.Reserve(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("rate limit reserve: %w", err)
	}
	if !decision.Allowed {
		metrics.RateLimitedTotal.Inc()
		s.l.InfoContext(ctx, "Dispatch rate limited",
			slog.String("customer_id", customer.ID),
			slog.Int("retry_after_s", decision.RetryAfterSeconds))
		return nil, apperr.NewRateLimited(decision.RetryAfterSeconds, decision.Reason)
	}

	// 5. Create the record in pending status so every attempt past
	// this point is auditable.
	n := &model.Notification{
		ID:           uuid.NewString(),
		Type:         payload.Type,
		Channel:      ch,
		Status:       model.StatusPending,
		Subject:      snapshotSubject(content),
		Body:         snapshotBody(content),
		CustomerID:   customer.ID,
		AttemptCount: 1,
		CreatedAt:    s.now(),
	}
	if err := s.notifs.Create(ctx, n); err != nil {
		release()
		return nil, err
	}

	result := s.send(ctx, n, *customer, content)
	if result.Outcome == model.OutcomeFailed {
		release()
	}

	metrics.DispatchTotal.WithLabelValues(string(payload.Type), string(result.Outcome)).Inc()
	metrics.DispatchDuration.Observe(s.now().Sub(start).Seconds())
	return result, nil
}

func (s *dispatchService) Redispatch(ctx context.Context, n *model.Notification) (*model.DispatchResult, error) {
	customer, err := s.customers.GetByID(ctx, n.CustomerID)
	if err != nil {
		return nil, err
	}

	// Content is re-resolved in case templates or customer data
	// changed; the channel set is never re-resolved.
	data := s.templateData(*customer, model.DispatchPayload{Subject: n.Subject, Body: n.Body})
	content, err := s.content.Resolve(n.Type, data)
	if err != nil {
		return nil, err
	}

	// A retry must not bypass rate limits.
	decision, release, err := s.limiter.Reserve(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("rate limit reserve: %w", err)
	}
	if !decision.Allowed {
		metrics.RateLimitedTotal.Inc()
		return nil, apperr.NewRateLimited(decision.RetryAfterSeconds, decision.Reason)
	}

	if _, err := s.notifs.IncrementAttempt(ctx, n.ID); err != nil {
		release()
		return nil, err
	}

	result := s.send(ctx, n, *customer, content)
	if result.Outcome == model.OutcomeFailed {
		release()
	}
	metrics.DispatchTotal.WithLabelValues(string(n.Type), string(result.Outcome)).Inc()
	return result, nil
}

// send runs the per-channel adapters and aggregates the outcome onto
// the record. The pending->{sent|partially_sent|failed} transition
// happens only after all attempted channel calls complete.
func (s *dispatchService) send(ctx context.Context, n *model.Notification, customer model.Customer, content template.Content) *model.DispatchResult {
	shouldEmail := n.Channel.WantsEmail() && customer.Email != ""
	shouldSMS := n.Channel.WantsSMS() && customer.Phone != ""

	result := &model.DispatchResult{NotificationID: n.ID}

	if !shouldEmail && !shouldSMS {
		// A resolved channel with no usable contact field. Unlike the
		// legacy behavior this is an explicit failure, not a silent
		// success.
		result.Outcome = model.OutcomeFailed
		s.finalize(ctx, n, result, "no deliverable channel for customer")
		return result
	}

	var emailRes, smsRes transport.SendResult
	eg, sendCtx := errgroup.WithContext(ctx)

	if shouldEmail {
		eg.Go(func() error {
			ctx, cancel := context.WithTimeout(sendCtx, s.sendTimeout)
			defer cancel()
			emailRes = s.email.SendEmail(ctx, transport.EmailMessage{
				To:      customer.Email,
				Subject: content.EmailSubject,
				Text:    content.EmailBody,
				Tags: []transport.Tag{
					{Name: "type", Value: string(n.Type)},
					{Name: "notificationId", Value: n.ID},
				},
			})
			return nil
		})
	}
	if shouldSMS {
		eg.Go(func() error {
			ctx, cancel := context.WithTimeout(sendCtx, s.sendTimeout)
			defer cancel()
			smsRes = s.sms.SendSMS(ctx, transport.SMSMessage{
				To:           transport.FormatPhoneE164(customer.Phone),
				Body:         content.SMSBody,
				FirstMessage: n.Type == model.TypeWelcome,
			})
			return nil
		})
	}
	_ = eg.Wait()

	var attempted, succeeded int
	var errs []string
	if shouldEmail {
		attempted++
		result.EmailResult = &model.ChannelResult{
			Attempted: true,
			Success:   emailRes.Success,
			MessageID: emailRes.MessageID,
			Error:     emailRes.Error,
		}
		metrics.ChannelSendTotal.WithLabelValues("email", sendLabel(emailRes)).Inc()
		if emailRes.Success {
			succeeded++
		} else {
			result.FailedChannels = append(result.FailedChannels, model.ChannelEmail)
			errs = append(errs, "email: "+emailRes.Error)
		}
	}
	if shouldSMS {
		attempted++
		result.SMSResult = &model.ChannelResult{
			Attempted: true,
			Success:   smsRes.Success,
			MessageID: smsRes.MessageID,
			Error:     smsRes.Error,
		}
		metrics.ChannelSendTotal.WithLabelValues("sms", sendLabel(smsRes)).Inc()
		if smsRes.Success {
			succeeded++
		} else {
			result.FailedChannels = append(result.FailedChannels, model.ChannelSMS)
			errs = append(errs, "sms: "+smsRes.Error)
		}
	}

	switch {
	case succeeded == attempted:
		result.Outcome = model.OutcomeSent
	case succeeded > 0:
		result.Outcome = model.OutcomePartiallySent
	default:
		result.Outcome = model.OutcomeFailed
	}

	s.finalize(ctx, n, result, strings.Join(errs, "; "))
	return result
}

// finalize persists the aggregate outcome and publishes the status
// event.
func (s *dispatchService) finalize(ctx context.Context, n *model.Notification, result *model.DispatchResult, lastError string) {
	status := result.Outcome.Status()
	var sentAt *time.Time
	if result.Outcome != model.OutcomeFailed {
		t := s.now()
		sentAt = &t
	}

	if err := s.notifs.UpdateStatus(ctx, n.ID, status, sentAt, lastError); err != nil {
		s.l.ErrorContext(ctx, "Failed to update notification status",
			slog.String("id", n.ID),
			slog.String("status", string(status)),
			slog.Any("error", err))
	}
	n.Status = status
	n.SentAt = sentAt
	n.LastError = lastError

	s.publish(ctx, n)

	s.l.InfoContext(ctx, "Dispatch finished",
		slog.String("id", n.ID),
		slog.String("customer_id", n.CustomerID),
		slog.String("type", string(n.Type)),
		slog.String("channel", string(n.Channel)),
		slog.String("outcome", string(result.Outcome)))
}

func (s *dispatchService) publish(ctx context.Context, n *model.Notification) {
	if s.events == nil {
		return
	}
	ev := model.StatusEvent{
		NotificationID: n.ID,
		CustomerID:     n.CustomerID,
		Type:           n.Type,
		Channel:        n.Channel,
		Status:         n.Status,
		At:             s.now(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.l.WarnContext(ctx, "Failed to publish status event",
			slog.String("id", n.ID), slog.Any("error", err))
	}
}

// templateData merges customer attributes under caller-supplied
// overrides.
func (s *dispatchService) templateData(customer model.Customer, payload model.DispatchPayload) template.Data {
	data := template.Data{
		"customerName":    customer.FullName(),
		"pmbNumber":       customer.PMBNumber,
		"locationName":    customer.LocationName,
		"locationAddress": customer.LocationAddress,
	}
	for k, v := range payload.Data {
		data[k] = v
	}
	if payload.Subject != "" {
		data["subject"] = payload.Subject
	}
	if payload.Body != "" {
		data["body"] = payload.Body
	}
	return data
}

func validatePayload(payload model.DispatchPayload) error {
	if payload.CustomerID == "" {
		return fmt.Errorf("%w: customer_id is required", apperr.ErrInvalidPayload)
	}
	if !payload.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", apperr.ErrInvalidPayload, payload.Type)
	}
	if payload.Channel != "" && !payload.Channel.Valid() {
		return fmt.Errorf("%w: unknown channel %q", apperr.ErrInvalidPayload, payload.Channel)
	}
	if payload.Type == model.TypeCustom && payload.Body == "" {
		return fmt.Errorf("%w: custom notifications require a body", apperr.ErrInvalidPayload)
	}
	return nil
}

// snapshotSubject applies the record snapshot fallback: the email
// subject, or the first 100 characters of the SMS body.
func snapshotSubject(c template.Content) string {
	if c.EmailSubject != "" {
		return c.EmailSubject
	}
	body := c.SMSBody
	if len(body) > 100 {
		body = body[:100]
	}
	return body
}

func snapshotBody(c template.Content) string {
	if c.SMSBody != "" {
		return c.SMSBody
	}
	return c.EmailSubject
}

func sendLabel(r transport.SendResult) string {
	if r.Success {
		return "success"
	}
	return "failure"
}
