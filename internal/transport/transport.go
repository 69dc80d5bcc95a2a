// Package transport holds the channel adapters that perform the
// actual email and SMS sends. Adapters report failure as a value in
// SendResult, never as an error, so the dispatch orchestrator can
// aggregate per-channel outcomes without exception-style control flow.
package transport

import "context"

// Tag is a provider-side label attached to outbound email for
// analytics and filtering.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EmailMessage is one outbound email.
type EmailMessage struct {
	To      string
	Subject string
	Text    string
	Tags    []Tag
	// Marketing mail must carry a one-click unsubscribe URL; when set
	// the adapter adds the List-Unsubscribe headers.
	UnsubscribeURL string
}

// SMSMessage is one outbound text message.
type SMSMessage struct {
	To   string
	Body string
	// FirstMessage prepends the CTIA compliance disclosure.
	FirstMessage bool
}

// SendResult is the value-typed outcome of one send attempt.
type SendResult struct {
	Success   bool
	MessageID string
	Error     string
}

// EmailSender is the email transport boundary.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) SendResult
}

// SMSSender is the SMS transport boundary.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) SendResult
}
