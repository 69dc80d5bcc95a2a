package model

// DispatchPayload is the caller-facing request for one dispatch.
type DispatchPayload struct {
	Type       NotificationType `json:"type"`
	CustomerID string           `json:"customer_id"`
	// Channel, when set, overrides customer preferences outright.
	Channel Channel `json:"channel,omitempty"`
	// Subject and Body are required for the custom type and otherwise
	// act as overrides for the templated content.
	Subject string                 `json:"subject,omitempty"`
	Body    string                 `json:"body,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// DispatchOutcome classifies the aggregate result of one dispatch.
type DispatchOutcome string

const (
	OutcomeSent          DispatchOutcome = "sent"
	OutcomePartiallySent DispatchOutcome = "partially_sent"
	OutcomeFailed        DispatchOutcome = "failed"
)

// Status maps the outcome onto the record lifecycle.
func (o DispatchOutcome) Status() Status {
	switch o {
	case OutcomeSent:
		return StatusSent
	case OutcomePartiallySent:
		return StatusPartiallySent
	default:
		return StatusFailed
	}
}

// ChannelResult is the per-channel send result aggregated by the
// orchestrator. Adapters report failure as a value, never an error.
type ChannelResult struct {
	Attempted bool   `json:"attempted"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DispatchResult is returned from a dispatch once a record exists.
type DispatchResult struct {
	NotificationID string          `json:"notification_id"`
	Outcome        DispatchOutcome `json:"outcome"`
	FailedChannels []Channel       `json:"failed_channels,omitempty"`
	EmailResult    *ChannelResult  `json:"email_result,omitempty"`
	SMSResult      *ChannelResult  `json:"sms_result,omitempty"`
}

// RetryDisposition classifies what happened to one retry candidate.
type RetryDisposition string

const (
	RetryDispatched RetryDisposition = "dispatched"
	RetrySkipped    RetryDisposition = "skipped"
	RetryAbandoned  RetryDisposition = "abandoned"
	RetryErrored    RetryDisposition = "errored"
)

// RetryResult reports the fate of a single retry candidate.
type RetryResult struct {
	NotificationID    string           `json:"notification_id"`
	Disposition       RetryDisposition `json:"disposition"`
	Reason            string           `json:"reason,omitempty"`
	RetryAfterSeconds int              `json:"retry_after_seconds,omitempty"`
	Outcome           DispatchOutcome  `json:"outcome,omitempty"`
}

// RateLimitStatus is the introspection view of a customer's counters.
type RateLimitStatus struct {
	CustomerID string `json:"customer_id"`
	HourCount  int    `json:"hour_count"`
	DayCount   int    `json:"day_count"`
	HourLimit  int    `json:"hour_limit"`
	DayLimit   int    `json:"day_limit"`
}
