package model

import "time"

// NotificationType identifies which template family a notification uses.
type NotificationType string

const (
	TypePackageArrival  NotificationType = "package_arrival"
	TypePackageReminder NotificationType = "package_reminder"
	TypeMailReceived    NotificationType = "mail_received"
	TypeIDExpiring      NotificationType = "id_expiring"
	TypeRenewalReminder NotificationType = "renewal_reminder"
	TypeShipmentUpdate  NotificationType = "shipment_update"
	TypeWelcome         NotificationType = "welcome"
	TypeCustom          NotificationType = "custom"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case TypePackageArrival, TypePackageReminder, TypeMailReceived,
		TypeIDExpiring, TypeRenewalReminder, TypeShipmentUpdate,
		TypeWelcome, TypeCustom:
		return true
	}
	return false
}

// Channel is the delivery medium for a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelBoth  Channel = "both"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS || c == ChannelBoth
}

// WantsEmail reports whether the channel set includes email.
func (c Channel) WantsEmail() bool { return c == ChannelEmail || c == ChannelBoth }

// WantsSMS reports whether the channel set includes SMS.
func (c Channel) WantsSMS() bool { return c == ChannelSMS || c == ChannelBoth }

// Status is the lifecycle state of a notification record.
type Status string

const (
	StatusPending       Status = "pending"
	StatusSent          Status = "sent"
	StatusPartiallySent Status = "partially_sent"
	StatusFailed        Status = "failed"
	StatusDelivered     Status = "delivered"
	StatusBounced       Status = "bounced"
	StatusAbandoned     Status = "abandoned"
)

// Terminal reports whether no further engine-driven transition applies.
// failed and bounced records are still retry candidates, so they are
// not terminal here.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusAbandoned
}

// MaxAttempts caps how many times a notification may be dispatched
// (initial attempt plus retries) before it is abandoned.
const MaxAttempts = 3

// Notification is the unit of work and audit trail for one dispatch.
// Channel is fixed at creation and never re-resolved on retry.
type Notification struct {
	ID           string           `db:"id" json:"id"`
	Type         NotificationType `db:"type" json:"type"`
	Channel      Channel          `db:"channel" json:"channel"`
	Status       Status           `db:"status" json:"status"`
	Subject      string           `db:"subject" json:"subject"`
	Body         string           `db:"body" json:"body"`
	CustomerID   string           `db:"customer_id" json:"customer_id"`
	AttemptCount int              `db:"attempt_count" json:"attempt_count"`
	LastError    string           `db:"last_error" json:"last_error,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	SentAt       *time.Time       `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt  *time.Time       `db:"delivered_at" json:"delivered_at,omitempty"`
}
