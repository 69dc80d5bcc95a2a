package model

import "time"

// StatusEvent is published whenever a notification record changes
// status, for downstream consumers (dashboards, audit, billing).
type StatusEvent struct {
	NotificationID string           `json:"notification_id"`
	CustomerID     string           `json:"customer_id"`
	Type           NotificationType `json:"type"`
	Channel        Channel          `json:"channel"`
	Status         Status           `json:"status"`
	At             time.Time        `json:"at"`
}
