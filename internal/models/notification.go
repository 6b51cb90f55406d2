// internal/models/notification.go
package models

import "time"

// Notification channels.
const (
	ChannelChat  = "chat"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Notification kinds.
const (
	NotifyReviewReady = "review_ready"
	NotifyStalled     = "application_stalled"
)

// Recipient is a reviewer or operator registered for escalations.
type Recipient struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ChatID       int64  `json:"chatId"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	HighPriority bool   `json:"highPriority"`
	Active       bool   `json:"active"`
}

// Notification records one delivery attempt for auditing.
type Notification struct {
	ID          string                 `json:"id"`
	RecipientID string                 `json:"recipientId"`
	Type        string                 `json:"type"`
	Channel     string                 `json:"channel"`
	Status      string                 `json:"status"` // sent, failed, disabled
	Payload     map[string]interface{} `json:"payload,omitempty"`
	SentAt      time.Time              `json:"sentAt"`
}
