package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationWelcome NotificationType = "welcome"
	NotificationCustom  NotificationType = "custom"
)

type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
	ChannelInApp NotificationChannel = "inapp"
)

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Notification records the intent to notify a user. The per-channel
// delivery records live in NotificationDelivery.
type Notification struct {
	ID        uuid.UUID              `json:"id"`
	UserID    uuid.UUID              `json:"user_id"` //nolint:tagliatelle
	Type      NotificationType       `json:"type"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"created_at"` //nolint:tagliatelle
	UpdatedAt time.Time              `json:"updated_at"` //nolint:tagliatelle
}

type NotificationDelivery struct {
	ID             uuid.UUID           `json:"id"`
	NotificationID uuid.UUID           `json:"notification_id"` //nolint:tagliatelle
	Channel        NotificationChannel `json:"channel"`
	Recipient      string              `json:"recipient"`
	Title          string              `json:"title"`
	Body           string              `json:"body"`
	Status         DeliveryStatus      `json:"status"`
	FailureMessage string              `json:"failure_message,omitempty"` //nolint:tagliatelle
	ProviderRef    string              `json:"provider_ref,omitempty"`    //nolint:tagliatelle
	SentAt         *time.Time          `json:"sent_at"`                   //nolint:tagliatelle
	ReadAt         *time.Time          `json:"read_at"`                   //nolint:tagliatelle
	CreatedAt      time.Time           `json:"created_at"`                //nolint:tagliatelle
	UpdatedAt      time.Time           `json:"updated_at"`                //nolint:tagliatelle
}
