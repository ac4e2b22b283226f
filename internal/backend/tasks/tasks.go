package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

const (
	TaskEcho                   = "echo"
	TaskHealthPing             = "health:ping"
	TaskWelcomeUser            = "user:welcome"
	TaskSendVerificationEmail  = "user:send_verification_email"
	TaskSendPasswordResetEmail = "user:send_password_reset_email"
	TaskSendNotification       = "notification:send"
)

type EchoPayload struct {
	Message string `json:"message"`
}

type PingPayload struct {
	Value string `json:"value"`
}

type WelcomePayload struct {
	UserID uuid.UUID `json:"user_id"` //nolint:tagliatelle
}

type VerificationPayload struct {
	UserID uuid.UUID `json:"user_id"` //nolint:tagliatelle
	Email  string    `json:"email"`
}

type PasswordResetPayload struct {
	UserID uuid.UUID `json:"user_id"` //nolint:tagliatelle
	Email  string    `json:"email"`
}

type SendNotificationPayload struct {
	NotificationID uuid.UUID `json:"notification_id"` //nolint:tagliatelle
}

// EchoHandler logs the payload message. It doubles as the periodic
// liveness task the scheduler fires.
func EchoHandler(lg logger.Logger) HandlerFunc {
	return func(_ context.Context, payload []byte) ([]byte, error) {
		var p EchoPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("unmarshal payload error: %w", err)
		}

		lg.Infof("echo: %s", p.Message)

		return []byte(p.Message), nil
	}
}

// PingHandler returns the submitted value so the health check can
// verify the full submit and result round trip.
func PingHandler() HandlerFunc {
	return func(_ context.Context, payload []byte) ([]byte, error) {
		var p PingPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("unmarshal payload error: %w", err)
		}

		return []byte(p.Value), nil
	}
}
