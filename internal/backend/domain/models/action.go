package models

import (
	"time"

	"github.com/google/uuid"
)

type UserActionType string

const (
	ActionEmailVerification UserActionType = "email_verification"
	ActionPasswordReset     UserActionType = "password_reset"
)

type UserActionState string

const (
	ActionStatePending   UserActionState = "pending"
	ActionStateCompleted UserActionState = "completed"
	ActionStateObsolete  UserActionState = "obsolete"
)

// UserAction is a single-use, expiring action bound to a user, such as
// an email verification or a password reset. The raw token is sent out
// of band and only its hash is stored.
type UserAction struct {
	ID        uuid.UUID              `json:"id"`
	Type      UserActionType         `json:"type"`
	State     UserActionState        `json:"state"`
	UserID    uuid.UUID              `json:"user_id"` //nolint:tagliatelle
	Data      map[string]interface{} `json:"data"`
	TokenHash string                 `json:"-"`
	ExpiresAt time.Time              `json:"expires_at"` //nolint:tagliatelle
	CreatedAt time.Time              `json:"created_at"` //nolint:tagliatelle
	UpdatedAt time.Time              `json:"updated_at"` //nolint:tagliatelle
}

func (a UserAction) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}
