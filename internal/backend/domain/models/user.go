package models

import (
	"time"

	"github.com/google/uuid"
)

type UserType string

const (
	UserTypeAdmin    UserType = "admin"
	UserTypeCustomer UserType = "customer"
)

// Scopes returns the OAuth2 scopes granted to users of this type,
// sorted alphabetically.
func (t UserType) Scopes() []string {
	switch t {
	case UserTypeAdmin:
		return []string{"admin", "user"}
	case UserTypeCustomer:
		return []string{"customer", "user"}
	default:
		return []string{"user"}
	}
}

// User is the primary account model. Login is username based. Email is
// optional and unique, kept mainly for the forgot password flow, and is
// set only once verified. Until then the address under verification
// lives in the UserAction data.
type User struct {
	ID            uuid.UUID `json:"id"`
	Type          UserType  `json:"type"`
	Username      string    `json:"username"`
	Email         *string   `json:"email"`
	FirstName     string    `json:"first_name"` //nolint:tagliatelle
	LastName      string    `json:"last_name"`  //nolint:tagliatelle
	PasswordHash  string    `json:"-"`
	PasswordSetAt time.Time `json:"-"`
	JoinedAt      time.Time `json:"joined_at"`  //nolint:tagliatelle
	CreatedAt     time.Time `json:"created_at"` //nolint:tagliatelle
	UpdatedAt     time.Time `json:"updated_at"` //nolint:tagliatelle
}
