package models

import (
	"time"

	"github.com/google/uuid"
)

// Preference is a global key value setting. Feature flag overrides are
// stored under keys of the form "feature_flag.<name>".
type Preference struct {
	ID        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"` //nolint:tagliatelle
	UpdatedAt time.Time `json:"updated_at"` //nolint:tagliatelle
}
