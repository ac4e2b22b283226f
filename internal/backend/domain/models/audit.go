package models

import (
	"time"

	"github.com/google/uuid"
)

type ActorType string

const (
	ActorUser      ActorType = "user"
	ActorSystem    ActorType = "system"
	ActorAnonymous ActorType = "anonymous"
)

// AuditLog captures who changed what, with before and after snapshots
// and the request metadata the change arrived with.
type AuditLog struct {
	ID           uuid.UUID              `json:"id"`
	ActorID      *uuid.UUID             `json:"actor_id"`   //nolint:tagliatelle
	ActorType    ActorType              `json:"actor_type"` //nolint:tagliatelle
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"` //nolint:tagliatelle
	ResourceID   uuid.UUID              `json:"resource_id"`   //nolint:tagliatelle
	OldValue     map[string]interface{} `json:"old_value"`     //nolint:tagliatelle
	NewValue     map[string]interface{} `json:"new_value"`     //nolint:tagliatelle
	ChangedValue map[string]interface{} `json:"changed_value"` //nolint:tagliatelle
	TraceID      string                 `json:"trace_id"`      //nolint:tagliatelle
	IPAddress    string                 `json:"request_ip_address"` //nolint:tagliatelle
	UserAgent    string                 `json:"request_user_agent"` //nolint:tagliatelle
	Method       string                 `json:"request_method"`     //nolint:tagliatelle
	URL          string                 `json:"request_url"`        //nolint:tagliatelle
	CreatedAt    time.Time              `json:"created_at"`         //nolint:tagliatelle
	UpdatedAt    time.Time              `json:"updated_at"`         //nolint:tagliatelle
}
