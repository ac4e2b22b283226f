package auditservice

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/google/uuid"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/reqinfo"
	"github.com/ixdlabs/go-backend-template/internal/pkg/tracing"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

type Repo interface {
	CreateLog(ctx context.Context, l models.AuditLog) error
}

// AuditService writes audit records for resource mutations. Recording
// never fails the request: storage errors are logged and dropped.
type AuditService struct {
	repo Repo
	lg   logger.Logger
}

func New(repo Repo, lg logger.Logger) *AuditService {
	return &AuditService{repo: repo, lg: lg}
}

func (as *AuditService) RecordCreate(ctx context.Context, resourceType string, resourceID uuid.UUID, resource interface{}) {
	as.Record(ctx, "create", resourceType, resourceID, nil, resource)
}

func (as *AuditService) RecordUpdate(ctx context.Context, resourceType string, resourceID uuid.UUID, oldV, newV interface{}) {
	as.Record(ctx, "update", resourceType, resourceID, oldV, newV)
}

func (as *AuditService) RecordDelete(ctx context.Context, resourceType string, resourceID uuid.UUID, resource interface{}) {
	as.Record(ctx, "delete", resourceType, resourceID, resource, nil)
}

// Record writes one audit entry. The actor comes from the request
// context, falling back to anonymous, and old and new snapshots are
// diffed into the changed set when both sides are present.
func (as *AuditService) Record(ctx context.Context, action, resourceType string,
	resourceID uuid.UUID, oldV, newV interface{},
) {
	l := models.AuditLog{
		ID:           uuid.New(),
		ActorType:    models.ActorAnonymous,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OldValue:     as.snapshot(oldV),
		NewValue:     as.snapshot(newV),
		TraceID:      tracing.TraceID(ctx),
	}

	if actor, ok := reqinfo.ActorFrom(ctx); ok {
		id := actor.ID
		l.ActorID = &id
		l.ActorType = models.ActorUser
	}

	if meta, ok := reqinfo.MetaFrom(ctx); ok {
		l.IPAddress = meta.IP
		l.UserAgent = meta.UserAgent
		l.Method = meta.Method
		l.URL = meta.URL
	}

	if l.OldValue != nil && l.NewValue != nil {
		l.ChangedValue = changed(l.OldValue, l.NewValue)
	}

	if err := as.repo.CreateLog(ctx, l); err != nil {
		as.lg.Errorf("create audit log error: %s", err.Error())
	}
}

// snapshot renders a resource into a generic map through its JSON
// form, which keeps fields marked with json:"-", such as password
// hashes, out of the record.
func (as *AuditService) snapshot(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		as.lg.Errorf("marshal audit snapshot error: %s", err.Error())

		return nil
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		as.lg.Errorf("unmarshal audit snapshot error: %s", err.Error())

		return nil
	}

	return m
}

func changed(oldV, newV map[string]interface{}) map[string]interface{} {
	diff := make(map[string]interface{})

	for k, v := range newV {
		if !reflect.DeepEqual(oldV[k], v) {
			diff[k] = v
		}
	}

	if len(diff) == 0 {
		return nil
	}

	return diff
}
