package auditservice_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/reqinfo"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/auditservice"
	"github.com/ixdlabs/go-backend-template/internal/pkg/tracing"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

type fakeRepo struct {
	logs []models.AuditLog
	err  error
}

func (f *fakeRepo) CreateLog(_ context.Context, l models.AuditLog) error {
	f.logs = append(f.logs, l)

	return f.err
}

func testLogger(t *testing.T) logger.Logger {
	t.Helper()

	lg, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)

	return lg
}

func TestRecordCreate(t *testing.T) {
	repo := &fakeRepo{}
	as := auditservice.New(repo, testLogger(t))

	u := models.User{ID: uuid.New(), Username: "jane", PasswordHash: "secret"}
	as.RecordCreate(context.Background(), "user", u.ID, u)

	require.Len(t, repo.logs, 1)
	l := repo.logs[0]

	require.Equal(t, "create", l.Action)
	require.Equal(t, "user", l.ResourceType)
	require.Equal(t, u.ID, l.ResourceID)
	require.Nil(t, l.OldValue)
	require.Equal(t, "jane", l.NewValue["username"])
	require.Equal(t, models.ActorAnonymous, l.ActorType)
	require.Equal(t, tracing.ZeroTraceID, l.TraceID)
}

func TestSnapshotExcludesPasswordHash(t *testing.T) {
	repo := &fakeRepo{}
	as := auditservice.New(repo, testLogger(t))

	u := models.User{ID: uuid.New(), Username: "jane", PasswordHash: "secret"}
	as.RecordCreate(context.Background(), "user", u.ID, u)

	require.NotContains(t, repo.logs[0].NewValue, "password_hash")
	require.NotContains(t, repo.logs[0].NewValue, "PasswordHash")
}

func TestRecordUpdateComputesChanged(t *testing.T) {
	repo := &fakeRepo{}
	as := auditservice.New(repo, testLogger(t))

	id := uuid.New()
	oldU := models.User{ID: id, Username: "jane", FirstName: "Jane"}
	newU := models.User{ID: id, Username: "jane", FirstName: "Janet"}

	as.RecordUpdate(context.Background(), "user", id, oldU, newU)

	require.Len(t, repo.logs, 1)
	l := repo.logs[0]

	require.Equal(t, map[string]interface{}{"first_name": "Janet"}, l.ChangedValue)
}

func TestRecordDelete(t *testing.T) {
	repo := &fakeRepo{}
	as := auditservice.New(repo, testLogger(t))

	u := models.User{ID: uuid.New(), Username: "jane"}
	as.RecordDelete(context.Background(), "user", u.ID, u)

	l := repo.logs[0]
	require.Equal(t, "delete", l.Action)
	require.Nil(t, l.NewValue)
	require.Equal(t, "jane", l.OldValue["username"])
}

func TestRecordUsesActorAndMeta(t *testing.T) {
	repo := &fakeRepo{}
	as := auditservice.New(repo, testLogger(t))

	actor := reqinfo.Actor{ID: uuid.New(), Type: models.UserTypeAdmin, Username: "admin"}
	ctx := reqinfo.WithActor(context.Background(), actor)
	ctx = reqinfo.WithMeta(ctx, reqinfo.Meta{
		IP:        "10.0.0.1",
		UserAgent: "test-agent",
		Method:    "PUT",
		URL:       "/api/v1/common/users/me",
	})

	as.RecordUpdate(ctx, "user", actor.ID, models.User{}, models.User{FirstName: "J"})

	l := repo.logs[0]
	require.Equal(t, models.ActorUser, l.ActorType)
	require.NotNil(t, l.ActorID)
	require.Equal(t, actor.ID, *l.ActorID)
	require.Equal(t, "10.0.0.1", l.IPAddress)
	require.Equal(t, "PUT", l.Method)
}

func TestRecordSwallowsRepoError(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	as := auditservice.New(repo, testLogger(t))

	require.NotPanics(t, func() {
		as.RecordCreate(context.Background(), "user", uuid.New(), models.User{})
	})
}
