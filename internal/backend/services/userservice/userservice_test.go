package userservice_test

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/userrepo"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/userservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/tasks"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

type fakeRepo struct {
	users map[uuid.UUID]models.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[uuid.UUID]models.User)}
}

func (f *fakeRepo) GetUser(_ context.Context, id uuid.UUID) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, userrepo.ErrNotFound
	}

	return u, nil
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range f.users {
		if u.Email != nil && *u.Email == email {
			return u, nil
		}
	}

	return models.User{}, userrepo.ErrNotFound
}

func (f *fakeRepo) UpdateUser(_ context.Context, u models.User) error {
	stored, ok := f.users[u.ID]
	if !ok {
		return userrepo.ErrNotFound
	}

	stored.Email = u.Email
	stored.FirstName = u.FirstName
	stored.LastName = u.LastName
	stored.UpdatedAt = time.Now()
	f.users[u.ID] = stored

	return nil
}

func (f *fakeRepo) DeleteUser(_ context.Context, id uuid.UUID) error {
	if _, ok := f.users[id]; !ok {
		return userrepo.ErrNotFound
	}

	delete(f.users, id)

	return nil
}

func (f *fakeRepo) ListUsers(_ context.Context, req userrepo.ListUsersRequest) ([]models.User, int, error) {
	matched := make([]models.User, 0, len(f.users))

	for _, u := range f.users {
		if req.Search != "" {
			s := strings.ToLower(req.Search)
			if !strings.Contains(strings.ToLower(u.Username), s) &&
				!strings.Contains(strings.ToLower(u.FirstName), s) &&
				!strings.Contains(strings.ToLower(u.LastName), s) {
				continue
			}
		}

		matched = append(matched, u)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := len(matched)
	if req.Offset < len(matched) {
		matched = matched[req.Offset:]
	} else {
		matched = nil
	}

	if req.Limit > 0 && req.Limit < len(matched) {
		matched = matched[:req.Limit]
	}

	return matched, total, nil
}

type recordingTasks struct {
	submitted []string
}

func (r *recordingTasks) Submit(_ context.Context, name string, _ interface{}) (tasks.Handle, error) {
	r.submitted = append(r.submitted, name)

	return tasks.Handle{ID: uuid.NewString()}, nil
}

type recordingAudit struct {
	actions []string
}

func (r *recordingAudit) RecordUpdate(_ context.Context, _ string, _ uuid.UUID, _, _ interface{}) {
	r.actions = append(r.actions, "update")
}

func (r *recordingAudit) RecordDelete(_ context.Context, _ string, _ uuid.UUID, _ interface{}) {
	r.actions = append(r.actions, "delete")
}

type fixture struct {
	repo  *fakeRepo
	tc    *recordingTasks
	audit *recordingAudit
	svc   *userservice.UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	lg, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)

	f := &fixture{
		repo:  newFakeRepo(),
		tc:    &recordingTasks{},
		audit: &recordingAudit{},
	}
	f.svc = userservice.New(f.repo, f.tc, f.audit, lg)

	return f
}

func (f *fixture) addUser(username string, emailAddr string) models.User {
	now := time.Now().Add(-time.Duration(len(f.repo.users)) * time.Second)
	u := models.User{
		ID:        uuid.New(),
		Type:      models.UserTypeCustomer,
		Username:  username,
		FirstName: username,
		LastName:  "Doe",
		JoinedAt:  now,
		CreatedAt: now,
	}

	if emailAddr != "" {
		u.Email = &emailAddr
	}

	f.repo.users[u.ID] = u

	return u
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	u := f.addUser("jane", "jane@example.com")

	got, err := f.svc.Get(context.Background(), u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Username, got.Username)

	_, err = f.svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, userrepo.ErrNotFound)
}

func TestListClampsLimit(t *testing.T) {
	f := newFixture(t)
	f.addUser("jane", "")
	f.addUser("john", "")

	page, err := f.svc.List(context.Background(), userservice.ListRequest{Limit: 500})
	require.NoError(t, err)
	require.Equal(t, 2, page.Count)
	require.Len(t, page.Items, 2)

	page, err = f.svc.List(context.Background(), userservice.ListRequest{Limit: 1})
	require.NoError(t, err)
	require.Equal(t, 2, page.Count)
	require.Len(t, page.Items, 1)
}

func TestListSearch(t *testing.T) {
	f := newFixture(t)
	f.addUser("jane", "")
	f.addUser("john", "")
	f.addUser("bob", "")

	page, err := f.svc.List(context.Background(), userservice.ListRequest{Search: "jo"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Count)
	require.Equal(t, "john", page.Items[0].Username)
}

func TestUpdateNames(t *testing.T) {
	f := newFixture(t)
	u := f.addUser("jane", "jane@example.com")

	got, err := f.svc.Update(context.Background(), userservice.UpdateRequest{
		ID:        u.ID,
		FirstName: "Janet",
		LastName:  "Smith",
	})
	require.NoError(t, err)
	require.Equal(t, "Janet", got.FirstName)
	require.Equal(t, "Smith", got.LastName)
	require.Equal(t, []string{"update"}, f.audit.actions)
	require.Empty(t, f.tc.submitted)
}

func TestUpdateEmailTriggersVerification(t *testing.T) {
	f := newFixture(t)
	u := f.addUser("jane", "jane@example.com")

	next := "janet@example.com"
	got, err := f.svc.Update(context.Background(), userservice.UpdateRequest{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     &next,
	})
	require.NoError(t, err)

	// The address only changes once the verification link is confirmed.
	require.NotNil(t, got.Email)
	require.Equal(t, "jane@example.com", *got.Email)
	require.Equal(t, []string{tasks.TaskSendVerificationEmail}, f.tc.submitted)
}

func TestUpdateSameEmailNoVerification(t *testing.T) {
	f := newFixture(t)
	u := f.addUser("jane", "jane@example.com")

	same := "jane@example.com"
	_, err := f.svc.Update(context.Background(), userservice.UpdateRequest{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     &same,
	})
	require.NoError(t, err)
	require.Empty(t, f.tc.submitted)
}

func TestUpdateEmailTaken(t *testing.T) {
	f := newFixture(t)
	u := f.addUser("jane", "jane@example.com")
	f.addUser("john", "john@example.com")

	taken := "john@example.com"
	_, err := f.svc.Update(context.Background(), userservice.UpdateRequest{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     &taken,
	})
	require.ErrorIs(t, err, userrepo.ErrEmailExists)
	require.Empty(t, f.tc.submitted)
}

func TestUpdateUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Update(context.Background(), userservice.UpdateRequest{ID: uuid.New()})
	require.ErrorIs(t, err, userrepo.ErrNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	u := f.addUser("jane", "")

	require.NoError(t, f.svc.Delete(context.Background(), u.ID))
	require.Equal(t, []string{"delete"}, f.audit.actions)

	err := f.svc.Delete(context.Background(), u.ID)
	require.ErrorIs(t, err, userrepo.ErrNotFound)
}
