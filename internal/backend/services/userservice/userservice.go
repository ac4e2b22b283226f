package userservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/userrepo"
	"github.com/ixdlabs/go-backend-template/internal/backend/tasks"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

const (
	defaultListLimit = 100
	maxListLimit     = 100
)

type Repository interface {
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser(ctx context.Context, u models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, req userrepo.ListUsersRequest) ([]models.User, int, error)
}

type TaskClient interface {
	Submit(ctx context.Context, name string, payload interface{}) (tasks.Handle, error)
}

type Auditor interface {
	RecordUpdate(ctx context.Context, resourceType string, resourceID uuid.UUID, oldV, newV interface{})
	RecordDelete(ctx context.Context, resourceType string, resourceID uuid.UUID, resource interface{})
}

type ListRequest struct {
	Search  string
	OrderBy string
	Limit   int
	Offset  int
}

// UpdateRequest carries the editable profile fields. A nil Email means
// the address stays untouched.
type UpdateRequest struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     *string
}

type UserService struct {
	repo  Repository
	tc    TaskClient
	audit Auditor
	lg    logger.Logger
}

func New(repo Repository, tc TaskClient, audit Auditor, lg logger.Logger) *UserService {
	return &UserService{repo: repo, tc: tc, audit: audit, lg: lg}
}

func (us *UserService) Get(ctx context.Context, id uuid.UUID) (models.User, error) {
	u, err := us.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return models.User{}, err
		}

		return models.User{}, fmt.Errorf("get user error: %w", err)
	}

	return u, nil
}

func (us *UserService) List(ctx context.Context, req ListRequest) (models.Page[models.User], error) {
	if req.Limit <= 0 || req.Limit > maxListLimit {
		req.Limit = defaultListLimit
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	users, total, err := us.repo.ListUsers(ctx, userrepo.ListUsersRequest{
		Search:  req.Search,
		OrderBy: req.OrderBy,
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
	if err != nil {
		return models.Page[models.User]{}, fmt.Errorf("list users error: %w", err)
	}

	return models.NewPage(total, users), nil
}

// Update changes the profile names right away. A changed email is only
// checked for uniqueness here; the address itself is set once the owner
// confirms the verification link sent by the background task.
func (us *UserService) Update(ctx context.Context, req UpdateRequest) (models.User, error) {
	u, err := us.repo.GetUser(ctx, req.ID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return models.User{}, err
		}

		return models.User{}, fmt.Errorf("get user error: %w", err)
	}

	old := u
	u.FirstName = req.FirstName
	u.LastName = req.LastName

	verifyEmail := ""
	if req.Email != nil && *req.Email != "" && (u.Email == nil || *u.Email != *req.Email) {
		other, err := us.repo.GetUserByEmail(ctx, *req.Email)
		if err == nil && other.ID != u.ID {
			return models.User{}, userrepo.ErrEmailExists
		} else if err != nil && !errors.Is(err, userrepo.ErrNotFound) {
			return models.User{}, fmt.Errorf("get user by email error: %w", err)
		}

		verifyEmail = *req.Email
	}

	if err := us.repo.UpdateUser(ctx, u); err != nil {
		return models.User{}, fmt.Errorf("update user error: %w", err)
	}

	us.audit.RecordUpdate(ctx, "user", u.ID, old, u)

	if verifyEmail != "" {
		payload := tasks.VerificationPayload{UserID: u.ID, Email: verifyEmail}
		if _, err := us.tc.Submit(ctx, tasks.TaskSendVerificationEmail, payload); err != nil {
			return models.User{}, fmt.Errorf("submit verification task error: %w", err)
		}
	}

	return u, nil
}

func (us *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	u, err := us.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return err
		}

		return fmt.Errorf("get user error: %w", err)
	}

	if err := us.repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return err
		}

		return fmt.Errorf("delete user error: %w", err)
	}

	us.audit.RecordDelete(ctx, "user", id, u)

	return nil
}
