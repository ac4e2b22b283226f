package authservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/email"
	"github.com/ixdlabs/go-backend-template/internal/backend/reqinfo"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/userrepo"
	"github.com/ixdlabs/go-backend-template/internal/backend/tasks"
	"github.com/ixdlabs/go-backend-template/internal/pkg/config"
	"github.com/ixdlabs/go-backend-template/internal/pkg/jwtauth"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

var (
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrInvalidActionToken  = errors.New("invalid action token")
	ErrPasswordIncorrect   = errors.New("old password is incorrect")
	ErrPasswordsIdentical  = errors.New("new password matches the old one")
)

type Repository interface {
	CreateUser(ctx context.Context, u models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string, setAt time.Time) error
	CreateAction(ctx context.Context, a models.UserAction) error
	GetAction(ctx context.Context, id uuid.UUID) (models.UserAction, error)
	ObsoletePendingActions(ctx context.Context, userID uuid.UUID, t models.UserActionType) error
	CompleteActionWithEmail(ctx context.Context, actionID, userID uuid.UUID, email string) error
	CompleteActionWithPassword(ctx context.Context, actionID, userID uuid.UUID, hash string, setAt time.Time) error
}

type TaskClient interface {
	Submit(ctx context.Context, name string, payload interface{}) (tasks.Handle, error)
}

type Auditor interface {
	Record(ctx context.Context, action, resourceType string, resourceID uuid.UUID, oldV, newV interface{})
	RecordCreate(ctx context.Context, resourceType string, resourceID uuid.UUID, resource interface{})
}

type TokenPair struct {
	Access  string
	Refresh string
}

type RegisterRequest struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
}

type AuthService struct {
	repo     Repository
	tc       TaskClient
	audit    Auditor
	sender   email.Sender
	cfg      config.Auth
	frontend config.Frontend
	lg       logger.Logger
}

func New(repo Repository, tc TaskClient, audit Auditor, sender email.Sender,
	cfg config.Auth, frontend config.Frontend, lg logger.Logger,
) *AuthService {
	return &AuthService{
		repo:     repo,
		tc:       tc,
		audit:    audit,
		sender:   sender,
		cfg:      cfg,
		frontend: frontend,
		lg:       lg,
	}
}

// RegisterTasks mounts the email side of the verification and reset
// flows onto the task registry.
func (as *AuthService) RegisterTasks(reg *tasks.Registry) {
	reg.Register(tasks.TaskSendVerificationEmail, as.handleSendVerificationEmail)
	reg.Register(tasks.TaskSendPasswordResetEmail, as.handleSendPasswordResetEmail)
}

// Register creates a customer account. The email, when given, is not
// stored on the user yet: a verification action is issued and the
// address is set once confirmed.
func (as *AuthService) Register(ctx context.Context, req RegisterRequest) (models.User, error) {
	if req.Email != "" {
		_, err := as.repo.GetUserByEmail(ctx, req.Email)
		if err == nil {
			return models.User{}, userrepo.ErrEmailExists
		} else if !errors.Is(err, userrepo.ErrNotFound) {
			return models.User{}, fmt.Errorf("get user by email error: %w", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("generate from password error: %w", err)
	}

	now := time.Now().UTC()
	u := models.User{
		ID:            uuid.New(),
		Type:          models.UserTypeCustomer,
		Username:      req.Username,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		PasswordHash:  string(hash),
		PasswordSetAt: now,
		JoinedAt:      now,
	}

	if err := as.repo.CreateUser(ctx, u); err != nil {
		return models.User{}, fmt.Errorf("create user error: %w", err)
	}

	as.audit.RecordCreate(ctx, "user", u.ID, u)

	if _, err := as.tc.Submit(ctx, tasks.TaskWelcomeUser, tasks.WelcomePayload{UserID: u.ID}); err != nil {
		return models.User{}, fmt.Errorf("submit welcome task error: %w", err)
	}

	if req.Email != "" {
		payload := tasks.VerificationPayload{UserID: u.ID, Email: req.Email}
		if _, err := as.tc.Submit(ctx, tasks.TaskSendVerificationEmail, payload); err != nil {
			return models.User{}, fmt.Errorf("submit verification task error: %w", err)
		}
	}

	return u, nil
}

func (as *AuthService) Login(ctx context.Context, username, password string) (TokenPair, models.User, error) {
	u, err := as.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return TokenPair{}, models.User{}, ErrInvalidCredentials
		}

		return TokenPair{}, models.User{}, fmt.Errorf("get user error: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, models.User{}, ErrInvalidCredentials
	}

	pair, err := as.issuePair(u)
	if err != nil {
		return TokenPair{}, models.User{}, err
	}

	return pair, u, nil
}

// Refresh rotates the token pair. Refresh tokens issued before the
// last password change are rejected.
func (as *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, models.User, error) {
	claims, err := jwtauth.ParseRefresh(refreshToken, as.cfg.Secret)
	if err != nil {
		return TokenPair{}, models.User{}, ErrInvalidRefreshToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return TokenPair{}, models.User{}, ErrInvalidRefreshToken
	}

	u, err := as.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return TokenPair{}, models.User{}, ErrInvalidRefreshToken
		}

		return TokenPair{}, models.User{}, fmt.Errorf("get user error: %w", err)
	}

	if u.PasswordSetAt.After(time.Unix(claims.IssuedAt, 0)) {
		return TokenPair{}, models.User{}, ErrInvalidRefreshToken
	}

	pair, err := as.issuePair(u)
	if err != nil {
		return TokenPair{}, models.User{}, err
	}

	return pair, u, nil
}

// Authenticate turns a bearer token into the request actor.
func (as *AuthService) Authenticate(token string) (reqinfo.Actor, error) {
	claims, err := jwtauth.ParseAccess(token, as.cfg.Secret)
	if err != nil {
		return reqinfo.Actor{}, fmt.Errorf("parse access token error: %w", err)
	}

	return reqinfo.Actor{
		ID:       claims.User.ID,
		Type:     claims.User.Type,
		Username: claims.User.Username,
		Scopes:   strings.Fields(claims.Scope),
	}, nil
}

func (as *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	u, err := as.repo.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user error: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrPasswordIncorrect
	}

	if oldPassword == newPassword {
		return ErrPasswordsIdentical
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("generate from password error: %w", err)
	}

	if err := as.repo.UpdatePassword(ctx, userID, string(hash), time.Now().UTC()); err != nil {
		return fmt.Errorf("update password error: %w", err)
	}

	as.audit.Record(ctx, "change_password", "user", u.ID, nil, u)

	return nil
}

// RequestPasswordReset submits the reset email task when the address
// belongs to a user. Unknown addresses are ignored so the endpoint
// does not leak which emails exist.
func (as *AuthService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	u, err := as.repo.GetUserByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			as.lg.Infof("password reset requested for unknown email")

			return nil
		}

		return fmt.Errorf("get user by email error: %w", err)
	}

	payload := tasks.PasswordResetPayload{UserID: u.ID, Email: emailAddr}
	if _, err := as.tc.Submit(ctx, tasks.TaskSendPasswordResetEmail, payload); err != nil {
		return fmt.Errorf("submit reset task error: %w", err)
	}

	return nil
}

func (as *AuthService) ConfirmPasswordReset(ctx context.Context, actionID uuid.UUID, token, newPassword string) error {
	a, err := as.usableAction(ctx, actionID, models.ActionPasswordReset, token)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("generate from password error: %w", err)
	}

	if err := as.repo.CompleteActionWithPassword(ctx, a.ID, a.UserID, string(hash), time.Now().UTC()); err != nil {
		return fmt.Errorf("complete action error: %w", err)
	}

	u, err := as.repo.GetUser(ctx, a.UserID)
	if err != nil {
		return fmt.Errorf("get user error: %w", err)
	}

	as.audit.Record(ctx, "reset_password", "user", u.ID, nil, u)

	return nil
}

// ConfirmEmailVerification completes the action and sets the verified
// address on the user, returning both for the response.
func (as *AuthService) ConfirmEmailVerification(ctx context.Context,
	actionID uuid.UUID, token string,
) (uuid.UUID, string, error) {
	a, err := as.usableAction(ctx, actionID, models.ActionEmailVerification, token)
	if err != nil {
		return uuid.Nil, "", err
	}

	emailAddr, _ := a.Data["email"].(string)
	if emailAddr == "" {
		return uuid.Nil, "", userrepo.ErrActionNotFound
	}

	if err := as.repo.CompleteActionWithEmail(ctx, a.ID, a.UserID, emailAddr); err != nil {
		return uuid.Nil, "", fmt.Errorf("complete action error: %w", err)
	}

	u, err := as.repo.GetUser(ctx, a.UserID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("get user error: %w", err)
	}

	as.audit.Record(ctx, "verify_email", "user", u.ID, nil, u)

	return a.UserID, emailAddr, nil
}

// usableAction loads the action and checks type, state, expiry and the
// token hash. Wrong state and expiry look identical to a missing
// action on purpose.
func (as *AuthService) usableAction(ctx context.Context,
	actionID uuid.UUID, t models.UserActionType, token string,
) (models.UserAction, error) {
	a, err := as.repo.GetAction(ctx, actionID)
	if err != nil {
		if errors.Is(err, userrepo.ErrActionNotFound) {
			return models.UserAction{}, userrepo.ErrActionNotFound
		}

		return models.UserAction{}, fmt.Errorf("get action error: %w", err)
	}

	if a.Type != t || a.State != models.ActionStatePending || a.Expired(time.Now().UTC()) {
		return models.UserAction{}, userrepo.ErrActionNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.TokenHash), []byte(token)); err != nil {
		return models.UserAction{}, ErrInvalidActionToken
	}

	return a, nil
}

func (as *AuthService) issuePair(u models.User) (TokenPair, error) {
	access, err := jwtauth.NewAccessToken(u, as.cfg.AccessTTL, as.cfg.Secret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("new access token error: %w", err)
	}

	refresh, err := jwtauth.NewRefreshToken(u, as.cfg.RefreshTTL, as.cfg.Secret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("new refresh token error: %w", err)
	}

	return TokenPair{Access: access, Refresh: refresh}, nil
}
