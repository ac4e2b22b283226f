package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ixdlabs/go-backend-template/internal/backend/repository/userrepo"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/authservice"
)

const minPasswordLength = 8

// POST /api/auth/register

type registerInput struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"` //nolint:tagliatelle
	LastName  string `json:"last_name"`  //nolint:tagliatelle
	Email     string `json:"email"`
}

type tokenPairOutput struct {
	AccessToken  string      `json:"access_token"`  //nolint:tagliatelle
	RefreshToken string      `json:"refresh_token"` //nolint:tagliatelle
	User         userSummary `json:"user"`
}

var (
	errRegisterUsernameExists = Error{
		Status: http.StatusBadRequest,
		Type:   "users/common/register/username-exists",
		Detail: "A user with this username already exists",
	}
	errRegisterEmailExists = Error{
		Status: http.StatusBadRequest,
		Type:   "users/common/register/email-exists",
		Detail: "A user with this email already exists",
	}
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)

		return
	}

	if in.Username == "" {
		s.writeError(w, r, errInvalidBody.WithDetail("username is required"))

		return
	}

	if len(in.Password) < minPasswordLength {
		s.writeError(w, r, errInvalidBody.WithDetail("password must be at least 8 characters"))

		return
	}

	u, err := s.auth.Register(r.Context(), authservice.RegisterRequest{
		Username:  in.Username,
		Password:  in.Password,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, userrepo.ErrUsernameExists):
			s.writeError(w, r, errRegisterUsernameExists)
		case errors.Is(err, userrepo.ErrEmailExists):
			s.writeError(w, r, errRegisterEmailExists)
		default:
			s.writeError(w, r, err)
		}

		return
	}

	pair, _, err := s.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, tokenPairOutput{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		User:         newUserSummary(u),
	})
}

// POST /api/auth/login

type loginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

var errLoginInvalidCredentials = Error{
	Status: http.StatusUnauthorized,
	Type:   "users/common/login/invalid-credentials",
	Detail: "Invalid username or password",
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)

		return
	}

	pair, u, err := s.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		if errors.Is(err, authservice.ErrInvalidCredentials) {
			s.writeError(w, r, errLoginInvalidCredentials)
		} else {
			s.writeError(w, r, err)
		}

		return
	}

	s.writeJSON(w, http.StatusOK, tokenPairOutput{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		User:         newUserSummary(u),
	})
}

// POST /api/auth/oauth2/token
//
// Form encoded variant of login for OAuth2 password flow tooling, such
// as the interactive API docs.

type oauth2TokenOutput struct {
	AccessToken string `json:"access_token"` //nolint:tagliatelle
	TokenType   string `json:"token_type"`   //nolint:tagliatelle
}

var errOAuth2InvalidCredentials = Error{
	Status: http.StatusUnauthorized,
	Type:   "users/common/login-oauth2/invalid-credentials",
	Detail: "Invalid username or password",
}

func (s *Server) handleOAuth2Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, errInvalidBody.WithDetail("form body could not be parsed"))

		return
	}

	pair, _, err := s.auth.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, authservice.ErrInvalidCredentials) {
			s.writeError(w, r, errOAuth2InvalidCredentials)
		} else {
			s.writeError(w, r, err)
		}

		return
	}

	s.writeJSON(w, http.StatusOK, oauth2TokenOutput{
		AccessToken: pair.Access,
		TokenType:   "bearer",
	})
}

// POST /api/auth/refresh

type refreshInput struct {
	RefreshToken string `json:"refresh_token"` //nolint:tagliatelle
}

var errInvalidRefreshToken = Error{
	Status: http.StatusUnauthorized,
	Type:   "users/common/refresh-tokens/invalid-refresh-token",
	Detail: "Refresh token is invalid or expired",
}

func (s *Server) handleRefreshTokens(w http.ResponseWriter, r *http.Request) {
	var in refreshInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)

		return
	}

	pair, u, err := s.auth.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		if errors.Is(err, authservice.ErrInvalidRefreshToken) {
			s.writeError(w, r, errInvalidRefreshToken)
		} else {
			s.writeError(w, r, err)
		}

		return
	}

	s.writeJSON(w, http.StatusOK, tokenPairOutput{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		User:         newUserSummary(u),
	})
}

// POST /api/auth/reset-password

type resetPasswordInput struct {
	Email string `json:"email"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetPasswordInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)

		return
	}

	if in.Email == "" {
		s.writeError(w, r, errInvalidBody.WithDetail("email is required"))

		return
	}

	if err := s.auth.RequestPasswordReset(r.Context(), in.Email); err != nil {
		s.writeError(w, r, err)

		return
	}

	// Whether the address exists is never disclosed.
	s.writeDetail(w, http.StatusAccepted, "If the email exists, a password reset link has been sent.")
}

// POST /api/auth/reset-password/confirm

type resetPasswordConfirmInput struct {
	ActionID    uuid.UUID `json:"action_id"` //nolint:tagliatelle
	Token       string    `json:"token"`
	NewPassword string    `json:"new_password"` //nolint:tagliatelle
}

var (
	errResetActionNotFound = Error{
		Status: http.StatusNotFound,
		Type:   "users/common/reset-password-confirm/action-not-found",
		Detail: "Password reset request not found",
	}
	errResetInvalidActionToken = Error{
		Status: http.StatusBadRequest,
		Type:   "users/common/reset-password-confirm/invalid-action-token",
		Detail: "Password reset token is invalid or expired",
	}
)

func (s *Server) handleResetPasswordConfirm(w http.ResponseWriter, r *http.Request) {
	var in resetPasswordConfirmInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)

		return
	}

	if len(in.NewPassword) < minPasswordLength {
		s.writeError(w, r, errInvalidBody.WithDetail("new_password must be at least 8 characters"))

		return
	}

	err := s.auth.ConfirmPasswordReset(r.Context(), in.ActionID, in.Token, in.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, userrepo.ErrActionNotFound):
			s.writeError(w, r, errResetActionNotFound)
		case errors.Is(err, authservice.ErrInvalidActionToken):
			s.writeError(w, r, errResetInvalidActionToken)
		default:
			s.writeError(w, r, err)
		}

		return
	}

	s.writeDetail(w, http.StatusOK, "Password reset successful.")
}

// POST /api/auth/verify-email

type verifyEmailInput struct {
	ActionID uuid.UUID `json:"action_id"` //nolint:tagliatelle
	Token    string    `json:"token"`
}

type verifyEmailOutput struct {
	UserID uuid.UUID `json:"user_id"` //nolint:tagliatelle
	Email  string    `json:"email"`
}

var (
	errVerifyActionNotFound = Error{
		Status: http.StatusNotFound,
		Type:   "users/common/verify-email-confirm/action-not-found",
		Detail: "Email verification request not found",
	}
	errVerifyInvalidActionToken = Error{
		Status: http.StatusBadRequest,
		Type:   "users/common/verify-email-confirm/invalid-action-token",
		Detail: "Email verification token is invalid or expired",
	}
	errVerifyEmailInUse = Error{
		Status: http.StatusBadRequest,
		Type:   "users/common/verify-email-confirm/email-already-in-use",
		Detail: "The email address is already in use",
	}
)

func (s *Server) handleVerifyEmailConfirm(w http.ResponseWriter, r *http.Request) {
	var in verifyEmailInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)

		return
	}

	userID, verified, err := s.auth.ConfirmEmailVerification(r.Context(), in.ActionID, in.Token)
	if err != nil {
		switch {
		case errors.Is(err, userrepo.ErrActionNotFound):
			s.writeError(w, r, errVerifyActionNotFound)
		case errors.Is(err, authservice.ErrInvalidActionToken):
			s.writeError(w, r, errVerifyInvalidActionToken)
		case errors.Is(err, userrepo.ErrEmailExists):
			s.writeError(w, r, errVerifyEmailInUse)
		default:
			s.writeError(w, r, err)
		}

		return
	}

	s.writeJSON(w, http.StatusOK, verifyEmailOutput{UserID: userID, Email: verified})
}
