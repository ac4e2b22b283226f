package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/appcache"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/userrepo"
	"github.com/ixdlabs/go-backend-template/internal/backend/reqinfo"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/authservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/userservice"
)

const userCacheTTL = time.Minute

// GET /api/v1/users/me

var errDetailMeNotFound = Error{
	Status: http.StatusNotFound,
	Type:   "users/common/detail-me/user-not-found",
	Detail: "User not found",
}

func (s *Server) handleDetailMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := reqinfo.ActorFrom(r.Context())

	u, err := s.users.Get(r.Context(), actor.ID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			s.writeError(w, r, errDetailMeNotFound)
		} else {
			s.writeError(w, r, err)
		}

		return
	}

	s.writeJSON(w, http.StatusOK, newUserDetail(u))
}

// PUT /api/v1/users/me

type updateUserInput struct {
	FirstName string  `json:"first_name"` //nolint:tagliatelle
	LastName  string  `json:"last_name"`  //nolint:tagliatelle
	Email     *string `json:"email"`
}

var (
	errUpdateMeNotFound = Error{
		Status: http.StatusNotFound,
		Type:   "users/common/update/user-not-found",
		Detail: "User not found",
	}
	errUpdateMeEmailExists = Error{
		Status: http.StatusBadRequest,
		Type:   "users/common/update/email-exists",
		Detail: "A user with this email already exists",
	}
)

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := reqinfo.ActorFrom(r.Context())

	var in updateUserInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)

		return
	}

	u, err := s.users.Update(r.Context(), userservice.UpdateRequest{
		ID:        actor.ID,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, userrepo.ErrNotFound):
			s.writeError(w, r, errUpdateMeNotFound)
		case errors.Is(err, userrepo.ErrEmailExists):
			s.writeError(w, r, errUpdateMeEmailExists)
		default:
			s.writeError(w, r, err)
		}

		return
	}

	s.writeJSON(w, http.StatusOK, newUserDetail(u))
}

// DELETE /api/v1/users/me

var errDeleteMeNotFound = Error{
	Status: http.StatusNotFound,
	Type:   "users/common/delete-me/user-not-found",
	Detail: "User not found",
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := reqinfo.ActorFrom(r.Context())

	if err := s.users.Delete(r.Context(), actor.ID); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			s.writeError(w, r, errDeleteMeNotFound)
		} else {
			s.writeError(w, r, err)
		}

		return
	}

	s.writeDetail(w, http.StatusOK, "User deleted successfully.")
}

// POST /api/v1/users/me/password

type changePasswordInput struct {
	OldPassword string `json:"old_password"` //nolint:tagliatelle
	NewPassword string `json:"new_password"` //nolint:tagliatelle
}

var (
	errChangePasswordNotFound = Error{
		Status: http.StatusNotFound,
		Type:   "users/common/change-password/user-not-found",
		Detail: "User not found",
	}
	errPasswordIncorrect = Error{
		Status: http.StatusBadRequest,
		Type:   "users/common/change-password/password-incorrect",
		Detail: "The current password is incorrect",
	}
	errPasswordsIdentical = Error{
		Status: http.StatusBadRequest,
		Type:   "users/common/change-password/passwords-identical",
		Detail: "The new password matches the current one",
	}
)

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, _ := reqinfo.ActorFrom(r.Context())

	var in changePasswordInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)

		return
	}

	if len(in.NewPassword) < minPasswordLength {
		s.writeError(w, r, errInvalidBody.WithDetail("new_password must be at least 8 characters"))

		return
	}

	if err := s.auth.ChangePassword(r.Context(), actor.ID, in.OldPassword, in.NewPassword); err != nil {
		switch {
		case errors.Is(err, userrepo.ErrNotFound):
			s.writeError(w, r, errChangePasswordNotFound)
		case errors.Is(err, authservice.ErrPasswordIncorrect):
			s.writeError(w, r, errPasswordIncorrect)
		case errors.Is(err, authservice.ErrPasswordsIdentical):
			s.writeError(w, r, errPasswordsIdentical)
		default:
			s.writeError(w, r, err)
		}

		return
	}

	s.writeDetail(w, http.StatusOK, "Password change successful.")
}

// GET /api/v1/users

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	actor, _ := reqinfo.ActorFrom(r.Context())

	key := appcache.NewKey().
		VaryPath(r.URL.Path).
		VaryQuery(r.URL.Query()).
		VaryAuth(actor.ID.String())

	var cached models.Page[userSummary]
	if err := appcache.GetJSON(r.Context(), s.cache, key, &cached); err == nil {
		s.m.ObserveCache(true)
		s.writeJSON(w, http.StatusOK, cached)

		return
	}

	s.m.ObserveCache(false)

	page, err := s.users.List(r.Context(), userservice.ListRequest{
		Search:  r.URL.Query().Get("search"),
		OrderBy: r.URL.Query().Get("order_by"),
		Limit:   queryInt(r, "limit"),
		Offset:  queryInt(r, "offset"),
	})
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	items := make([]userSummary, 0, len(page.Items))
	for _, u := range page.Items {
		items = append(items, newUserSummary(u))
	}

	out := models.NewPage(page.Count, items)

	if err := appcache.SetJSON(r.Context(), s.cache, key, out, userCacheTTL); err != nil {
		s.lg.Errorf("cache users list error: %s", err.Error())
	}

	s.writeJSON(w, http.StatusOK, out)
}

// GET /api/v1/users/{id}

var errDetailUserNotFound = Error{
	Status: http.StatusNotFound,
	Type:   "users/admin/detail-user/user-not-found",
	Detail: "User not found",
}

// handleDetailUser serves a user by id to admins and to the user
// themselves.
func (s *Server) handleDetailUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := reqinfo.ActorFrom(r.Context())

	id, err := urlID(r)
	if err != nil {
		s.writeError(w, r, errDetailUserNotFound)

		return
	}

	if !actor.HasScope("admin") && actor.ID != id {
		s.writeError(w, r, errNotAuthorized)

		return
	}

	key := appcache.NewKey().
		VaryPath(r.URL.Path).
		VaryAuth(actor.ID.String())

	var cached userDetail
	if err := appcache.GetJSON(r.Context(), s.cache, key, &cached); err == nil {
		s.m.ObserveCache(true)
		s.writeJSON(w, http.StatusOK, cached)

		return
	}

	s.m.ObserveCache(false)

	u, err := s.users.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			s.writeError(w, r, errDetailUserNotFound)
		} else {
			s.writeError(w, r, err)
		}

		return
	}

	out := newUserDetail(u)

	if err := appcache.SetJSON(r.Context(), s.cache, key, out, userCacheTTL); err != nil {
		s.lg.Errorf("cache user detail error: %s", err.Error())
	}

	s.writeJSON(w, http.StatusOK, out)
}

// PUT /api/v1/users/{id}

var (
	errAdminUpdateNotFound = Error{
		Status: http.StatusNotFound,
		Type:   "users/admin/update/user-not-found",
		Detail: "User not found",
	}
	errAdminUpdateEmailExists = Error{
		Status: http.StatusBadRequest,
		Type:   "users/admin/update/email-exists",
		Detail: "A user with this email already exists",
	}
	errAdminUpdateNotAuthorized = Error{
		Status: http.StatusForbidden,
		Type:   "users/admin/update/not-authorized",
		Detail: "Not authorized to update this user",
	}
)

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := reqinfo.ActorFrom(r.Context())

	id, err := urlID(r)
	if err != nil {
		s.writeError(w, r, errAdminUpdateNotFound)

		return
	}

	if !actor.HasScope("admin") {
		s.writeError(w, r, errAdminUpdateNotAuthorized)

		return
	}

	var in updateUserInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)

		return
	}

	u, err := s.users.Update(r.Context(), userservice.UpdateRequest{
		ID:        id,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, userrepo.ErrNotFound):
			s.writeError(w, r, errAdminUpdateNotFound)
		case errors.Is(err, userrepo.ErrEmailExists):
			s.writeError(w, r, errAdminUpdateEmailExists)
		default:
			s.writeError(w, r, err)
		}

		return
	}

	s.writeJSON(w, http.StatusOK, newUserDetail(u))
}

// DELETE /api/v1/users/{id}

var errAdminDeleteNotFound = Error{
	Status: http.StatusNotFound,
	Type:   "users/admin/delete-user/user-not-found",
	Detail: "User not found",
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r)
	if err != nil {
		s.writeError(w, r, errAdminDeleteNotFound)

		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			s.writeError(w, r, errAdminDeleteNotFound)
		} else {
			s.writeError(w, r, err)
		}

		return
	}

	s.writeDetail(w, http.StatusOK, "User deleted successfully.")
}
