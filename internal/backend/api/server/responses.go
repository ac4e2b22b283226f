package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
)

// detailResponse is the envelope for acknowledgement style responses.
type detailResponse struct {
	Detail string `json:"detail"`
}

// userSummary is the compact user shape embedded in auth responses and
// the admin list.
type userSummary struct {
	ID        uuid.UUID       `json:"id"`
	Type      models.UserType `json:"type"`
	Username  string          `json:"username"`
	FirstName string          `json:"first_name"` //nolint:tagliatelle
	LastName  string          `json:"last_name"`  //nolint:tagliatelle
}

func newUserSummary(u models.User) userSummary {
	return userSummary{
		ID:        u.ID,
		Type:      u.Type,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// userDetail is the full user shape for the me and admin detail views.
type userDetail struct {
	userSummary
	Email     *string   `json:"email"`
	JoinedAt  time.Time `json:"joined_at"`  //nolint:tagliatelle
	CreatedAt time.Time `json:"created_at"` //nolint:tagliatelle
	UpdatedAt time.Time `json:"updated_at"` //nolint:tagliatelle
}

func newUserDetail(u models.User) userDetail {
	return userDetail{
		userSummary: newUserSummary(u),
		Email:       u.Email,
		JoinedAt:    u.JoinedAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.lg.Errorf("encode response error: %s", err.Error())
	}
}

func (s *Server) writeDetail(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, detailResponse{Detail: detail})
}

// decode parses the JSON request body into v. The returned error is
// ready to be written as is.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidBody
	}

	return nil
}

// queryInt reads an integer query parameter, zero when absent or not a
// number. Range clamping is left to the services.
func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}

	return v
}

// urlID parses the {id} route parameter.
func urlID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}
