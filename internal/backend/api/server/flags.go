package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ixdlabs/go-backend-template/internal/backend/services/flagservice"
)

// GET /api/v1/flags/{flag}
//
// Resolves one flag for the calling client. Supported comes from the
// X-Feature-Flags header, enabled from configuration and preferences.

type flagOutput struct {
	Name                string `json:"name"`
	Enabled             bool   `json:"enabled"`
	Supported           bool   `json:"supported"`
	EnabledAndSupported bool   `json:"enabled_and_supported"` //nolint:tagliatelle
}

func (s *Server) handleDetailFlag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "flag")
	supported := flagservice.ParseHeader(r.Header.Get("X-Feature-Flags"))

	enabled, err := s.flags.Enabled(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	isSupported := s.flags.Supported(name, supported)

	s.writeJSON(w, http.StatusOK, flagOutput{
		Name:                name,
		Enabled:             enabled,
		Supported:           isSupported,
		EnabledAndSupported: enabled && isSupported,
	})
}
