package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
)

// GET /api/v1/preferences

func (s *Server) handleListPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.prefs.ListPreferences(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, models.NewPage(len(prefs), prefs))
}

// PUT /api/v1/preferences/{key}

type setPreferenceInput struct {
	Value string `json:"value"`
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		s.writeError(w, r, errInvalidBody.WithDetail("preference key is required"))

		return
	}

	var in setPreferenceInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)

		return
	}

	old, _ := s.prefs.ListPreferences(r.Context())

	p, err := s.prefs.SetPreference(r.Context(), key, in.Value)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.audit.RecordUpdate(r.Context(), "preference", p.ID, oldPreference(old, key), p)

	// Flag resolution caches the whole table; drop it so the write is
	// visible on the next read.
	if err := s.flags.Invalidate(r.Context()); err != nil {
		s.lg.Errorf("invalidate preferences cache error: %s", err.Error())
	}

	s.writeJSON(w, http.StatusOK, p)
}

func oldPreference(prefs []models.Preference, key string) interface{} {
	for _, p := range prefs {
		if p.Key == key {
			return p
		}
	}

	return nil
}
