package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/ixdlabs/go-backend-template/internal/backend/repository/appcache"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/healthservice"
)

// Healthy responses are cached briefly so probes cannot hammer the
// dependencies; failures are never cached.
const healthCacheTTL = time.Second * 30

// GET /api/health

var errServiceUnavailable = Error{
	Status: http.StatusServiceUnavailable,
	Type:   "core/health/service-unavailable",
	Detail: "Service unavailable",
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	key := appcache.NewKey().VaryPath(r.URL.Path)

	var cached healthservice.Status
	if err := appcache.GetJSON(r.Context(), s.cache, key, &cached); err == nil {
		s.m.ObserveCache(true)
		s.writeJSON(w, http.StatusOK, cached)

		return
	}

	s.m.ObserveCache(false)

	status, err := s.health.Check(r.Context())
	if err != nil {
		if errors.Is(err, healthservice.ErrUnavailable) {
			s.writeError(w, r, errServiceUnavailable)
		} else {
			s.writeError(w, r, err)
		}

		return
	}

	if err := appcache.SetJSON(r.Context(), s.cache, key, status, healthCacheTTL); err != nil {
		s.lg.Errorf("cache health status error: %s", err.Error())
	}

	s.writeJSON(w, http.StatusOK, status)
}
