package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ixdlabs/go-backend-template/internal/backend/reqinfo"
)

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.lg.Errorf("panic on %s %s: %v", r.Method, r.URL.Path, rec)
				s.writeError(w, r, errInternal)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// metaMiddleware stores request metadata on the context for audit
// records written further down the stack.
func (s *Server) metaMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := reqinfo.Meta{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
			Method:    r.Method,
			URL:       r.URL.RequestURI(),
		}

		next.ServeHTTP(w, r.WithContext(reqinfo.WithMeta(r.Context(), meta)))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.lg.Infof("METHOD %s URI %s STATUS %d Latency %s Client IP %s User Agent %s",
			r.Method,
			r.URL.RequestURI(),
			ww.Status(),
			time.Since(start).String(),
			clientIP(r),
			r.UserAgent(),
		)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		// The route pattern keeps metric cardinality bounded; raw
		// paths would explode on ids.
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		s.m.ObserveRequest(r.Method, route, status, time.Since(start))
	})
}

// authMiddleware resolves a bearer token into the request actor. A
// presented but invalid token fails the request; routes decide via
// requireScope whether an actor must be present at all.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)

			return
		}

		actor, err := s.auth.Authenticate(token)
		if err != nil {
			s.writeError(w, r, errNotAuthenticated)

			return
		}

		next.ServeHTTP(w, r.WithContext(reqinfo.WithActor(r.Context(), actor)))
	})
}

func (s *Server) requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := reqinfo.ActorFrom(r.Context())
			if !ok {
				s.writeError(w, r, errNotAuthenticated)

				return
			}

			if !actor.HasScope(scope) {
				s.writeError(w, r, errNotAuthorized)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if actor, ok := reqinfo.ActorFrom(r.Context()); ok {
			key = actor.ID.String()
		}

		if !s.limiter.allow(key) {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, errRateLimited)

			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}

	return strings.TrimSpace(token)
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")

		return strings.TrimSpace(ip)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
