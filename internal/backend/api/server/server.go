// Package server is the HTTP edge: chi routing, the middleware chain,
// and one handler per API action. Handlers translate between the wire
// shapes and the services, which stay transport free.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
	"github.com/ixdlabs/go-backend-template/internal/backend/metrics"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/appcache"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/notificationrepo"
	"github.com/ixdlabs/go-backend-template/internal/backend/reqinfo"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/authservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/healthservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/notificationservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/userservice"
	"github.com/ixdlabs/go-backend-template/internal/pkg/config"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

type AuthService interface {
	Register(ctx context.Context, req authservice.RegisterRequest) (models.User, error)
	Login(ctx context.Context, username, password string) (authservice.TokenPair, models.User, error)
	Refresh(ctx context.Context, refreshToken string) (authservice.TokenPair, models.User, error)
	Authenticate(token string) (reqinfo.Actor, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, actionID uuid.UUID, token, newPassword string) error
	ConfirmEmailVerification(ctx context.Context, actionID uuid.UUID, token string) (uuid.UUID, string, error)
}

type UserService interface {
	Get(ctx context.Context, id uuid.UUID) (models.User, error)
	List(ctx context.Context, req userservice.ListRequest) (models.Page[models.User], error)
	Update(ctx context.Context, req userservice.UpdateRequest) (models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type NotificationService interface {
	List(ctx context.Context, userID uuid.UUID,
		req notificationservice.ListRequest) (models.Page[notificationrepo.Item], error)
	Summary(ctx context.Context, userID uuid.UUID) (int, error)
	Detail(ctx context.Context, deliveryID, userID uuid.UUID) (notificationrepo.Item, error)
	MarkRead(ctx context.Context, deliveryID, userID uuid.UUID) (notificationrepo.Item, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error)
}

type PreferenceStore interface {
	ListPreferences(ctx context.Context) ([]models.Preference, error)
	SetPreference(ctx context.Context, key, value string) (models.Preference, error)
}

type FlagService interface {
	Enabled(ctx context.Context, flag string) (bool, error)
	Supported(flag string, supported []string) bool
	EnabledAndSupported(ctx context.Context, flag string, supported []string) (bool, error)
	Invalidate(ctx context.Context) error
}

type HealthService interface {
	Check(ctx context.Context) (healthservice.Status, error)
}

type Auditor interface {
	RecordUpdate(ctx context.Context, resourceType string, resourceID uuid.UUID, oldV, newV interface{})
}

// Services bundles everything the handlers call.
type Services struct {
	Auth          AuthService
	Users         UserService
	Notifications NotificationService
	Preferences   PreferenceStore
	Flags         FlagService
	Health        HealthService
	Audit         Auditor
}

type Server struct {
	serv    *http.Server
	auth    AuthService
	users   UserService
	notifs  NotificationService
	prefs   PreferenceStore
	flags   FlagService
	health  HealthService
	audit   Auditor
	cache   appcache.Cache
	m       *metrics.Metrics
	limiter *keyedLimiter
	lg      logger.Logger
}

func New(cfg config.Server, rl config.RateLimit, svcs Services,
	cache appcache.Cache, m *metrics.Metrics, lg logger.Logger,
) *Server {
	s := &Server{
		auth:   svcs.Auth,
		users:  svcs.Users,
		notifs: svcs.Notifications,
		prefs:  svcs.Preferences,
		flags:  svcs.Flags,
		health: svcs.Health,
		audit:  svcs.Audit,
		cache:  cache,
		m:      m,
		lg:     lg,
	}

	if rl.Enabled {
		s.limiter = newKeyedLimiter(rl.RPS, rl.Burst)
	}

	s.serv = &http.Server{ //nolint:exhaustruct
		Addr:         cfg.Addr,
		Handler:      otelhttp.NewHandler(s.routes(cfg), "http.server"),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) routes(cfg config.Server) http.Handler {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(s.recoverMiddleware)
	r.Use(s.metaMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(cors.Handler(cors.Options{ //nolint:exhaustruct
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Feature-Flags"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.authMiddleware)

	if s.limiter != nil {
		r.Use(s.rateLimitMiddleware)
	}

	r.Get("/metrics", s.m.Handler().ServeHTTP)
	r.Get("/api/health", s.handleHealthCheck)
	r.Get("/api/docs", s.handleDocs)
	r.Get("/api/openapi.yaml", s.handleOpenAPISpec)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/oauth2/token", s.handleOAuth2Token)
		r.Post("/refresh", s.handleRefreshTokens)
		r.Post("/reset-password", s.handleResetPassword)
		r.Post("/reset-password/confirm", s.handleResetPasswordConfirm)
		r.Post("/verify-email", s.handleVerifyEmailConfirm)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/flags/{flag}", s.handleDetailFlag)

		r.Group(func(r chi.Router) {
			r.Use(s.requireScope("user"))

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", s.handleDetailMe)
				r.Put("/", s.handleUpdateMe)
				r.Delete("/", s.handleDeleteMe)
				r.Post("/password", s.handleChangePassword)
			})

			r.Get("/users/{id}", s.handleDetailUser)
			r.Put("/users/{id}", s.handleUpdateUser)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", s.handleListNotifications)
				r.Get("/summary", s.handleNotificationSummary)
				r.Post("/read-all", s.handleReadAllNotifications)
				r.Get("/{id}", s.handleDetailNotification)
				r.Post("/{id}/read", s.handleReadNotification)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireScope("admin"))

			r.Get("/users", s.handleListUsers)
			r.Delete("/users/{id}", s.handleDeleteUser)

			r.Get("/preferences", s.handleListPreferences)
			r.Put("/preferences/{key}", s.handleSetPreference)
		})
	})

	return r
}

// Handler exposes the routed handler for tests and for embedding the
// API into another server.
func (s *Server) Handler() http.Handler {
	return s.serv.Handler
}

func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error)

	go func() {
		if err := s.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			close(errCh)
		}
	}()

	select {
	case <-ctx.Done():
		ctxS, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()

		if err := s.Shutdown(ctxS); err != nil { //nolint:contextcheck
			return fmt.Errorf("context error: %w server error %w", ctxS.Err(), err)
		}

		if !errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("context cancelled error: %w", ctx.Err())
		}

		return nil
	case err := <-errCh:
		return fmt.Errorf("listen and serve error: %w", err)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.serv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown server error: %w", err)
	}

	return nil
}
