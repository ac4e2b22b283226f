// Package app assembles the backend: configuration in, wired processes
// out. The API process serves HTTP, the worker process consumes the
// task queue; both are built here so the wiring stays in one place.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ixdlabs/go-backend-template/internal/backend/api/server"
	"github.com/ixdlabs/go-backend-template/internal/backend/email"
	"github.com/ixdlabs/go-backend-template/internal/backend/metrics"
	"github.com/ixdlabs/go-backend-template/internal/backend/repository/appcache"
	auditpg "github.com/ixdlabs/go-backend-template/internal/backend/repository/auditrepo/postgres"
	notifpg "github.com/ixdlabs/go-backend-template/internal/backend/repository/notificationrepo/postgres"
	prefpg "github.com/ixdlabs/go-backend-template/internal/backend/repository/preferencerepo/postgres"
	userpg "github.com/ixdlabs/go-backend-template/internal/backend/repository/userrepo/postgres"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/auditservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/authservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/flagservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/healthservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/notificationservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/userservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/tasks"
	"github.com/ixdlabs/go-backend-template/internal/pkg/config"
	"github.com/ixdlabs/go-backend-template/internal/pkg/pgtools"
	"github.com/ixdlabs/go-backend-template/internal/pkg/tracing"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

const shutdownTimeout = time.Second * 5

type Server interface {
	Start(context.Context) error
	Shutdown(context.Context) error
}

type BackendApp struct {
	s           Server
	pool        *pgxpool.Pool
	tc          tasks.Client
	stopTracing func(context.Context) error
	lg          logger.Logger
	cfg         config.Config
}

func New(ctx context.Context, cfg config.Config) (BackendApp, error) {
	lg, err := logger.New(cfg.Logger)
	if err != nil {
		return BackendApp{}, fmt.Errorf("can't get logger error: %w", err)
	}

	stopTracing, err := tracing.Setup(ctx, cfg.Otel)
	if err != nil {
		return BackendApp{}, fmt.Errorf("tracing initializing error: %w", err)
	}

	pool, err := pgtools.Connect(ctx, cfg.PostgresDB.URL)
	if err != nil {
		return BackendApp{}, fmt.Errorf("postgres connect error: %w", err)
	}

	if err := pgtools.ApplyMigration(cfg.PostgresDB); err != nil {
		return BackendApp{}, fmt.Errorf("apply migration error: %w", err)
	}

	cache, err := appcache.New(ctx, cfg.Cache)
	if err != nil {
		return BackendApp{}, fmt.Errorf("cache initializing error: %w", err)
	}

	sender, err := email.New(cfg.Email, lg)
	if err != nil {
		return BackendApp{}, fmt.Errorf("email sender initializing error: %w", err)
	}

	reg := tasks.NewRegistry()

	tc, err := tasks.NewClient(cfg.Tasks, reg)
	if err != nil {
		return BackendApp{}, fmt.Errorf("task client initializing error: %w", err)
	}

	userRepo := userpg.New(pool)
	notifRepo := notifpg.New(pool)
	prefRepo := prefpg.New(pool)

	audit := auditservice.New(auditpg.New(pool), lg)

	authService := authservice.New(userRepo, tc, audit, sender, cfg.Auth, cfg.Frontend, lg)
	userService := userservice.New(userRepo, tc, audit, lg)
	notifService := notificationservice.New(notifRepo, userRepo, tc, sender, lg)
	flagService := flagservice.New(prefRepo, cache, cfg.Flags, lg)
	healthService := healthservice.New(pool, cache, tc, lg)

	registerTaskHandlers(reg, authService, notifService, lg)

	s := server.New(cfg.Server, cfg.RateLimit, server.Services{
		Auth:          authService,
		Users:         userService,
		Notifications: notifService,
		Preferences:   prefRepo,
		Flags:         flagService,
		Health:        healthService,
		Audit:         audit,
	}, cache, metrics.New(), lg)

	return BackendApp{
		s:           s,
		pool:        pool,
		tc:          tc,
		stopTracing: stopTracing,
		lg:          lg,
		cfg:         cfg,
	}, nil
}

// registerTaskHandlers mounts every known task. The API registers them
// too so the eager client can run tasks inline in development and in
// tests.
func registerTaskHandlers(reg *tasks.Registry,
	authService *authservice.AuthService, notifService *notificationservice.NotificationService,
	lg logger.Logger,
) {
	reg.Register(tasks.TaskEcho, tasks.EchoHandler(lg))
	reg.Register(tasks.TaskHealthPing, tasks.PingHandler())
	authService.RegisterTasks(reg)
	notifService.RegisterTasks(reg)
}

func (ba *BackendApp) Run(ctx context.Context) {
	ba.lg.Infof("STARTED SERVER ON %s", ba.cfg.Server.Addr)

	go func() {
		if err := ba.s.Start(ctx); err != nil {
			ba.lg.Errorf("server start error: %s", err.Error())

			return
		}
	}()

	<-ctx.Done()

	ctxS, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := ba.Stop(ctxS); err != nil { //nolint:contextcheck
		ba.lg.Errorf("server shutdown error: %s", err.Error())
	}
}

func (ba *BackendApp) Stop(ctx context.Context) error {
	if err := ba.s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := ba.tc.Close(); err != nil {
		ba.lg.Errorf("task client close error: %s", err.Error())
	}

	ba.pool.Close()

	if err := ba.stopTracing(ctx); err != nil {
		ba.lg.Errorf("tracing shutdown error: %s", err.Error())
	}

	ba.lg.Info("Shutdowned successfully")

	return nil
}
