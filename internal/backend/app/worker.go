package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ixdlabs/go-backend-template/internal/backend/email"
	"github.com/ixdlabs/go-backend-template/internal/backend/metrics"
	auditpg "github.com/ixdlabs/go-backend-template/internal/backend/repository/auditrepo/postgres"
	notifpg "github.com/ixdlabs/go-backend-template/internal/backend/repository/notificationrepo/postgres"
	userpg "github.com/ixdlabs/go-backend-template/internal/backend/repository/userrepo/postgres"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/auditservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/authservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/services/notificationservice"
	"github.com/ixdlabs/go-backend-template/internal/backend/tasks"
	"github.com/ixdlabs/go-backend-template/internal/pkg/config"
	"github.com/ixdlabs/go-backend-template/internal/pkg/pgtools"
	"github.com/ixdlabs/go-backend-template/internal/pkg/tracing"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

// ErrEagerWorker is returned when the worker is started while tasks
// are configured to run inline in the API process.
var ErrEagerWorker = errors.New("tasks run eagerly in process, unset TASK_ALWAYS_EAGER to run a worker")

// WorkerApp is the queue consuming process. It shares the service
// wiring with the API but serves no HTTP; migrations stay with the API
// process.
type WorkerApp struct {
	w           *tasks.Worker
	pool        *pgxpool.Pool
	tc          tasks.Client
	stopTracing func(context.Context) error
	lg          logger.Logger
}

func NewWorker(ctx context.Context, cfg config.Config) (WorkerApp, error) {
	if cfg.Tasks.AlwaysEager {
		return WorkerApp{}, ErrEagerWorker
	}

	lg, err := logger.New(cfg.Logger)
	if err != nil {
		return WorkerApp{}, fmt.Errorf("can't get logger error: %w", err)
	}

	stopTracing, err := tracing.Setup(ctx, cfg.Otel)
	if err != nil {
		return WorkerApp{}, fmt.Errorf("tracing initializing error: %w", err)
	}

	pool, err := pgtools.Connect(ctx, cfg.PostgresDB.URL)
	if err != nil {
		return WorkerApp{}, fmt.Errorf("postgres connect error: %w", err)
	}

	sender, err := email.New(cfg.Email, lg)
	if err != nil {
		return WorkerApp{}, fmt.Errorf("email sender initializing error: %w", err)
	}

	reg := tasks.NewRegistry()

	tc, err := tasks.NewClient(cfg.Tasks, reg)
	if err != nil {
		return WorkerApp{}, fmt.Errorf("task client initializing error: %w", err)
	}

	userRepo := userpg.New(pool)
	notifRepo := notifpg.New(pool)

	audit := auditservice.New(auditpg.New(pool), lg)

	authService := authservice.New(userRepo, tc, audit, sender, cfg.Auth, cfg.Frontend, lg)
	notifService := notificationservice.New(notifRepo, userRepo, tc, sender, lg)

	registerTaskHandlers(reg, authService, notifService, lg)

	w, err := tasks.NewWorker(cfg.Tasks, reg, metrics.New(), lg)
	if err != nil {
		return WorkerApp{}, fmt.Errorf("worker initializing error: %w", err)
	}

	return WorkerApp{
		w:           w,
		pool:        pool,
		tc:          tc,
		stopTracing: stopTracing,
		lg:          lg,
	}, nil
}

func (wa *WorkerApp) Run(ctx context.Context) {
	wa.lg.Info("STARTED WORKER")

	if err := wa.w.Run(ctx); err != nil {
		wa.lg.Errorf("worker run error: %s", err.Error())
	}

	if err := wa.tc.Close(); err != nil {
		wa.lg.Errorf("task client close error: %s", err.Error())
	}

	wa.pool.Close()

	ctxS, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := wa.stopTracing(ctxS); err != nil { //nolint:contextcheck
		wa.lg.Errorf("tracing shutdown error: %s", err.Error())
	}

	wa.lg.Info("Shutdowned successfully")
}
