// Package healthservice probes the dependencies a request actually
// travels through: postgres, the cache and the task pipeline.
package healthservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ixdlabs/go-backend-template/internal/backend/repository/appcache"
	"github.com/ixdlabs/go-backend-template/internal/backend/tasks"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

const (
	cacheProbeKey = "health_check"
	cacheProbeTTL = time.Second * 10

	// How long the task round trip may take before the check fails.
	taskResultTimeout = time.Second * 5
)

var ErrUnavailable = errors.New("service unavailable")

type Pinger interface {
	Ping(ctx context.Context) error
}

type TaskClient interface {
	Submit(ctx context.Context, name string, payload interface{}) (tasks.Handle, error)
	Result(ctx context.Context, h tasks.Handle, timeout time.Duration) ([]byte, error)
}

type Status struct {
	Status    string    `json:"status"`
	LastCheck time.Time `json:"last_check"` //nolint:tagliatelle
}

type HealthService struct {
	db    Pinger
	cache appcache.Cache
	tc    TaskClient
	lg    logger.Logger
}

func New(db Pinger, cache appcache.Cache, tc TaskClient, lg logger.Logger) *HealthService {
	return &HealthService{db: db, cache: cache, tc: tc, lg: lg}
}

// Check runs all probes and fails on the first broken dependency. The
// returned error wraps ErrUnavailable and names the subsystem.
func (hs *HealthService) Check(ctx context.Context) (Status, error) {
	if err := hs.db.Ping(ctx); err != nil {
		hs.lg.Errorf("health: database ping error: %s", err)

		return Status{}, fmt.Errorf("database: %w", ErrUnavailable)
	}

	if err := hs.checkCache(ctx); err != nil {
		hs.lg.Errorf("health: cache error: %s", err)

		return Status{}, fmt.Errorf("cache: %w", ErrUnavailable)
	}

	if err := hs.checkTasks(ctx); err != nil {
		hs.lg.Errorf("health: tasks error: %s", err)

		return Status{}, fmt.Errorf("tasks: %w", ErrUnavailable)
	}

	return Status{Status: "ok", LastCheck: time.Now().UTC()}, nil
}

// checkCache writes a fresh probe value and reads it back, proving both
// directions work and nothing stale is served.
func (hs *HealthService) checkCache(ctx context.Context) error {
	probe := uuid.NewString()

	if err := hs.cache.Set(ctx, cacheProbeKey, []byte(probe), cacheProbeTTL); err != nil {
		return fmt.Errorf("set error: %w", err)
	}

	got, err := hs.cache.Get(ctx, cacheProbeKey)
	if err != nil {
		return fmt.Errorf("get error: %w", err)
	}

	if string(got) != probe {
		return fmt.Errorf("probe mismatch: got %q", got)
	}

	return nil
}

// checkTasks submits a ping task and waits for its result, so a broken
// broker or result backend shows up as unhealthy.
func (hs *HealthService) checkTasks(ctx context.Context) error {
	value := uuid.NewString()

	h, err := hs.tc.Submit(ctx, tasks.TaskHealthPing, tasks.PingPayload{Value: value})
	if err != nil {
		return fmt.Errorf("submit error: %w", err)
	}

	result, err := hs.tc.Result(ctx, h, taskResultTimeout)
	if err != nil {
		return fmt.Errorf("result error: %w", err)
	}

	if string(result) != value {
		return fmt.Errorf("result mismatch: got %q", result)
	}

	return nil
}
