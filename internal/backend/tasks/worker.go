package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ixdlabs/go-backend-template/internal/backend/metrics"
	"github.com/ixdlabs/go-backend-template/internal/pkg/config"
	"github.com/ixdlabs/go-backend-template/pkg/logger"
)

const echoInterval = "@every 10m"

// Worker consumes the task queue and runs the periodic schedule.
type Worker struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	lg        logger.Logger
}

func NewWorker(cfg config.Tasks, reg *Registry, m *metrics.Metrics, lg logger.Logger) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url error: %w", err)
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{DefaultQueue: 1},
		Logger:      asynqLogger{lg: lg},
	})

	mux := asynq.NewServeMux()
	for _, name := range reg.Names() {
		handler, _ := reg.Handler(name)
		mux.HandleFunc(name, instrument(name, handler, m, lg))
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Logger: asynqLogger{lg: lg}})

	echoPayload, err := json.Marshal(EchoPayload{Message: "scheduled echo"})
	if err != nil {
		return nil, fmt.Errorf("marshal echo payload error: %w", err)
	}

	if _, err := scheduler.Register(echoInterval,
		asynq.NewTask(TaskEcho, echoPayload), asynq.Queue(DefaultQueue)); err != nil {
		return nil, fmt.Errorf("register echo schedule error: %w", err)
	}

	return &Worker{
		srv:       srv,
		scheduler: scheduler,
		mux:       mux,
		lg:        lg,
	}, nil
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler error: %w", err)
	}

	if err := w.srv.Start(w.mux); err != nil {
		w.scheduler.Shutdown()

		return fmt.Errorf("start worker error: %w", err)
	}

	<-ctx.Done()

	w.scheduler.Shutdown()
	w.srv.Shutdown()

	return nil
}

func instrument(name string, h HandlerFunc, m *metrics.Metrics, lg logger.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()

		res, err := h(ctx, t.Payload())
		m.ObserveTask(name, err, time.Since(start))

		if err != nil {
			lg.Errorf("task %s error: %s", name, err.Error())

			return err
		}

		if len(res) > 0 {
			if _, err := t.ResultWriter().Write(res); err != nil {
				return fmt.Errorf("write result error: %w", err)
			}
		}

		return nil
	}
}

// asynqLogger adapts the application logger to the asynq interface.
type asynqLogger struct {
	lg logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.lg.Debug(args...) }
func (l asynqLogger) Info(args ...interface{})  { l.lg.Info(args...) }
func (l asynqLogger) Warn(args ...interface{})  { l.lg.Warn(args...) }
func (l asynqLogger) Error(args ...interface{}) { l.lg.Error(args...) }
func (l asynqLogger) Fatal(args ...interface{}) { l.lg.Error(args...) }
