package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ixdlabs/go-backend-template/internal/pkg/config"
)

const (
	DefaultQueue = "default"
	eagerQueue   = "eager"

	maxRetry     = 3
	pollInterval = time.Millisecond * 100
)

// Handle identifies a submitted task for later result polling.
type Handle struct {
	ID    string
	Queue string
}

// Client submits tasks. The broker client hands them to the worker
// over redis, the eager client runs them inline for development and
// tests.
type Client interface {
	Submit(ctx context.Context, name string, payload interface{}) (Handle, error)
	Result(ctx context.Context, h Handle, timeout time.Duration) ([]byte, error)
	Close() error
}

func NewClient(cfg config.Tasks, reg *Registry) (Client, error) {
	if cfg.AlwaysEager {
		return NewEagerClient(reg), nil
	}

	return NewBrokerClient(cfg)
}

type BrokerClient struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	resultTTL time.Duration
}

func NewBrokerClient(cfg config.Tasks) (*BrokerClient, error) {
	opt, err := asynq.ParseRedisURI(cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url error: %w", err)
	}

	return &BrokerClient{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		resultTTL: cfg.ResultTTL,
	}, nil
}

func (c *BrokerClient) Submit(ctx context.Context, name string, payload interface{}) (Handle, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Handle{}, fmt.Errorf("marshal payload error: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(name, b),
		asynq.Queue(DefaultQueue),
		asynq.MaxRetry(maxRetry),
		asynq.Retention(c.resultTTL),
	)
	if err != nil {
		return Handle{}, fmt.Errorf("enqueue %s error: %w", name, err)
	}

	return Handle{ID: info.ID, Queue: info.Queue}, nil
}

// Result polls the broker until the task completes, fails for good, or
// the timeout passes.
func (c *BrokerClient) Result(ctx context.Context, h Handle, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		info, err := c.inspector.GetTaskInfo(h.Queue, h.ID)
		if err != nil {
			return nil, fmt.Errorf("get task info error: %w", err)
		}

		switch info.State {
		case asynq.TaskStateCompleted:
			return info.Result, nil
		case asynq.TaskStateArchived:
			return nil, fmt.Errorf("task %s failed: %s", h.ID, info.LastErr)
		default:
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait result error: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *BrokerClient) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close client error: %w", err)
	}

	if err := c.inspector.Close(); err != nil {
		return fmt.Errorf("close inspector error: %w", err)
	}

	return nil
}

// EagerClient executes handlers synchronously in process. Failures
// surface directly to the caller instead of going through retries.
type EagerClient struct {
	reg *Registry

	mu      sync.Mutex
	results map[string][]byte
}

func NewEagerClient(reg *Registry) *EagerClient {
	return &EagerClient{
		reg:     reg,
		results: make(map[string][]byte),
	}
}

func (c *EagerClient) Submit(ctx context.Context, name string, payload interface{}) (Handle, error) {
	handler, ok := c.reg.Handler(name)
	if !ok {
		return Handle{}, fmt.Errorf("unknown task %q", name)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return Handle{}, fmt.Errorf("marshal payload error: %w", err)
	}

	res, err := handler(ctx, b)
	if err != nil {
		return Handle{}, fmt.Errorf("task %s error: %w", name, err)
	}

	h := Handle{ID: uuid.NewString(), Queue: eagerQueue}

	c.mu.Lock()
	c.results[h.ID] = res
	c.mu.Unlock()

	return h, nil
}

func (c *EagerClient) Result(_ context.Context, h Handle, _ time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, ok := c.results[h.ID]
	if !ok {
		return nil, fmt.Errorf("no result for task %s", h.ID)
	}

	return res, nil
}

func (c *EagerClient) Close() error {
	return nil
}
