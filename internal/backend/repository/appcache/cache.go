package appcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ixdlabs/go-backend-template/internal/pkg/config"
	"github.com/ixdlabs/go-backend-template/internal/pkg/redistools"
)

var ErrMiss = errors.New("cache miss")

// Cache stores opaque bytes under hashed keys. Implementations are
// selected by the cache URL scheme: "memory://" for the in-process
// store and "redis://" for a shared one.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

func New(ctx context.Context, cfg config.Cache) (Cache, error) {
	switch {
	case cfg.URL == "" || strings.HasPrefix(cfg.URL, "memory://"):
		return NewMemory(cfg.TTL), nil
	case strings.HasPrefix(cfg.URL, "redis://") || strings.HasPrefix(cfg.URL, "rediss://"):
		rdb, err := redistools.Connect(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("connect error: %w", err)
		}

		return NewRedis(rdb), nil
	default:
		return nil, fmt.Errorf("unsupported cache url %q", cfg.URL)
	}
}

// GetJSON loads and decodes a cached value. Entries that fail to
// decode count as misses so that stale shapes age out silently.
func GetJSON[T any](ctx context.Context, c Cache, key Key, v *T) error {
	b, err := c.Get(ctx, key.Hash())
	if err != nil {
		return err
	}

	if err := json.Unmarshal(b, v); err != nil {
		return ErrMiss
	}

	return nil
}

func SetJSON[T any](ctx context.Context, c Cache, key Key, v T, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	if err := c.Set(ctx, key.Hash(), b, ttl); err != nil {
		return fmt.Errorf("set error: %w", err)
	}

	return nil
}
