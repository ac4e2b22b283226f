package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// HandlerFunc executes one task. The returned bytes become the task
// result that waiters can poll for.
type HandlerFunc func(ctx context.Context, payload []byte) ([]byte, error)

// Registry maps task names to handlers. Handlers are registered during
// wiring and the set is fixed before the worker or an eager client
// starts executing, so duplicate names are a programming error.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

func (r *Registry) Register(name string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; ok {
		panic(fmt.Sprintf("task %q registered twice", name))
	}

	r.handlers[name] = h
}

func (r *Registry) Handler(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]

	return h, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
