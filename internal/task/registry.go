package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoHandler is returned by Dispatch when no handler is registered for a
// task's kind. It is fatal to that single task, not to the worker.
var ErrNoHandler = errors.New("no handler registered for task kind")

// Registry maps task kind identifiers to their handlers. Registration
// happens at startup; dispatch happens from worker goroutines, so lookups
// are guarded by a read lock.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRegistry creates an empty handler registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger.With("component", "task_registry"),
	}
}

// Register adds a handler keyed by its declared kind. Re-registering a kind
// replaces the prior handler (last write wins).
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := h.Kind()
	if _, exists := r.handlers[kind]; exists {
		r.logger.Warn("replacing handler for task kind", "task_kind", kind)
	}
	r.handlers[kind] = h
}

// Dispatch looks up the handler for kind and invokes it with the payload.
// Returns ErrNoHandler when the kind is unknown.
func (r *Registry) Dispatch(ctx context.Context, kind string, payload json.RawMessage) error {
	r.mu.RLock()
	h, ok := r.handlers[kind]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrNoHandler, kind)
	}

	return h.Process(ctx, payload)
}
