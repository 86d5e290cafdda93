package task

import (
	"context"
	"encoding/json"
)

// Task kind identifiers
const (
	// KindAddEpisode is the task kind for ingesting one episode of content
	// into the knowledge graph.
	KindAddEpisode = "add_episode"
)

// Handler processes one kind of task. Implementations are stateless: all
// shared resources (engine client, stores) are injected at construction, and
// each invocation receives only the context and the task's immutable payload.
// Version: 1.0
type Handler interface {
	// Kind returns the task kind identifier this handler processes.
	Kind() string

	// Process runs one task to completion. A returned error marks that task
	// as failed; it never aborts the worker that invoked it.
	Process(ctx context.Context, payload json.RawMessage) error
}
