package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IngestRequestEvent represents a request to enqueue a background ingestion
// task. It carries the ordering group alongside the task kind and payload so
// the submission side never needs to inspect the payload.
type IngestRequestEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates the task kind that should be enqueued
	Type string `json:"type"`

	// GroupID selects the ordering domain the task belongs to
	GroupID string `json:"group_id"`

	// Payload contains the task-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *IngestRequestEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewIngestRequestEvent creates a new IngestRequestEvent with the specified
// task kind, ordering group, and payload.
func NewIngestRequestEvent(eventType, groupID string, payload interface{}) (*IngestRequestEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &IngestRequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		GroupID:   groupID,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *IngestRequestEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *IngestRequestEvent) error
}
