package task

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lorecraft/graphd/internal/events"
	"github.com/lorecraft/graphd/internal/queue"
)

// QueueSubmitter is the slice of the queue manager the event handler needs.
type QueueSubmitter interface {
	Submit(groupID string, t queue.Task) int
}

// IngestEventHandler turns IngestRequestEvents into queued tasks. It is the
// only bridge between the event-emitting service layer and the queue.
type IngestEventHandler struct {
	submitter QueueSubmitter
	logger    *slog.Logger
}

// NewIngestEventHandler creates an event handler submitting to the given
// queue manager.
func NewIngestEventHandler(submitter QueueSubmitter, logger *slog.Logger) *IngestEventHandler {
	return &IngestEventHandler{
		submitter: submitter,
		logger:    logger.With("component", "ingest_event_handler"),
	}
}

// HandleEvent enqueues the task described by the event. Submission is
// fire-and-forget: a returned nil means the task is queued, not processed.
func (h *IngestEventHandler) HandleEvent(ctx context.Context, event *events.IngestRequestEvent) error {
	if event.Type != KindAddEpisode {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	if event.GroupID == "" {
		return errors.New("ingest request event missing group ID")
	}

	depth := h.submitter.Submit(event.GroupID, queue.Task{
		Kind:    event.Type,
		Payload: event.Payload,
	})

	h.logger.Info("ingestion task enqueued",
		"event_id", event.ID,
		"group_id", event.GroupID,
		"queue_depth", depth)
	return nil
}

// Ensure IngestEventHandler implements events.EventHandler
var _ events.EventHandler = (*IngestEventHandler)(nil)
