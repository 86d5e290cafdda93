package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorecraft/graphd/internal/api/shared"
)

// QueueStats is the slice of the queue manager the handler needs.
type QueueStats interface {
	QueueDepth(groupID string) int
	IsWorkerRunning(groupID string) bool
}

// QueueStatusResponse reports the queue state for one group
type QueueStatusResponse struct {
	GroupID       string `json:"group_id"`
	QueueDepth    int    `json:"queue_depth"`
	WorkerRunning bool   `json:"worker_running"`
}

// QueueHandler exposes per-group queue introspection
type QueueHandler struct {
	stats QueueStats
}

// NewQueueHandler creates a new QueueHandler
func NewQueueHandler(stats QueueStats) *QueueHandler {
	return &QueueHandler{stats: stats}
}

// GetGroupStatus handles GET /api/queues/{groupID} requests. Unknown groups
// report zero depth and no worker rather than 404: the queue map holds no
// entry for a group until its first submission.
func (h *QueueHandler) GetGroupStatus(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Group ID is required")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, QueueStatusResponse{
		GroupID:       groupID,
		QueueDepth:    h.stats.QueueDepth(groupID),
		WorkerRunning: h.stats.IsWorkerRunning(groupID),
	})
}
