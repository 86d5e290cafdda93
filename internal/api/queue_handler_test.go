package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueueStats struct {
	depths  map[string]int
	running map[string]bool
}

func (f *fakeQueueStats) QueueDepth(groupID string) int {
	return f.depths[groupID]
}

func (f *fakeQueueStats) IsWorkerRunning(groupID string) bool {
	return f.running[groupID]
}

func TestQueueHandler_GetGroupStatus(t *testing.T) {
	stats := &fakeQueueStats{
		depths:  map[string]int{"group-1": 3},
		running: map[string]bool{"group-1": true},
	}
	h := NewQueueHandler(stats)
	r := chi.NewRouter()
	r.Get("/api/queues/{groupID}", h.GetGroupStatus)

	t.Run("active group", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/queues/group-1", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp QueueStatusResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "group-1", resp.GroupID)
		assert.Equal(t, 3, resp.QueueDepth)
		assert.True(t, resp.WorkerRunning)
	})

	t.Run("unknown group reports idle", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/queues/never-seen", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp QueueStatusResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 0, resp.QueueDepth)
		assert.False(t, resp.WorkerRunning)
	})
}
