package task

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorecraft/graphd/internal/queue"
)

// recordingHandler is a Handler stub that records the payloads it processes.
type recordingHandler struct {
	mu       sync.Mutex
	kind     string
	payloads []string
	err      error
}

func (h *recordingHandler) Kind() string { return h.kind }

func (h *recordingHandler) Process(ctx context.Context, payload json.RawMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payloads = append(h.payloads, string(payload))
	return h.err
}

func (h *recordingHandler) processed() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.payloads...)
}

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry(testLogger())
	h := &recordingHandler{kind: "add_episode"}
	r.Register(h)

	err := r.Dispatch(context.Background(), "add_episode", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`}, h.processed())
}

func TestRegistry_DispatchUnknownKind(t *testing.T) {
	r := NewRegistry(testLogger())

	err := r.Dispatch(context.Background(), "mystery", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoHandler)
	assert.Contains(t, err.Error(), "mystery")
}

func TestRegistry_RegisterReplacesHandler(t *testing.T) {
	r := NewRegistry(testLogger())
	first := &recordingHandler{kind: "add_episode"}
	second := &recordingHandler{kind: "add_episode"}
	r.Register(first)
	r.Register(second)

	require.NoError(t, r.Dispatch(context.Background(), "add_episode", json.RawMessage(`{}`)))
	assert.Empty(t, first.processed())
	assert.Len(t, second.processed(), 1)
}

// An unknown-kind task is consumed and logged; it does not wedge the group's
// worker, and the next task in the same group still processes.
func TestRegistry_UnknownKindDoesNotBlockGroup(t *testing.T) {
	r := NewRegistry(testLogger())
	h := &recordingHandler{kind: KindAddEpisode}
	r.Register(h)

	m := queue.NewManager(r, testLogger())
	defer m.Stop()

	m.Submit("group-1", queue.Task{Kind: "unknown", Payload: json.RawMessage(`{}`)})
	m.Submit("group-1", queue.Task{Kind: KindAddEpisode, Payload: json.RawMessage(`{"n":2}`)})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(h.processed()) == 1 && m.QueueDepth("group-1") == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, []string{`{"n":2}`}, h.processed())
	assert.Equal(t, 0, m.QueueDepth("group-1"))
}
