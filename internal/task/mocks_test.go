package task

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/lorecraft/graphd/internal/domain"
	"github.com/lorecraft/graphd/internal/graphengine"
	"github.com/lorecraft/graphd/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// mockEngine implements graphengine.Engine with overridable functions and
// call recording.
type mockEngine struct {
	mu sync.Mutex

	AddEpisodeFn      func(ctx context.Context, params graphengine.AddEpisodeParams) (*graphengine.AddEpisodeResult, error)
	UpdateCommunityFn func(ctx context.Context, node graphengine.Node) error
	ExecuteQueryFn    func(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	Concurrency       int

	AddEpisodeCalls      []graphengine.AddEpisodeParams
	UpdatedNodes         []string
	ExecutedQueries      []string
	ExecutedQueryParams  []map[string]any
}

func newMockEngine() *mockEngine {
	return &mockEngine{Concurrency: 4}
}

func (m *mockEngine) AddEpisode(
	ctx context.Context,
	params graphengine.AddEpisodeParams,
) (*graphengine.AddEpisodeResult, error) {
	m.mu.Lock()
	m.AddEpisodeCalls = append(m.AddEpisodeCalls, params)
	m.mu.Unlock()

	if m.AddEpisodeFn != nil {
		return m.AddEpisodeFn(ctx, params)
	}
	return &graphengine.AddEpisodeResult{
		Episode: graphengine.Node{UUID: params.UUID, GroupID: params.GroupID},
	}, nil
}

func (m *mockEngine) UpdateCommunity(ctx context.Context, node graphengine.Node) error {
	m.mu.Lock()
	m.UpdatedNodes = append(m.UpdatedNodes, node.UUID)
	m.mu.Unlock()

	if m.UpdateCommunityFn != nil {
		return m.UpdateCommunityFn(ctx, node)
	}
	return nil
}

func (m *mockEngine) ExecuteQuery(
	ctx context.Context,
	query string,
	params map[string]any,
) ([]map[string]any, error) {
	m.mu.Lock()
	m.ExecutedQueries = append(m.ExecutedQueries, query)
	m.ExecutedQueryParams = append(m.ExecutedQueryParams, params)
	m.mu.Unlock()

	if m.ExecuteQueryFn != nil {
		return m.ExecuteQueryFn(ctx, query, params)
	}
	return nil, nil
}

func (m *mockEngine) MaxConcurrency() int {
	return m.Concurrency
}

func (m *mockEngine) updatedNodes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.UpdatedNodes...)
}

func (m *mockEngine) executedQueries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ExecutedQueries...)
}

// mockEpisodeStore implements store.EpisodeStore, recording status
// transitions per record.
type mockEpisodeStore struct {
	mu sync.Mutex

	UpdateStatusFn func(ctx context.Context, id uuid.UUID, status domain.EpisodeStatus) error

	Episodes    map[uuid.UUID]*domain.Episode
	Transitions map[uuid.UUID][]domain.EpisodeStatus
}

func newMockEpisodeStore() *mockEpisodeStore {
	return &mockEpisodeStore{
		Episodes:    make(map[uuid.UUID]*domain.Episode),
		Transitions: make(map[uuid.UUID][]domain.EpisodeStatus),
	}
}

func (m *mockEpisodeStore) Create(ctx context.Context, episode *domain.Episode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Episodes[episode.ID] = episode
	return nil
}

func (m *mockEpisodeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	episode, ok := m.Episodes[id]
	if !ok {
		return nil, store.ErrEpisodeNotFound
	}
	return episode, nil
}

func (m *mockEpisodeStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.EpisodeStatus,
) error {
	if m.UpdateStatusFn != nil {
		if err := m.UpdateStatusFn(ctx, id, status); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transitions[id] = append(m.Transitions[id], status)
	return nil
}

func (m *mockEpisodeStore) WithTx(tx *sql.Tx) store.EpisodeStore {
	return m
}

func (m *mockEpisodeStore) transitions(id uuid.UUID) []domain.EpisodeStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.EpisodeStatus(nil), m.Transitions[id]...)
}

// mockSchemaStore implements store.SchemaStore.
type mockSchemaStore struct {
	mu sync.Mutex

	GetByProjectFn func(ctx context.Context, projectID string) (*domain.GraphSchema, error)
	SyncFn         func(ctx context.Context, projectID string, entityTypes []domain.EntityTypeDef, edgeTypes []domain.EdgeTypeDef) error

	SyncCalls int
}

func (m *mockSchemaStore) GetByProject(
	ctx context.Context,
	projectID string,
) (*domain.GraphSchema, error) {
	if m.GetByProjectFn != nil {
		return m.GetByProjectFn(ctx, projectID)
	}
	return nil, store.ErrSchemaNotFound
}

func (m *mockSchemaStore) Sync(
	ctx context.Context,
	projectID string,
	entityTypes []domain.EntityTypeDef,
	edgeTypes []domain.EdgeTypeDef,
) error {
	m.mu.Lock()
	m.SyncCalls++
	m.mu.Unlock()

	if m.SyncFn != nil {
		return m.SyncFn(ctx, projectID, entityTypes, edgeTypes)
	}
	return nil
}

func (m *mockSchemaStore) syncCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SyncCalls
}
