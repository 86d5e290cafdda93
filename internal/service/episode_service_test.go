package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorecraft/graphd/internal/domain"
	"github.com/lorecraft/graphd/internal/events"
	"github.com/lorecraft/graphd/internal/store"
	"github.com/lorecraft/graphd/internal/task"
)

// mockEpisodeRepository is a hand-rolled mock of EpisodeRepository.
type mockEpisodeRepository struct {
	getByIDEpisode    *domain.Episode
	getByIDError      error
	createError       error
	updateStatusError error
	dbReturn          *sql.DB

	createCalled       bool
	updateStatusCalled bool
}

func (m *mockEpisodeRepository) Create(ctx context.Context, episode *domain.Episode) error {
	m.createCalled = true
	return m.createError
}

func (m *mockEpisodeRepository) GetByID(
	ctx context.Context,
	id uuid.UUID,
) (*domain.Episode, error) {
	if m.getByIDError != nil {
		return nil, m.getByIDError
	}
	return m.getByIDEpisode, nil
}

func (m *mockEpisodeRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.EpisodeStatus,
) error {
	m.updateStatusCalled = true
	return m.updateStatusError
}

func (m *mockEpisodeRepository) WithTx(tx *sql.Tx) EpisodeRepository {
	return m
}

func (m *mockEpisodeRepository) DB() *sql.DB {
	return m.dbReturn
}

// mockEventEmitter captures emitted events.
type mockEventEmitter struct {
	emitted   []*events.IngestRequestEvent
	emitError error
}

func (m *mockEventEmitter) EmitEvent(
	ctx context.Context,
	event *events.IngestRequestEvent,
) error {
	if m.emitError != nil {
		return m.emitError
	}
	m.emitted = append(m.emitted, event)
	return nil
}

func TestNewEpisodeService_NilDependencies(t *testing.T) {
	_, err := NewEpisodeService(nil, &mockEventEmitter{}, nil)
	assert.Error(t, err)

	_, err = NewEpisodeService(&mockEpisodeRepository{}, nil, nil)
	assert.Error(t, err)

	svc, err := NewEpisodeService(&mockEpisodeRepository{}, &mockEventEmitter{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestEpisodeService_CreateEpisodeAndEnqueue_ValidationFailure(t *testing.T) {
	repo := &mockEpisodeRepository{}
	svc, err := NewEpisodeService(repo, &mockEventEmitter{}, nil)
	require.NoError(t, err)

	_, err = svc.CreateEpisodeAndEnqueue(context.Background(), CreateEpisodeParams{
		GroupID: "group-1",
		// Content missing
	})
	require.Error(t, err)
	assert.False(t, repo.createCalled, "repository should not be touched on validation failure")

	var svcErr *EpisodeServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "create_episode", svcErr.Operation)
	assert.ErrorIs(t, err, domain.ErrEmptyEpisodeContent)
}

func TestEpisodeService_GetEpisode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		want := &domain.Episode{
			ID:      uuid.New(),
			GroupID: "group-1",
			Content: "text",
			Status:  domain.EpisodeStatusCompleted,
		}
		svc, err := NewEpisodeService(
			&mockEpisodeRepository{getByIDEpisode: want},
			&mockEventEmitter{},
			nil,
		)
		require.NoError(t, err)

		got, err := svc.GetEpisode(context.Background(), want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("not found maps to service sentinel", func(t *testing.T) {
		svc, err := NewEpisodeService(
			&mockEpisodeRepository{getByIDError: store.ErrEpisodeNotFound},
			&mockEventEmitter{},
			nil,
		)
		require.NoError(t, err)

		_, err = svc.GetEpisode(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrEpisodeNotFound)
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		dbErr := errors.New("connection reset")
		svc, err := NewEpisodeService(
			&mockEpisodeRepository{getByIDError: dbErr},
			&mockEventEmitter{},
			nil,
		)
		require.NoError(t, err)

		_, err = svc.GetEpisode(context.Background(), uuid.New())
		require.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestEpisodeService_RetryEpisode(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		svc, err := NewEpisodeService(
			&mockEpisodeRepository{getByIDError: store.ErrEpisodeNotFound},
			&mockEventEmitter{},
			nil,
		)
		require.NoError(t, err)

		_, err = svc.RetryEpisode(context.Background(), uuid.New())
		assert.ErrorIs(t, err, ErrEpisodeNotFound)
	})

	t.Run("non-failed episode is not retryable", func(t *testing.T) {
		for _, status := range []domain.EpisodeStatus{
			domain.EpisodeStatusPending,
			domain.EpisodeStatusProcessing,
			domain.EpisodeStatusCompleted,
		} {
			repo := &mockEpisodeRepository{
				getByIDEpisode: &domain.Episode{
					ID:      uuid.New(),
					GroupID: "group-1",
					Content: "text",
					Status:  status,
				},
			}
			emitter := &mockEventEmitter{}
			svc, err := NewEpisodeService(repo, emitter, nil)
			require.NoError(t, err)

			_, err = svc.RetryEpisode(context.Background(), repo.getByIDEpisode.ID)
			assert.ErrorIs(t, err, ErrEpisodeNotRetryable, "status %s", status)
			assert.False(t, repo.updateStatusCalled)
			assert.Empty(t, emitter.emitted)
		}
	})
}

func TestNewEpisodeServiceError_SentinelPassthrough(t *testing.T) {
	assert.Nil(t, NewEpisodeServiceError("op", "msg", nil))

	err := NewEpisodeServiceError("op", "msg", ErrEpisodeNotFound)
	assert.Equal(t, ErrEpisodeNotFound, err)

	err = NewEpisodeServiceError("op", "msg", store.ErrEpisodeNotFound)
	assert.Equal(t, ErrEpisodeNotFound, err)

	inner := errors.New("boom")
	err = NewEpisodeServiceError("op", "msg", inner)
	var svcErr *EpisodeServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "op")
}

// The emitted event must carry the full ingestion payload, so the task can
// run without reading the record back.
func TestEpisodeService_EmitIngestRequestPayload(t *testing.T) {
	episode := &domain.Episode{
		ID:                uuid.New(),
		GroupID:           "group-1",
		Name:              "notes",
		Content:           "Alice met Bob.",
		SourceDescription: "meeting",
		Source:            domain.EpisodeSourceText,
		OrgID:             "org-1",
		ProjectID:         "proj-1",
		UserID:            "user-1",
		Status:            domain.EpisodeStatusPending,
	}

	emitter := &mockEventEmitter{}
	svcIface, err := NewEpisodeService(&mockEpisodeRepository{}, emitter, nil)
	require.NoError(t, err)
	svc := svcIface.(*episodeServiceImpl)

	require.NoError(t, svc.emitIngestRequest(context.Background(), episode))
	require.Len(t, emitter.emitted, 1)

	event := emitter.emitted[0]
	assert.Equal(t, task.KindAddEpisode, event.Type)
	assert.Equal(t, "group-1", event.GroupID)

	var payload task.EpisodeIngestionPayload
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.Equal(t, episode.ID.String(), payload.EpisodeUUID)
	assert.Equal(t, episode.ID.String(), payload.RecordID)
	assert.Equal(t, "Alice met Bob.", payload.Content)
	assert.Equal(t, "org-1", payload.OrgID)
	assert.Equal(t, "proj-1", payload.ProjectID)
	assert.Equal(t, "user-1", payload.UserID)
}
