//go:build integration

package service_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorecraft/graphd/internal/domain"
	"github.com/lorecraft/graphd/internal/events"
	"github.com/lorecraft/graphd/internal/platform/postgres"
	"github.com/lorecraft/graphd/internal/service"
	"github.com/lorecraft/graphd/internal/task"
	"github.com/lorecraft/graphd/internal/testdb"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// capturingEmitter records every emitted event.
type capturingEmitter struct {
	mu      sync.Mutex
	emitted []*events.IngestRequestEvent
}

func (e *capturingEmitter) EmitEvent(ctx context.Context, event *events.IngestRequestEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitted = append(e.emitted, event)
	return nil
}

func (e *capturingEmitter) events() []*events.IngestRequestEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*events.IngestRequestEvent(nil), e.emitted...)
}

// failingAfterCreateRepo simulates a transaction aborted after a successful
// insert, to verify the insert is rolled back and nothing is emitted.
type failingAfterCreateRepo struct {
	service.EpisodeRepository
}

func (r *failingAfterCreateRepo) Create(ctx context.Context, episode *domain.Episode) error {
	if err := r.EpisodeRepository.Create(ctx, episode); err != nil {
		return err
	}
	return errors.New("simulated failure after create")
}

func (r *failingAfterCreateRepo) WithTx(tx *sql.Tx) service.EpisodeRepository {
	return &failingAfterCreateRepo{EpisodeRepository: r.EpisodeRepository.WithTx(tx)}
}

// cleanupGroup removes every episode row the test created. The service
// commits real transactions, so the usual rollback isolation does not apply.
func cleanupGroup(t *testing.T, db *sql.DB, groupID string) {
	t.Helper()
	t.Cleanup(func() {
		_, err := db.Exec("DELETE FROM episodes WHERE group_id = $1", groupID)
		if err != nil {
			t.Logf("failed to clean up episodes for group %s: %v", groupID, err)
		}
	})
}

func countEpisodes(t *testing.T, db *sql.DB, groupID string) int {
	t.Helper()
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM episodes WHERE group_id = $1", groupID,
	).Scan(&count)
	require.NoError(t, err)
	return count
}

func TestEpisodeService_CreateEpisodeAndEnqueue_Integration(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	episodeStore := postgres.NewPostgresEpisodeStore(db, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	t.Run("commits the record and emits the ingest request", func(t *testing.T) {
		groupID := fmt.Sprintf("create-int-%s", uuid.NewString())
		cleanupGroup(t, db, groupID)

		emitter := &capturingEmitter{}
		repo := service.NewEpisodeRepositoryAdapter(episodeStore, db)
		svc, err := service.NewEpisodeService(repo, emitter, discardLogger())
		require.NoError(t, err)

		episode, err := svc.CreateEpisodeAndEnqueue(ctx, service.CreateEpisodeParams{
			GroupID:           groupID,
			Name:              "meeting notes",
			Content:           "Alice told Bob about the launch.",
			SourceDescription: "integration test",
			Source:            domain.EpisodeSourceText,
			OrgID:             "org-1",
			ProjectID:         "proj-1",
			UserID:            "user-1",
		})
		require.NoError(t, err)
		require.NotNil(t, episode)
		assert.Equal(t, domain.EpisodeStatusPending, episode.Status)

		got, err := episodeStore.GetByID(ctx, episode.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.EpisodeStatusPending, got.Status)
		assert.Equal(t, "org-1", got.OrgID)
		assert.Equal(t, "proj-1", got.ProjectID)

		emitted := emitter.events()
		require.Len(t, emitted, 1)
		assert.Equal(t, task.KindAddEpisode, emitted[0].Type)
		assert.Equal(t, groupID, emitted[0].GroupID)

		var payload task.EpisodeIngestionPayload
		require.NoError(t, emitted[0].UnmarshalPayload(&payload))
		assert.Equal(t, episode.ID.String(), payload.RecordID)
		assert.Equal(t, episode.ID.String(), payload.EpisodeUUID)
		assert.Equal(t, "Alice told Bob about the launch.", payload.Content)
	})

	t.Run("rolls back the record and emits nothing on failure", func(t *testing.T) {
		groupID := fmt.Sprintf("rollback-int-%s", uuid.NewString())
		cleanupGroup(t, db, groupID)

		emitter := &capturingEmitter{}
		repo := &failingAfterCreateRepo{
			EpisodeRepository: service.NewEpisodeRepositoryAdapter(episodeStore, db),
		}
		svc, err := service.NewEpisodeService(repo, emitter, discardLogger())
		require.NoError(t, err)

		episode, err := svc.CreateEpisodeAndEnqueue(ctx, service.CreateEpisodeParams{
			GroupID: groupID,
			Content: "doomed content",
		})
		require.Error(t, err)
		assert.Nil(t, episode)

		assert.Equal(t, 0, countEpisodes(t, db, groupID),
			"insert must be rolled back with the failed transaction")
		assert.Empty(t, emitter.events())
	})
}

func TestEpisodeService_RetryEpisode_Integration(t *testing.T) {
	db := testdb.GetTestDBWithT(t)
	episodeStore := postgres.NewPostgresEpisodeStore(db, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	groupID := fmt.Sprintf("retry-int-%s", uuid.NewString())
	cleanupGroup(t, db, groupID)

	emitter := &capturingEmitter{}
	repo := service.NewEpisodeRepositoryAdapter(episodeStore, db)
	svc, err := service.NewEpisodeService(repo, emitter, discardLogger())
	require.NoError(t, err)

	episode, err := svc.CreateEpisodeAndEnqueue(ctx, service.CreateEpisodeParams{
		GroupID: groupID,
		Content: "content that will fail ingestion",
		OrgID:   "org-1",
	})
	require.NoError(t, err)

	// Walk the record to failed the way the pipeline would.
	require.NoError(t, episodeStore.UpdateStatus(ctx, episode.ID, domain.EpisodeStatusProcessing))
	require.NoError(t, episodeStore.UpdateStatus(ctx, episode.ID, domain.EpisodeStatusFailed))

	retried, err := svc.RetryEpisode(ctx, episode.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EpisodeStatusPending, retried.Status)

	got, err := episodeStore.GetByID(ctx, episode.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EpisodeStatusPending, got.Status)

	// One event from creation, a second from the retry, both rebuilt from
	// the stored record.
	emitted := emitter.events()
	require.Len(t, emitted, 2)
	assert.Equal(t, groupID, emitted[1].GroupID)

	var payload task.EpisodeIngestionPayload
	require.NoError(t, emitted[1].UnmarshalPayload(&payload))
	assert.Equal(t, episode.ID.String(), payload.RecordID)
	assert.Equal(t, "content that will fail ingestion", payload.Content)
	assert.Equal(t, "org-1", payload.OrgID)

	// A pending record is not retryable again.
	_, err = svc.RetryEpisode(ctx, episode.ID)
	assert.ErrorIs(t, err, service.ErrEpisodeNotRetryable)
	assert.Len(t, emitter.events(), 2)
}
