package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lorecraft/graphd/internal/domain"
	"github.com/lorecraft/graphd/internal/platform/logger"
	"github.com/lorecraft/graphd/internal/store"
)

// PostgresEpisodeStore implements the store.EpisodeStore interface
// using a PostgreSQL database as the storage backend.
type PostgresEpisodeStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresEpisodeStore creates a new PostgreSQL implementation of the
// EpisodeStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresEpisodeStore(db store.DBTX, logger *slog.Logger) *PostgresEpisodeStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresEpisodeStore{
		db:     db,
		logger: logger.With(slog.String("component", "episode_store")),
	}
}

// Ensure PostgresEpisodeStore implements store.EpisodeStore interface
var _ store.EpisodeStore = (*PostgresEpisodeStore)(nil)

// Create implements store.EpisodeStore.Create
// It saves a new episode record, handling domain validation.
// Returns store.ErrDuplicate if an episode with the same ID already exists.
func (s *PostgresEpisodeStore) Create(ctx context.Context, episode *domain.Episode) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := episode.Validate(); err != nil {
		log.Warn("episode validation failed during create",
			slog.String("error", err.Error()),
			slog.String("episode_id", episode.ID.String()))
		return err
	}

	query := `
		INSERT INTO episodes (id, group_id, name, content, source_description,
			source, org_id, project_id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		episode.ID,
		episode.GroupID,
		episode.Name,
		episode.Content,
		episode.SourceDescription,
		episode.Source,
		episode.OrgID,
		episode.ProjectID,
		episode.UserID,
		episode.Status,
		episode.CreatedAt,
		episode.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("duplicate episode ID during create",
				slog.String("episode_id", episode.ID.String()))
			return store.ErrDuplicate
		}

		log.Error("failed to create episode",
			slog.String("error", err.Error()),
			slog.String("episode_id", episode.ID.String()),
			slog.String("group_id", episode.GroupID))
		return err
	}

	log.Info("episode created successfully",
		slog.String("episode_id", episode.ID.String()),
		slog.String("group_id", episode.GroupID),
		slog.String("status", string(episode.Status)))
	return nil
}

// GetByID implements store.EpisodeStore.GetByID
// Returns store.ErrEpisodeNotFound if the episode does not exist.
func (s *PostgresEpisodeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Episode, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, group_id, name, content, source_description, source,
			org_id, project_id, user_id, status, created_at, updated_at
		FROM episodes
		WHERE id = $1
	`

	var episode domain.Episode
	var source, status string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&episode.ID,
		&episode.GroupID,
		&episode.Name,
		&episode.Content,
		&episode.SourceDescription,
		&source,
		&episode.OrgID,
		&episode.ProjectID,
		&episode.UserID,
		&status,
		&episode.CreatedAt,
		&episode.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("episode not found", slog.String("episode_id", id.String()))
			return nil, store.ErrEpisodeNotFound
		}
		log.Error("failed to get episode by ID",
			slog.String("error", err.Error()),
			slog.String("episode_id", id.String()))
		return nil, err
	}

	episode.Source = domain.EpisodeSource(source)
	episode.Status = domain.EpisodeStatus(status)

	return &episode, nil
}

// UpdateStatus implements store.EpisodeStore.UpdateStatus
// The current record is read first and the change validated against the
// episode lifecycle; transitions the lifecycle forbids are rejected with
// domain.ErrInvalidStatusTransition before anything is written.
// Unknown IDs are a no-op: a record deleted mid-flight must not fail the
// ingestion that references it.
func (s *PostgresEpisodeStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.EpisodeStatus,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	episode, err := s.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrEpisodeNotFound) {
			log.Warn("episode not found for status update, skipping",
				slog.String("episode_id", id.String()),
				slog.String("status", string(status)))
			return nil
		}
		return err
	}

	previous := episode.Status
	if err := episode.UpdateStatus(status); err != nil {
		log.Warn("rejected episode status transition",
			slog.String("episode_id", id.String()),
			slog.String("from", string(previous)),
			slog.String("to", string(status)))
		return fmt.Errorf("episode %s: %s to %s: %w", id, previous, status, err)
	}

	// The status guard refuses a stale write when the row was deleted or
	// advanced by a concurrent writer between the read and the update.
	query := `
		UPDATE episodes
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query, episode.Status, episode.UpdatedAt, id, previous)
	if err != nil {
		log.Error("failed to update episode status",
			slog.String("error", err.Error()),
			slog.String("episode_id", id.String()),
			slog.String("status", string(status)))
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("episode_id", id.String()))
		return err
	}

	if rowsAffected == 0 {
		log.Warn("episode changed concurrently, skipping status update",
			slog.String("episode_id", id.String()),
			slog.String("from", string(previous)),
			slog.String("to", string(status)))
		return nil
	}

	log.Info("episode status updated",
		slog.String("episode_id", id.String()),
		slog.String("from", string(previous)),
		slog.String("to", string(status)))
	return nil
}

// WithTx implements store.EpisodeStore.WithTx
// It returns a new store instance backed by the given transaction.
func (s *PostgresEpisodeStore) WithTx(tx *sql.Tx) store.EpisodeStore {
	return &PostgresEpisodeStore{
		db:     tx,
		logger: s.logger,
	}
}
