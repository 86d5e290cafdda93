package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lorecraft/graphd/internal/domain"
)

// EpisodeStore defines the persistence interface for episode records.
// The ingestion pipeline is the only writer of episode status; everything
// else reads.
type EpisodeStore interface {
	// Create saves a new episode in the pending state.
	// Returns ErrDuplicate if an episode with the same ID already exists.
	Create(ctx context.Context, episode *domain.Episode) error

	// GetByID retrieves an episode by its unique ID.
	// Returns ErrEpisodeNotFound if the episode does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Episode, error)

	// UpdateStatus advances the status of an episode record.
	// Unknown IDs are treated as a no-op so a deleted record cannot fail an
	// in-flight ingestion.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EpisodeStatus) error

	// WithTx returns a new EpisodeStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) EpisodeStore
}
