package service

import (
	"database/sql"

	"github.com/lorecraft/graphd/internal/store"
)

// EpisodeRepositoryAdapter adapts a store.EpisodeStore to EpisodeRepository,
// carrying the database handle the service needs for transaction control.
type EpisodeRepositoryAdapter struct {
	store.EpisodeStore
	db *sql.DB
}

// NewEpisodeRepositoryAdapter creates an adapter implementing
// EpisodeRepository by delegating to a store.EpisodeStore implementation.
func NewEpisodeRepositoryAdapter(
	episodeStore store.EpisodeStore,
	db *sql.DB,
) *EpisodeRepositoryAdapter {
	return &EpisodeRepositoryAdapter{
		EpisodeStore: episodeStore,
		db:           db,
	}
}

// WithTx returns a repository instance bound to the given transaction.
func (a *EpisodeRepositoryAdapter) WithTx(tx *sql.Tx) EpisodeRepository {
	return &EpisodeRepositoryAdapter{
		EpisodeStore: a.EpisodeStore.WithTx(tx),
		db:           a.db,
	}
}

// DB returns the underlying database connection.
func (a *EpisodeRepositoryAdapter) DB() *sql.DB {
	return a.db
}

// Ensure EpisodeRepositoryAdapter implements EpisodeRepository
var _ EpisodeRepository = (*EpisodeRepositoryAdapter)(nil)
