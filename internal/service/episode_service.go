package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lorecraft/graphd/internal/domain"
	"github.com/lorecraft/graphd/internal/events"
	"github.com/lorecraft/graphd/internal/store"
	"github.com/lorecraft/graphd/internal/task"
)

// EpisodeRepository defines the repository interface for the service layer.
// It is aligned with store.EpisodeStore, plus access to the underlying
// database handle for transaction control.
type EpisodeRepository interface {
	// Create saves a new episode record to the store
	Create(ctx context.Context, episode *domain.Episode) error

	// GetByID retrieves an episode record by its unique ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Episode, error)

	// UpdateStatus advances the status of an episode record
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EpisodeStatus) error

	// WithTx returns a repository instance bound to the given transaction
	WithTx(tx *sql.Tx) EpisodeRepository

	// DB returns the underlying database connection
	DB() *sql.DB
}

// EpisodeService provides episode-related operations
type EpisodeService interface {
	// CreateEpisodeAndEnqueue creates a pending episode record and emits an
	// ingestion request event for asynchronous processing.
	CreateEpisodeAndEnqueue(
		ctx context.Context,
		params CreateEpisodeParams,
	) (*domain.Episode, error)

	// GetEpisode retrieves an episode record by its ID
	GetEpisode(ctx context.Context, episodeID uuid.UUID) (*domain.Episode, error)

	// RetryEpisode re-enqueues a failed episode for another ingestion attempt
	RetryEpisode(ctx context.Context, episodeID uuid.UUID) (*domain.Episode, error)
}

// CreateEpisodeParams carries the caller-supplied fields of a new episode.
type CreateEpisodeParams struct {
	GroupID           string
	Name              string
	Content           string
	SourceDescription string
	Source            domain.EpisodeSource
	OrgID             string
	ProjectID         string
	UserID            string
}

// Common sentinel errors for EpisodeService
var (
	// ErrEpisodeNotFound indicates that the episode record does not exist
	ErrEpisodeNotFound = errors.New("episode not found")

	// ErrEpisodeNotRetryable indicates a retry was requested for an episode
	// that is not in the failed state
	ErrEpisodeNotRetryable = errors.New("episode is not in a retryable state")
)

// EpisodeServiceError wraps errors from the episode service with context.
type EpisodeServiceError struct {
	// Operation is the operation that failed (e.g., "create_episode")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for EpisodeServiceError.
func (e *EpisodeServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("episode service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("episode service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *EpisodeServiceError) Unwrap() error {
	return e.Err
}

// NewEpisodeServiceError creates a new EpisodeServiceError.
// It returns known sentinel errors directly without wrapping.
func NewEpisodeServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrEpisodeNotFound) || errors.Is(err, ErrEpisodeNotRetryable) {
		return err
	}

	if errors.Is(err, store.ErrEpisodeNotFound) {
		return ErrEpisodeNotFound
	}

	return &EpisodeServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// episodeServiceImpl implements the EpisodeService interface
type episodeServiceImpl struct {
	episodeRepo  EpisodeRepository
	eventEmitter events.EventEmitter
	logger       *slog.Logger
}

// NewEpisodeService creates a new EpisodeService.
// It returns an error if any of the required dependencies are nil.
func NewEpisodeService(
	episodeRepo EpisodeRepository,
	eventEmitter events.EventEmitter,
	logger *slog.Logger,
) (EpisodeService, error) {
	if episodeRepo == nil {
		return nil, &EpisodeServiceError{
			Operation: "create_service",
			Message:   "episodeRepo cannot be nil",
		}
	}
	if eventEmitter == nil {
		return nil, &EpisodeServiceError{
			Operation: "create_service",
			Message:   "eventEmitter cannot be nil",
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &episodeServiceImpl{
		episodeRepo:  episodeRepo,
		eventEmitter: eventEmitter,
		logger:       logger.With("component", "episode_service"),
	}, nil
}

// CreateEpisodeAndEnqueue creates a pending episode record inside a
// transaction, then emits an ingestion request event. The HTTP caller gets
// the pending record back immediately; processing happens on the group's
// queue worker.
func (s *episodeServiceImpl) CreateEpisodeAndEnqueue(
	ctx context.Context,
	params CreateEpisodeParams,
) (*domain.Episode, error) {
	episode, err := domain.NewEpisode(
		params.GroupID,
		params.Name,
		params.Content,
		params.SourceDescription,
		params.Source,
	)
	if err != nil {
		s.logger.Error("failed to create episode object",
			"error", err,
			"group_id", params.GroupID)
		return nil, NewEpisodeServiceError("create_episode", "failed to create episode object", err)
	}
	episode.OrgID = params.OrgID
	episode.ProjectID = params.ProjectID
	episode.UserID = params.UserID

	err = store.RunInTransaction(
		ctx,
		s.episodeRepo.DB(),
		func(ctx context.Context, tx *sql.Tx) error {
			txRepo := s.episodeRepo.WithTx(tx)
			if err := txRepo.Create(ctx, episode); err != nil {
				s.logger.Error("failed to create episode in transaction",
					"error", err,
					"group_id", params.GroupID,
					"episode_id", episode.ID)
				return NewEpisodeServiceError(
					"create_episode",
					"failed to save episode to database",
					err,
				)
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	s.logger.Info("episode created with pending status",
		"episode_id", episode.ID,
		"group_id", episode.GroupID)

	if err := s.emitIngestRequest(ctx, episode); err != nil {
		return nil, err
	}

	return episode, nil
}

// GetEpisode retrieves an episode record by its ID
func (s *episodeServiceImpl) GetEpisode(
	ctx context.Context,
	episodeID uuid.UUID,
) (*domain.Episode, error) {
	episode, err := s.episodeRepo.GetByID(ctx, episodeID)
	if err != nil {
		if errors.Is(err, store.ErrEpisodeNotFound) {
			return nil, ErrEpisodeNotFound
		}
		s.logger.Error("failed to retrieve episode",
			"error", err,
			"episode_id", episodeID)
		return nil, NewEpisodeServiceError("get_episode", "failed to retrieve episode", err)
	}

	return episode, nil
}

// RetryEpisode resets a failed episode to pending and re-emits its ingestion
// request. Only records in the failed state are retryable.
func (s *episodeServiceImpl) RetryEpisode(
	ctx context.Context,
	episodeID uuid.UUID,
) (*domain.Episode, error) {
	episode, err := s.episodeRepo.GetByID(ctx, episodeID)
	if err != nil {
		if errors.Is(err, store.ErrEpisodeNotFound) {
			return nil, ErrEpisodeNotFound
		}
		return nil, NewEpisodeServiceError("retry_episode", "failed to retrieve episode", err)
	}

	if episode.Status != domain.EpisodeStatusFailed {
		s.logger.Warn("retry requested for non-failed episode",
			"episode_id", episodeID,
			"status", episode.Status)
		return nil, ErrEpisodeNotRetryable
	}

	err = store.RunInTransaction(
		ctx,
		s.episodeRepo.DB(),
		func(ctx context.Context, tx *sql.Tx) error {
			txRepo := s.episodeRepo.WithTx(tx)
			if err := txRepo.UpdateStatus(ctx, episodeID, domain.EpisodeStatusPending); err != nil {
				return NewEpisodeServiceError(
					"retry_episode",
					"failed to reset episode status",
					err,
				)
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	episode.Status = domain.EpisodeStatusPending

	s.logger.Info("episode reset to pending for retry",
		"episode_id", episodeID,
		"group_id", episode.GroupID)

	if err := s.emitIngestRequest(ctx, episode); err != nil {
		return nil, err
	}

	return episode, nil
}

// emitIngestRequest builds the ingestion payload from an episode record and
// emits it as an ingest request event.
func (s *episodeServiceImpl) emitIngestRequest(
	ctx context.Context,
	episode *domain.Episode,
) error {
	payload := task.EpisodeIngestionPayload{
		EpisodeUUID:       episode.ID.String(),
		RecordID:          episode.ID.String(),
		GroupID:           episode.GroupID,
		Name:              episode.Name,
		Content:           episode.Content,
		SourceDescription: episode.SourceDescription,
		Source:            string(episode.Source),
		OrgID:             episode.OrgID,
		ProjectID:         episode.ProjectID,
		UserID:            episode.UserID,
	}

	event, err := events.NewIngestRequestEvent(task.KindAddEpisode, episode.GroupID, payload)
	if err != nil {
		s.logger.Error("failed to create ingest request event",
			"error", err,
			"episode_id", episode.ID)
		return NewEpisodeServiceError("emit_event", "failed to create event", err)
	}

	if err := s.eventEmitter.EmitEvent(ctx, event); err != nil {
		s.logger.Error("failed to emit ingest request event",
			"error", err,
			"episode_id", episode.ID,
			"event_id", event.ID)
		return NewEpisodeServiceError("emit_event", "failed to emit event", err)
	}

	s.logger.Info("ingest request event emitted",
		"episode_id", episode.ID,
		"group_id", episode.GroupID,
		"event_id", event.ID)
	return nil
}
