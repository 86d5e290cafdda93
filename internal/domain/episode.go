package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EpisodeStatus represents the processing state of an episode
type EpisodeStatus string

// Possible episode status values
const (
	EpisodeStatusPending    EpisodeStatus = "pending"
	EpisodeStatusProcessing EpisodeStatus = "processing"
	EpisodeStatusCompleted  EpisodeStatus = "completed"
	EpisodeStatusFailed     EpisodeStatus = "failed"
)

// EpisodeSource is the coarse content-kind tag attached to an episode.
type EpisodeSource string

// Recognized episode sources
const (
	EpisodeSourceText    EpisodeSource = "text"
	EpisodeSourceMessage EpisodeSource = "message"
	EpisodeSourceJSON    EpisodeSource = "json"
)

// Common validation errors for Episode
var (
	ErrEmptyEpisodeID      = errors.New("episode ID cannot be empty")
	ErrEmptyEpisodeGroupID = errors.New("episode group ID cannot be empty")
	ErrEmptyEpisodeContent = errors.New("episode content cannot be empty")
	ErrInvalidSource       = errors.New("invalid episode source")
)

// Episode represents one unit of raw content submitted for ingestion into the
// knowledge graph. It tracks both the original content and the processing
// state, which only the ingestion pipeline may advance.
type Episode struct {
	ID                uuid.UUID     `json:"id"`
	GroupID           string        `json:"group_id"`
	Name              string        `json:"name"`
	Content           string        `json:"content"`
	SourceDescription string        `json:"source_description"`
	Source            EpisodeSource `json:"source"`
	OrgID             string        `json:"org_id,omitempty"`
	ProjectID         string        `json:"project_id,omitempty"`
	UserID            string        `json:"user_id,omitempty"`
	Status            EpisodeStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// NewEpisode creates a new Episode in the pending state with a generated ID
// and creation/update timestamps. Returns an error if validation fails.
func NewEpisode(
	groupID, name, content, sourceDescription string,
	source EpisodeSource,
) (*Episode, error) {
	if source == "" {
		source = EpisodeSourceText
	}

	episode := &Episode{
		ID:                uuid.New(),
		GroupID:           groupID,
		Name:              name,
		Content:           content,
		SourceDescription: sourceDescription,
		Source:            source,
		Status:            EpisodeStatusPending,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}

	if err := episode.Validate(); err != nil {
		return nil, err
	}

	return episode, nil
}

// Validate checks if the Episode has valid data.
// Returns an error if any field fails validation.
func (e *Episode) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyEpisodeID
	}

	if e.GroupID == "" {
		return ErrEmptyEpisodeGroupID
	}

	if e.Content == "" {
		return ErrEmptyEpisodeContent
	}

	if !isValidEpisodeSource(e.Source) {
		return ErrInvalidSource
	}

	if !isValidEpisodeStatus(e.Status) {
		return ErrInvalidEpisodeStatus
	}

	return nil
}

// UpdateStatus advances the episode's status and refreshes the UpdatedAt
// timestamp. Only forward transitions of the lifecycle are allowed
// (pending→processing, processing→completed, processing→failed), plus
// failed→pending when a failed episode is resubmitted.
func (e *Episode) UpdateStatus(status EpisodeStatus) error {
	if !isValidEpisodeStatus(status) {
		return ErrInvalidEpisodeStatus
	}

	if !isValidStatusTransition(e.Status, status) {
		return ErrInvalidStatusTransition
	}

	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func isValidEpisodeStatus(status EpisodeStatus) bool {
	switch status {
	case EpisodeStatusPending, EpisodeStatusProcessing,
		EpisodeStatusCompleted, EpisodeStatusFailed:
		return true
	default:
		return false
	}
}

func isValidEpisodeSource(source EpisodeSource) bool {
	switch source {
	case EpisodeSourceText, EpisodeSourceMessage, EpisodeSourceJSON:
		return true
	default:
		return false
	}
}

func isValidStatusTransition(from, to EpisodeStatus) bool {
	switch from {
	case EpisodeStatusPending:
		return to == EpisodeStatusProcessing
	case EpisodeStatusProcessing:
		return to == EpisodeStatusCompleted || to == EpisodeStatusFailed
	case EpisodeStatusFailed:
		return to == EpisodeStatusPending
	default:
		return false
	}
}
