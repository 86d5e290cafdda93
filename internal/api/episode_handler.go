package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lorecraft/graphd/internal/api/shared"
	"github.com/lorecraft/graphd/internal/domain"
	"github.com/lorecraft/graphd/internal/service"
)

// CreateEpisodeRequest represents the request body for submitting an episode
type CreateEpisodeRequest struct {
	GroupID           string `json:"group_id" validate:"required,min=1"`
	Name              string `json:"name"`
	Content           string `json:"content" validate:"required,min=1"`
	SourceDescription string `json:"source_description"`
	Source            string `json:"source" validate:"omitempty,oneof=text message json"`
	OrgID             string `json:"org_id"`
	ProjectID         string `json:"project_id"`
	UserID            string `json:"user_id"`
}

// EpisodeResponse represents the response data for an episode record
type EpisodeResponse struct {
	ID                string    `json:"id"`
	GroupID           string    `json:"group_id"`
	Name              string    `json:"name"`
	Content           string    `json:"content"`
	SourceDescription string    `json:"source_description"`
	Source            string    `json:"source"`
	OrgID             string    `json:"org_id,omitempty"`
	ProjectID         string    `json:"project_id,omitempty"`
	UserID            string    `json:"user_id,omitempty"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// EpisodeHandler handles episode-related HTTP requests
type EpisodeHandler struct {
	episodeService service.EpisodeService
	validator      *validator.Validate
}

// NewEpisodeHandler creates a new EpisodeHandler
func NewEpisodeHandler(episodeService service.EpisodeService) *EpisodeHandler {
	return &EpisodeHandler{
		episodeService: episodeService,
		validator:      validator.New(),
	}
}

// CreateEpisode handles POST /api/episodes requests. It records the episode
// with pending status and enqueues it; processing happens asynchronously, so
// the response is 202 Accepted.
func (h *EpisodeHandler) CreateEpisode(w http.ResponseWriter, r *http.Request) {
	var req CreateEpisodeRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	episode, err := h.episodeService.CreateEpisodeAndEnqueue(r.Context(), service.CreateEpisodeParams{
		GroupID:           req.GroupID,
		Name:              req.Name,
		Content:           req.Content,
		SourceDescription: req.SourceDescription,
		Source:            domain.EpisodeSource(req.Source),
		OrgID:             req.OrgID,
		ProjectID:         req.ProjectID,
		UserID:            req.UserID,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to create episode", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, episodeToResponse(episode))
}

// GetEpisode handles GET /api/episodes/{id} requests.
func (h *EpisodeHandler) GetEpisode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.episodeIDFromURL(w, r)
	if !ok {
		return
	}

	episode, err := h.episodeService.GetEpisode(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrEpisodeNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Episode not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to retrieve episode", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, episodeToResponse(episode))
}

// RetryEpisode handles POST /api/episodes/{id}/retry requests. Only episodes
// in the failed state can be retried; the record is reset to pending and
// re-enqueued.
func (h *EpisodeHandler) RetryEpisode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.episodeIDFromURL(w, r)
	if !ok {
		return
	}

	episode, err := h.episodeService.RetryEpisode(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEpisodeNotFound):
			shared.RespondWithError(w, r, http.StatusNotFound, "Episode not found")
		case errors.Is(err, service.ErrEpisodeNotRetryable):
			shared.RespondWithError(w, r, http.StatusConflict,
				"Episode is not in a retryable state")
		default:
			shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
				"Failed to retry episode", err)
		}
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, episodeToResponse(episode))
}

// episodeIDFromURL parses the {id} path parameter, responding with 400 on
// malformed IDs.
func (h *EpisodeHandler) episodeIDFromURL(
	w http.ResponseWriter,
	r *http.Request,
) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid episode ID")
		return uuid.Nil, false
	}
	return id, true
}

// episodeToResponse converts a domain.Episode to an EpisodeResponse
func episodeToResponse(episode *domain.Episode) EpisodeResponse {
	return EpisodeResponse{
		ID:                episode.ID.String(),
		GroupID:           episode.GroupID,
		Name:              episode.Name,
		Content:           episode.Content,
		SourceDescription: episode.SourceDescription,
		Source:            string(episode.Source),
		OrgID:             episode.OrgID,
		ProjectID:         episode.ProjectID,
		UserID:            episode.UserID,
		Status:            string(episode.Status),
		CreatedAt:         episode.CreatedAt,
		UpdatedAt:         episode.UpdatedAt,
	}
}
