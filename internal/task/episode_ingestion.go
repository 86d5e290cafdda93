package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lorecraft/graphd/internal/domain"
	"github.com/lorecraft/graphd/internal/graphengine"
	"github.com/lorecraft/graphd/internal/store"
)

// Common errors
var (
	ErrNilEngine       = errors.New("graph engine cannot be nil")
	ErrNilEpisodeStore = errors.New("episode store cannot be nil")
	ErrNilSchemaStore  = errors.New("schema store cannot be nil")
	ErrNilLogger       = errors.New("logger cannot be nil")
)

// Built-in graph labels the engine manages itself; they are never synced back
// into a project schema as custom types.
var builtinLabels = map[string]bool{
	"Entity":    true,
	"Episodic":  true,
	"Community": true,
}

// builtinEdgeNames are the engine's structural relationship names, excluded
// from schema sync for the same reason.
var builtinEdgeNames = map[string]bool{
	"MENTIONS":   true,
	"HAS_MEMBER": true,
	"RELATES_TO": true,
}

// EpisodeIngestionPayload is the immutable payload of an "add_episode" task.
type EpisodeIngestionPayload struct {
	// EpisodeUUID is the stable identifier of the unit of content; the
	// engine upserts on it rather than duplicating.
	EpisodeUUID string `json:"episode_uuid"`

	// RecordID, when set, names the application-level episode record whose
	// status tracks this task.
	RecordID string `json:"record_id,omitempty"`

	GroupID           string `json:"group_id"`
	Name              string `json:"name,omitempty"`
	Content           string `json:"content"`
	SourceDescription string `json:"source_description,omitempty"`
	Source            string `json:"source,omitempty"`

	OrgID     string `json:"org_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// EpisodeIngestionHandler is the principal task handler: it drives the
// multi-step pipeline that ingests one episode through the external graph
// engine, propagates scoping metadata onto the created graph elements,
// re-runs community maintenance scoped to the touched nodes, and advances the
// episode record's status.
//
// Only the engine write itself (the add_episode call) can fail the task;
// every other step is advisory and at worst degrades denormalized metadata
// that can be repaired later.
type EpisodeIngestionHandler struct {
	engine   graphengine.Engine
	episodes store.EpisodeStore
	schemas  store.SchemaStore
	logger   *slog.Logger
}

// NewEpisodeIngestionHandler creates the handler for the "add_episode" kind.
func NewEpisodeIngestionHandler(
	engine graphengine.Engine,
	episodes store.EpisodeStore,
	schemas store.SchemaStore,
	logger *slog.Logger,
) (*EpisodeIngestionHandler, error) {
	if engine == nil {
		return nil, ErrNilEngine
	}
	if episodes == nil {
		return nil, ErrNilEpisodeStore
	}
	if schemas == nil {
		return nil, ErrNilSchemaStore
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	return &EpisodeIngestionHandler{
		engine:   engine,
		episodes: episodes,
		schemas:  schemas,
		logger:   logger.With("task_kind", KindAddEpisode),
	}, nil
}

// Kind returns the task kind identifier
func (h *EpisodeIngestionHandler) Kind() string {
	return KindAddEpisode
}

// Process runs the ingestion pipeline for one episode.
func (h *EpisodeIngestionHandler) Process(ctx context.Context, payload json.RawMessage) error {
	var p EpisodeIngestionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if p.GroupID == "" {
		return errors.New("payload missing group_id")
	}
	if p.Content == "" {
		return errors.New("payload missing content")
	}

	recordID := uuid.Nil
	if p.RecordID != "" {
		id, err := uuid.Parse(p.RecordID)
		if err != nil {
			return fmt.Errorf("invalid record ID %q: %w", p.RecordID, err)
		}
		recordID = id
	}

	log := h.logger.With(
		"group_id", p.GroupID,
		"episode_uuid", p.EpisodeUUID,
	)

	// Pipeline state shared across steps
	schema := domain.DefaultGraphSchema()
	var result *graphengine.AddEpisodeResult

	// The record only reaches a terminal status through PROCESSING. A
	// transient failure recording PROCESSING here is retried before the
	// terminal write rather than letting the record jump straight from
	// PENDING to COMPLETED or FAILED.
	processingMarked := false
	markProcessing := func(ctx context.Context) error {
		if recordID == uuid.Nil || processingMarked {
			return nil
		}
		if err := h.episodes.UpdateStatus(ctx, recordID, domain.EpisodeStatusProcessing); err != nil {
			return err
		}
		processingMarked = true
		return nil
	}

	steps := []pipelineStep{
		{
			name:     "mark_processing",
			advisory: true,
			run:      markProcessing,
		},
		{
			name:     "load_schema",
			advisory: true,
			run: func(ctx context.Context) error {
				if p.ProjectID == "" {
					return nil
				}
				loaded, err := h.schemas.GetByProject(ctx, p.ProjectID)
				if err != nil {
					if store.IsNotFoundError(err) {
						// No schema stored for the project; the default is
						// not a degradation.
						return nil
					}
					return err
				}
				schema = loaded
				return nil
			},
		},
		{
			name: "add_episode",
			run: func(ctx context.Context) error {
				res, err := h.engine.AddEpisode(ctx, graphengine.AddEpisodeParams{
					UUID:              p.EpisodeUUID,
					Name:              p.Name,
					Content:           p.Content,
					SourceDescription: p.SourceDescription,
					Source:            p.Source,
					GroupID:           p.GroupID,
					ReferenceTime:     time.Now().UTC(),
					EntityTypes:       schema.EntityTypes,
					EdgeTypes:         schema.EdgeTypes,
					EdgeTypeMap:       schema.EdgeTypeMap,
					// Community maintenance runs below, scoped to the touched
					// nodes, so its failures cannot fail the write.
					UpdateCommunities: false,
				})
				if err != nil {
					return err
				}
				result = res
				return nil
			},
		},
		{
			name:     "sync_schema",
			advisory: true,
			run: func(ctx context.Context) error {
				if p.ProjectID == "" || result == nil {
					return nil
				}
				entityTypes, edgeTypes := observedTypeShapes(result)
				if len(entityTypes) == 0 && len(edgeTypes) == 0 {
					return nil
				}
				return h.schemas.Sync(ctx, p.ProjectID, entityTypes, edgeTypes)
			},
		},
		{
			name:     "propagate_metadata",
			advisory: true,
			run: func(ctx context.Context) error {
				query, params := buildMetadataQuery(p, result.Episode.UUID)
				_, err := h.engine.ExecuteQuery(ctx, query, params)
				return err
			},
		},
		{
			name:     "update_communities",
			advisory: true,
			run: func(ctx context.Context) error {
				return h.updateCommunities(ctx, log, p, result)
			},
		},
		{
			name:     "mark_completed",
			advisory: true,
			run: func(ctx context.Context) error {
				if recordID == uuid.Nil {
					return nil
				}
				if err := markProcessing(ctx); err != nil {
					return err
				}
				return h.episodes.UpdateStatus(ctx, recordID, domain.EpisodeStatusCompleted)
			},
		},
	}

	log.Info("starting episode ingestion")

	if err := runPipeline(ctx, log, steps); err != nil {
		if recordID != uuid.Nil {
			if markErr := markProcessing(ctx); markErr != nil {
				log.Error("failed to mark episode record processing", "error", markErr)
			} else if updateErr := h.episodes.UpdateStatus(ctx, recordID, domain.EpisodeStatusFailed); updateErr != nil {
				log.Error("failed to mark episode record failed", "error", updateErr)
			}
		}
		return err
	}

	log.Info("episode ingestion completed",
		"nodes_touched", len(result.Nodes),
		"edges_touched", len(result.Edges))
	return nil
}

// updateCommunities runs the engine's community-update procedure for every
// node touched by the ingestion, bounded by the engine's concurrency limit,
// then cascades tenant/project scoping onto community nodes reached
// transitively from the episode. Individual node failures are logged and
// counted; the cascade is skipped when any update failed.
func (h *EpisodeIngestionHandler) updateCommunities(
	ctx context.Context,
	log *slog.Logger,
	p EpisodeIngestionPayload,
	result *graphengine.AddEpisodeResult,
) error {
	if result == nil || len(result.Nodes) == 0 {
		return nil
	}

	limit := h.engine.MaxConcurrency()
	if limit <= 0 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var failures int32

	for _, node := range result.Nodes {
		wg.Add(1)
		sem <- struct{}{}
		go func(n graphengine.Node) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := h.engine.UpdateCommunity(ctx, n); err != nil {
				atomic.AddInt32(&failures, 1)
				log.Warn("community update failed",
					"node_uuid", n.UUID,
					"error", err)
			}
		}(node)
	}
	wg.Wait()

	if n := atomic.LoadInt32(&failures); n > 0 {
		return fmt.Errorf("%d of %d community updates failed", n, len(result.Nodes))
	}

	if p.OrgID == "" && p.ProjectID == "" {
		return nil
	}

	query, params := buildCommunityCascadeQuery(p, result.Episode.UUID)
	if _, err := h.engine.ExecuteQuery(ctx, query, params); err != nil {
		return fmt.Errorf("community scoping cascade: %w", err)
	}
	return nil
}

// observedTypeShapes extracts the non-builtin entity labels and edge names
// from an ingestion result, deduplicated, for syncing back into the project
// schema.
func observedTypeShapes(
	result *graphengine.AddEpisodeResult,
) ([]domain.EntityTypeDef, []domain.EdgeTypeDef) {
	seenEntities := make(map[string]bool)
	var entityTypes []domain.EntityTypeDef
	for _, node := range result.Nodes {
		for _, label := range node.Labels {
			if builtinLabels[label] || seenEntities[label] {
				continue
			}
			seenEntities[label] = true
			entityTypes = append(entityTypes, domain.EntityTypeDef{Name: label})
		}
	}

	seenEdges := make(map[string]bool)
	var edgeTypes []domain.EdgeTypeDef
	for _, edge := range result.Edges {
		if edge.Name == "" || builtinEdgeNames[edge.Name] || seenEdges[edge.Name] {
			continue
		}
		seenEdges[edge.Name] = true
		edgeTypes = append(edgeTypes, domain.EdgeTypeDef{Name: edge.Name})
	}

	return entityTypes, edgeTypes
}

// buildMetadataQuery builds the single scoped write that stamps supplied
// org/project/user scoping onto the episodic node, cascades it onto every
// entity the episode mentions, and marks the node's sync status complete.
func buildMetadataQuery(p EpisodeIngestionPayload, episodeUUID string) (string, map[string]any) {
	params := map[string]any{"uuid": episodeUUID}

	var scopeSets []string
	addScope := func(field, param, value string) {
		if value == "" {
			return
		}
		scopeSets = append(scopeSets, fmt.Sprintf("%%s.%s = $%s", field, param))
		params[param] = value
	}
	addScope("org_id", "org_id", p.OrgID)
	addScope("project_id", "project_id", p.ProjectID)
	addScope("user_id", "user_id", p.UserID)

	var b strings.Builder
	b.WriteString("MATCH (episode:Episodic {uuid: $uuid})\n")
	b.WriteString("SET episode.sync_status = 'complete'")
	for _, s := range scopeSets {
		b.WriteString(", ")
		b.WriteString(fmt.Sprintf(s, "episode"))
	}
	b.WriteString("\n")

	if len(scopeSets) > 0 {
		b.WriteString("WITH episode\n")
		b.WriteString("OPTIONAL MATCH (episode)-[:MENTIONS]->(entity:Entity)\n")
		b.WriteString("SET ")
		for i, s := range scopeSets {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf(s, "entity"))
		}
		b.WriteString("\n")
	}

	b.WriteString("RETURN episode.uuid AS uuid")
	return b.String(), params
}

// buildCommunityCascadeQuery builds the write that copies org/project scoping
// onto community nodes reached from the episode through its entity mentions.
func buildCommunityCascadeQuery(
	p EpisodeIngestionPayload,
	episodeUUID string,
) (string, map[string]any) {
	params := map[string]any{"uuid": episodeUUID}

	var sets []string
	if p.OrgID != "" {
		sets = append(sets, "community.org_id = $org_id")
		params["org_id"] = p.OrgID
	}
	if p.ProjectID != "" {
		sets = append(sets, "community.project_id = $project_id")
		params["project_id"] = p.ProjectID
	}

	query := "MATCH (episode:Episodic {uuid: $uuid})-[:MENTIONS]->(:Entity)" +
		"<-[:HAS_MEMBER]-(community:Community)\n" +
		"SET " + strings.Join(sets, ", ") + "\n" +
		"RETURN count(community) AS updated"
	return query, params
}
