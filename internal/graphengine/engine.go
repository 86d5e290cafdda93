package graphengine

import (
	"context"
	"errors"
	"time"

	"github.com/lorecraft/graphd/internal/domain"
)

// ErrEngineUnavailable is returned when the engine cannot be reached at all,
// as opposed to rejecting a particular request.
var ErrEngineUnavailable = errors.New("graph engine unavailable")

// Node is a graph node created or touched by an ingestion call.
type Node struct {
	UUID       string         `json:"uuid"`
	Name       string         `json:"name"`
	GroupID    string         `json:"group_id"`
	Labels     []string       `json:"labels,omitempty"`
	Summary    string         `json:"summary,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Edge is a graph relationship created or touched by an ingestion call.
type Edge struct {
	UUID           string         `json:"uuid"`
	Name           string         `json:"name"`
	GroupID        string         `json:"group_id"`
	SourceNodeUUID string         `json:"source_node_uuid"`
	TargetNodeUUID string         `json:"target_node_uuid"`
	Fact           string         `json:"fact,omitempty"`
	Attributes     map[string]any `json:"attributes,omitempty"`
}

// AddEpisodeParams carries everything the engine needs for one ingestion.
type AddEpisodeParams struct {
	// UUID is the stable identifier of the unit of content; the engine
	// upserts rather than duplicating when it is supplied again.
	UUID              string                 `json:"uuid"`
	Name              string                 `json:"name"`
	Content           string                 `json:"content"`
	SourceDescription string                 `json:"source_description"`
	Source            string                 `json:"source"`
	GroupID           string                 `json:"group_id"`
	ReferenceTime     time.Time              `json:"reference_time"`
	EntityTypes       []domain.EntityTypeDef `json:"entity_types,omitempty"`
	EdgeTypes         []domain.EdgeTypeDef   `json:"edge_types,omitempty"`
	EdgeTypeMap       domain.EdgeTypeMap     `json:"edge_type_map,omitempty"`

	// UpdateCommunities toggles the engine's built-in community maintenance.
	// The ingestion pipeline always sets this false and re-runs community
	// updates itself, scoped to the touched nodes, so community failures
	// cannot fail the write.
	UpdateCommunities bool `json:"update_communities"`
}

// AddEpisodeResult is the set of graph elements created or touched by an
// ingestion call.
type AddEpisodeResult struct {
	Episode Node   `json:"episode"`
	Nodes   []Node `json:"nodes"`
	Edges   []Edge `json:"edges"`
}

// Engine is the narrow boundary to the external graph-reasoning engine that
// performs entity extraction, embedding, and graph writes. Implementations
// live under internal/platform; this subsystem never re-implements the
// engine's reasoning.
type Engine interface {
	// AddEpisode ingests one unit of content and returns the graph elements
	// it created or touched.
	AddEpisode(ctx context.Context, params AddEpisodeParams) (*AddEpisodeResult, error)

	// UpdateCommunity recomputes community membership around a single node.
	UpdateCommunity(ctx context.Context, node Node) error

	// ExecuteQuery runs a raw graph query with named parameters and returns
	// the result rows. Used for metadata propagation writes.
	ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	// MaxConcurrency reports the engine's configured parallel-call budget.
	// Callers issuing fan-out calls (community updates) must stay within it.
	MaxConcurrency() int
}
