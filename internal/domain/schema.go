package domain

import "time"

// EntityTypeDef describes one entity type the extraction engine should
// recognize for a project.
type EntityTypeDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// EdgeTypeDef describes one relationship type the extraction engine should
// recognize for a project.
type EdgeTypeDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// EdgeTypeMap restricts which edge types may connect a pair of entity types.
// Keys are "Source->Target" entity type names; values are edge type names.
type EdgeTypeMap map[string][]string

// GraphSchema is the project-scoped extraction schema: the entity and
// relationship type definitions handed to the graph engine with every
// ingestion call.
type GraphSchema struct {
	ProjectID   string          `json:"project_id"`
	EntityTypes []EntityTypeDef `json:"entity_types"`
	EdgeTypes   []EdgeTypeDef   `json:"edge_types"`
	EdgeTypeMap EdgeTypeMap     `json:"edge_type_map"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// DefaultGraphSchema returns the schema used when a project has none stored
// or the stored one cannot be loaded: no type constraints, letting the engine
// extract freely.
func DefaultGraphSchema() *GraphSchema {
	return &GraphSchema{
		EntityTypes: nil,
		EdgeTypes:   nil,
		EdgeTypeMap: nil,
	}
}
