package store

import (
	"context"

	"github.com/lorecraft/graphd/internal/domain"
)

// SchemaStore defines the persistence interface for project graph schemas.
type SchemaStore interface {
	// GetByProject loads the extraction schema for a project.
	// Returns ErrSchemaNotFound when the project has no stored schema.
	GetByProject(ctx context.Context, projectID string) (*domain.GraphSchema, error)

	// Sync upserts entity/edge type shapes observed during an ingestion back
	// into the project's stored schema. New names are added; existing
	// definitions are left untouched.
	Sync(
		ctx context.Context,
		projectID string,
		entityTypes []domain.EntityTypeDef,
		edgeTypes []domain.EdgeTypeDef,
	) error
}
