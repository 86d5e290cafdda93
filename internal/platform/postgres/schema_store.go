package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lorecraft/graphd/internal/domain"
	"github.com/lorecraft/graphd/internal/platform/logger"
	"github.com/lorecraft/graphd/internal/store"
)

// PostgresSchemaStore implements the store.SchemaStore interface, persisting
// project extraction schemas as JSONB documents.
type PostgresSchemaStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSchemaStore creates a new PostgreSQL implementation of the
// SchemaStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresSchemaStore(db store.DBTX, logger *slog.Logger) *PostgresSchemaStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSchemaStore{
		db:     db,
		logger: logger.With(slog.String("component", "schema_store")),
	}
}

// Ensure PostgresSchemaStore implements store.SchemaStore interface
var _ store.SchemaStore = (*PostgresSchemaStore)(nil)

// GetByProject implements store.SchemaStore.GetByProject
// Returns store.ErrSchemaNotFound when the project has no stored schema.
func (s *PostgresSchemaStore) GetByProject(
	ctx context.Context,
	projectID string,
) (*domain.GraphSchema, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT project_id, entity_types, edge_types, edge_type_map, updated_at
		FROM graph_schemas
		WHERE project_id = $1
	`

	var schema domain.GraphSchema
	var entityTypes, edgeTypes, edgeTypeMap []byte

	err := s.db.QueryRowContext(ctx, query, projectID).Scan(
		&schema.ProjectID,
		&entityTypes,
		&edgeTypes,
		&edgeTypeMap,
		&schema.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("schema not found", slog.String("project_id", projectID))
			return nil, store.ErrSchemaNotFound
		}
		log.Error("failed to get schema by project",
			slog.String("error", err.Error()),
			slog.String("project_id", projectID))
		return nil, err
	}

	if err := json.Unmarshal(entityTypes, &schema.EntityTypes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity types: %w", err)
	}
	if err := json.Unmarshal(edgeTypes, &schema.EdgeTypes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edge types: %w", err)
	}
	if err := json.Unmarshal(edgeTypeMap, &schema.EdgeTypeMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edge type map: %w", err)
	}

	return &schema, nil
}

// Sync implements store.SchemaStore.Sync
// It merges observed type shapes into the stored schema: names not yet
// present are appended, existing definitions keep their descriptions. The
// merged document is upserted in one statement.
func (s *PostgresSchemaStore) Sync(
	ctx context.Context,
	projectID string,
	entityTypes []domain.EntityTypeDef,
	edgeTypes []domain.EdgeTypeDef,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	current, err := s.GetByProject(ctx, projectID)
	if err != nil {
		if !errors.Is(err, store.ErrSchemaNotFound) {
			return err
		}
		current = &domain.GraphSchema{ProjectID: projectID}
	}

	added := 0
	added += mergeEntityTypes(current, entityTypes)
	added += mergeEdgeTypes(current, edgeTypes)
	if added == 0 {
		return nil
	}

	entityJSON, err := json.Marshal(current.EntityTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal entity types: %w", err)
	}
	edgeJSON, err := json.Marshal(current.EdgeTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal edge types: %w", err)
	}
	mapJSON, err := json.Marshal(current.EdgeTypeMap)
	if err != nil {
		return fmt.Errorf("failed to marshal edge type map: %w", err)
	}

	query := `
		INSERT INTO graph_schemas (project_id, entity_types, edge_types, edge_type_map, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (project_id) DO UPDATE
		SET entity_types = EXCLUDED.entity_types,
			edge_types = EXCLUDED.edge_types,
			edge_type_map = EXCLUDED.edge_type_map,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query, projectID, entityJSON, edgeJSON, mapJSON, time.Now().UTC())
	if err != nil {
		log.Error("failed to sync schema",
			slog.String("error", err.Error()),
			slog.String("project_id", projectID))
		return MapError(err)
	}

	log.Info("schema synced",
		slog.String("project_id", projectID),
		slog.Int("types_added", added))
	return nil
}

func mergeEntityTypes(schema *domain.GraphSchema, observed []domain.EntityTypeDef) int {
	known := make(map[string]bool, len(schema.EntityTypes))
	for _, t := range schema.EntityTypes {
		known[t.Name] = true
	}

	added := 0
	for _, t := range observed {
		if t.Name == "" || known[t.Name] {
			continue
		}
		known[t.Name] = true
		schema.EntityTypes = append(schema.EntityTypes, t)
		added++
	}
	return added
}

func mergeEdgeTypes(schema *domain.GraphSchema, observed []domain.EdgeTypeDef) int {
	known := make(map[string]bool, len(schema.EdgeTypes))
	for _, t := range schema.EdgeTypes {
		known[t.Name] = true
	}

	added := 0
	for _, t := range observed {
		if t.Name == "" || known[t.Name] {
			continue
		}
		known[t.Name] = true
		schema.EdgeTypes = append(schema.EdgeTypes, t)
		added++
	}
	return added
}
