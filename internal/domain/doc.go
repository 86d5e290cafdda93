// Package domain defines the core business entities and errors: episodes
// submitted for knowledge-graph ingestion and the per-project graph schema
// describing entity and relationship types.
package domain
