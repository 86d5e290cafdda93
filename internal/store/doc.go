// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying storage mechanism from the
// application's core logic, keeping the ingestion pipeline independent of
// specific database technologies.
package store
