// Package task defines the polymorphic units of ingestion work and their
// dispatch. A Handler processes one task kind; the Registry maps kind
// identifiers to handlers so new kinds are added by registering a new
// implementation, never by changing dispatch logic. The episode ingestion
// handler is the principal implementation: the multi-step pipeline that makes
// one unit of raw content durably and consistently represented in the
// knowledge graph.
package task
