// Package service contains the application-specific use cases and business
// logic. It orchestrates interactions between domain objects and repositories
// (defined in internal/store) to fulfill application features.
//
// Services receive dependencies through constructor injection: repositories
// for persistence, the event emitter for decoupled task submission, and a
// structured logger. They apply transactional boundaries around persistence,
// translate store-level errors to service-level ones, and never depend on
// specific infrastructure implementations.
package service
