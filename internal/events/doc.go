// Package events provides types and interfaces for decoupling ingestion
// submission from task construction.
//
// Services emit IngestRequestEvents without knowing which handlers will
// process them; a handler registered at startup turns each event into a
// queued task. This keeps the HTTP/service layer free of any dependency on
// the queue or task packages.
package events
