// Package services defines request-scoped context helpers shared by the HTTP
// API, the assignment manager, and the logging layer.
//
// Handlers stamp the work item, track, annotator, and a correlation id onto
// the request context so every log line emitted while serving that request
// carries the same identifiers.
package services
