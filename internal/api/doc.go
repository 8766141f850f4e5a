// Package api defines wire-format types and converters for the HTTP API.
// It translates work items, keyword progress, and annotation records into
// transport-friendly DTOs that annotation clients can render without
// coupling to internal types.
//
// DTOs use camelCase JSON tags for browser consumers. Tracks and keyword
// states are exposed as lowercase strings; keyword progress is also sent as
// its integer vector (1 pending, 2 done, 3 current, 4 skipped) so existing
// clients can post it back unchanged. Timestamps use RFC3339 with
// milliseconds. Annotation payloads pass through as json.RawMessage.
package api
