// Package workitem defines the annotation work item, the per-track lock and
// completion state it carries, and the annotator descriptor supplied by the
// authentication layer.
//
// A WorkItem is created once at ingestion with a fixed keyword list and is
// never deleted. Its mutable state lives in Tracks, one TrackState per Track,
// so the expert and trainee workflows lock and complete the same item
// independently of each other.
//
// The sentinel errors declared here are shared by the directory store, the
// assignment manager, and the HTTP API. Use Kind to classify an error for
// presentation.
package workitem
