package services

import "context"

type contextKey string

const (
	itemIDKey      contextKey = "item_id"
	trackKey       contextKey = "track"
	annotatorIDKey contextKey = "annotator_id"
	requestIDKey   contextKey = "request_id"
)

// WithItemID annotates context with the work item identifier.
func WithItemID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, itemIDKey, id)
}

// ItemIDFromContext extracts the work item identifier if present.
func ItemIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(itemIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithTrack annotates context with the annotation track name.
func WithTrack(ctx context.Context, track string) context.Context {
	if track == "" {
		return ctx
	}
	return context.WithValue(ctx, trackKey, track)
}

// TrackFromContext returns the track name if present.
func TrackFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(trackKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithAnnotatorID annotates context with the requesting annotator.
func WithAnnotatorID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, annotatorIDKey, id)
}

// AnnotatorIDFromContext returns the annotator identifier if present.
func AnnotatorIDFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(annotatorIDKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
