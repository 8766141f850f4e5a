package services_test

import (
	"context"
	"testing"

	"medannotate/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemID(ctx, 42)
	ctx = services.WithTrack(ctx, "expert")
	ctx = services.WithAnnotatorID(ctx, "ann-7")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected item id: %v %v", id, ok)
	}
	if track, ok := services.TrackFromContext(ctx); !ok || track != "expert" {
		t.Fatalf("unexpected track: %v %v", track, ok)
	}
	if annotator, ok := services.AnnotatorIDFromContext(ctx); !ok || annotator != "ann-7" {
		t.Fatalf("unexpected annotator: %v %v", annotator, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTrack(ctx, "")
	ctx = services.WithAnnotatorID(ctx, "")
	ctx = services.WithRequestID(ctx, "")
	if _, ok := services.TrackFromContext(ctx); ok {
		t.Fatal("expected no track value")
	}
	if _, ok := services.AnnotatorIDFromContext(ctx); ok {
		t.Fatal("expected no annotator value")
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id")
	}
	if _, ok := services.ItemIDFromContext(ctx); ok {
		t.Fatal("expected no item id")
	}
}
