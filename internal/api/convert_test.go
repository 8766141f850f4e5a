package api

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"medannotate/internal/keywords"
	"medannotate/internal/workitem"
)

func TestFromWorkItemRendersTracks(t *testing.T) {
	locked := time.Date(2025, 5, 4, 10, 30, 0, 0, time.UTC)
	item := &workitem.WorkItem{
		ID:        7,
		Specialty: "Radiology",
		Keywords:  []string{"a", "b"},
		Tracks: map[workitem.Track]*workitem.TrackState{
			workitem.TrackExpert: {
				LockedBy: "dr-a",
				LockedAt: &locked,
				Progress: keywords.Progress{keywords.Done, keywords.Current},
			},
		},
	}

	dto := FromWorkItem(item)
	if dto.ID != 7 || len(dto.Tracks) != 2 {
		t.Fatalf("unexpected dto: %#v", dto)
	}
	expert := dto.Tracks["expert"]
	if expert.LockedBy != "dr-a" || expert.LockedAt != "2025-05-04T10:30:00.000Z" {
		t.Fatalf("unexpected expert view: %#v", expert)
	}
	if expert.Progress == nil || !reflect.DeepEqual(expert.Progress.Vector, []int{2, 3}) {
		t.Fatalf("unexpected progress: %#v", expert.Progress)
	}
	if !reflect.DeepEqual(expert.Progress.States, []string{"done", "current"}) || expert.Progress.Cursor != 1 {
		t.Fatalf("unexpected progress states: %#v", expert.Progress)
	}
	if trainee := dto.Tracks["trainee"]; trainee.LockedBy != "" || trainee.Completed || trainee.Progress != nil {
		t.Fatalf("expected empty trainee view, got %#v", trainee)
	}
}

func TestToProgress(t *testing.T) {
	progress, err := ToProgress([]int{4, 2, 3})
	if err != nil {
		t.Fatalf("ToProgress failed: %v", err)
	}
	if want := (keywords.Progress{keywords.Skipped, keywords.Done, keywords.Current}); !reflect.DeepEqual(progress, want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	if p, err := ToProgress(nil); err != nil || p != nil {
		t.Fatalf("expected nil progress for nil vector, got %v, %v", p, err)
	}
	if _, err := ToProgress([]int{9}); !errors.Is(err, keywords.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestToAnnotator(t *testing.T) {
	annotator, err := ToAnnotator(Annotator{ID: " dr-a ", Track: "professional", Specialty: "Radiology"})
	if err != nil {
		t.Fatalf("ToAnnotator failed: %v", err)
	}
	if annotator.ID != "dr-a" || annotator.Track != workitem.TrackExpert {
		t.Fatalf("unexpected annotator: %#v", annotator)
	}
	if _, err := ToAnnotator(Annotator{ID: "x", Track: "nurse", Specialty: "Radiology"}); !errors.Is(err, workitem.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
