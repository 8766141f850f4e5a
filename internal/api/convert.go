package api

import (
	"fmt"
	"strings"
	"time"

	"medannotate/internal/assignment"
	"medannotate/internal/keywords"
	"medannotate/internal/workitem"
)

// FromWorkItem converts a work item to its API representation.
func FromWorkItem(item *workitem.WorkItem) WorkItem {
	if item == nil {
		return WorkItem{}
	}
	dto := WorkItem{
		ID:               item.ID,
		Specialty:        item.Specialty,
		BodyRegion:       item.BodyRegion,
		Modality:         item.Modality,
		ImageURL:         item.ImageURL,
		ImageDescription: item.ImageDescription,
		Sex:              item.Sex,
		Age:              item.Age,
		SkinTone:         item.SkinTone,
		Diagnosis:        item.Diagnosis,
		TreatmentName:    item.TreatmentName,
		Keywords:         append([]string{}, item.Keywords...),
		Tracks:           make(map[string]TrackView, len(workitem.Tracks)),
		CreatedAt:        formatTime(item.CreatedAt),
	}
	for _, track := range workitem.Tracks {
		state := item.Track(track)
		view := TrackView{
			Completed: state.Completed,
			LockedBy:  state.LockedBy,
		}
		if state.LockedAt != nil {
			view.LockedAt = formatTime(*state.LockedAt)
		}
		if state.LastHeartbeat != nil {
			view.LastHeartbeat = formatTime(*state.LastHeartbeat)
		}
		if state.Progress != nil {
			p := FromProgress(state.Progress)
			view.Progress = &p
		}
		dto.Tracks[string(track)] = view
	}
	return dto
}

// FromProgress renders a keyword progress vector.
func FromProgress(progress keywords.Progress) ProgressView {
	view := ProgressView{
		Vector:          make([]int, len(progress)),
		States:          make([]string, len(progress)),
		Cursor:          progress.Cursor(),
		ReadyToFinalize: progress.ReadyToFinalize(),
	}
	for i, s := range progress {
		view.Vector[i] = int(s)
		view.States[i] = s.String()
	}
	return view
}

// ToProgress parses an integer vector posted by a client. A nil vector stays
// nil so callers can distinguish "not sent" from "empty".
func ToProgress(vector []int) (keywords.Progress, error) {
	if vector == nil {
		return nil, nil
	}
	progress := make(keywords.Progress, len(vector))
	for i, v := range vector {
		s := keywords.State(v)
		if !s.Valid() {
			return nil, fmt.Errorf("%w: keyword %d has unknown state %d", keywords.ErrInvariantViolation, i, v)
		}
		progress[i] = s
	}
	return progress, nil
}

// ToAnnotator converts a work request body to the scheduler's descriptor.
func ToAnnotator(dto Annotator) (workitem.Annotator, error) {
	track, err := workitem.ParseTrack(dto.Track)
	if err != nil {
		return workitem.Annotator{}, err
	}
	annotator := workitem.Annotator{
		ID:                strings.TrimSpace(dto.ID),
		Track:             track,
		Specialty:         strings.TrimSpace(dto.Specialty),
		AllowedRegions:    dto.AllowedRegions,
		AllowedModalities: dto.AllowedModalities,
	}
	return annotator, annotator.Validate()
}

// FromRecord converts a stored annotation record.
func FromRecord(record workitem.Record) Record {
	return Record{
		ID:           record.ID,
		ItemID:       record.ItemID,
		Track:        string(record.Track),
		AnnotatorID:  record.AnnotatorID,
		Keyword:      record.Keyword,
		KeywordIndex: record.KeywordIndex,
		Action:       record.Action,
		Payload:      record.Payload,
		Comment:      record.Comment,
		CreatedAt:    formatTime(record.CreatedAt),
	}
}

// FromRecords converts a slice of records, preserving order.
func FromRecords(records []workitem.Record) []Record {
	out := make([]Record, 0, len(records))
	for _, record := range records {
		out = append(out, FromRecord(record))
	}
	return out
}

// FromSummary converts the manager's per-track progress.
func FromSummary(summary []assignment.TrackProgress) ProgressResponse {
	resp := ProgressResponse{Tracks: make([]TrackProgress, 0, len(summary))}
	for _, p := range summary {
		resp.Tracks = append(resp.Tracks, TrackProgress{
			Track:     string(p.Track),
			Completed: p.Completed,
			Total:     p.Total,
			Counter:   p.Counter,
		})
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
