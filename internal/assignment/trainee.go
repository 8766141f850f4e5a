package assignment

import (
	"context"
	"fmt"
	"strings"

	"medannotate/internal/logging"
	"medannotate/internal/workitem"
)

// SubmitTrainee stores a trainee's complete set of annotations and finalizes
// the trainee track. The submitter must hold the trainee lock. Records are
// stored before completion, so a failed finalize leaves the claim in place
// for the annotator to submit again.
func (m *Manager) SubmitTrainee(ctx context.Context, itemID int64, annotatorID string, records []workitem.Record) ([]workitem.Record, error) {
	annotatorID = strings.TrimSpace(annotatorID)
	if annotatorID == "" {
		return nil, fmt.Errorf("%w: annotator id is required", workitem.ErrInvalidInput)
	}
	item, err := m.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	state := item.Track(workitem.TrackTrainee)
	switch {
	case !state.Locked():
		return nil, fmt.Errorf("item %d trainee track: %w", itemID, workitem.ErrNotClaimed)
	case state.LockedBy != annotatorID:
		return nil, fmt.Errorf("item %d trainee track: %w", itemID, workitem.ErrNotLockHolder)
	}

	entries := make([]workitem.Record, len(records))
	for i, record := range records {
		record.ItemID = itemID
		record.Track = workitem.TrackTrainee
		record.AnnotatorID = annotatorID
		entries[i] = record
	}
	stored, err := m.repo.AddRecords(ctx, entries)
	if err != nil {
		return nil, fmt.Errorf("store trainee annotations: %w", err)
	}
	if err := m.FinalizeItem(ctx, itemID, workitem.TrackTrainee); err != nil {
		return nil, err
	}
	m.itemLogger(ctx, itemID, workitem.TrackTrainee).Info("trainee submission stored",
		logging.String(logging.FieldAnnotatorID, annotatorID),
		logging.Int("records", len(stored)),
	)
	return stored, nil
}
