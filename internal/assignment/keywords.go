package assignment

import (
	"context"
	"fmt"

	"medannotate/internal/keywords"
	"medannotate/internal/logging"
	"medannotate/internal/workitem"
)

// Save marks the cursor keyword done and persists the advanced vector.
func (m *Manager) Save(ctx context.Context, itemID int64, index int) (keywords.Progress, error) {
	return m.ApplyKeyword(ctx, itemID, keywords.ActionSave, index, nil)
}

// Skip marks the cursor keyword skipped and persists the advanced vector.
func (m *Manager) Skip(ctx context.Context, itemID int64, index int) (keywords.Progress, error) {
	return m.ApplyKeyword(ctx, itemID, keywords.ActionSkip, index, nil)
}

// MarkAbsent reverts the cursor keyword to pending and persists the advanced
// vector.
func (m *Manager) MarkAbsent(ctx context.Context, itemID int64, index int) (keywords.Progress, error) {
	return m.ApplyKeyword(ctx, itemID, keywords.ActionAbsent, index, nil)
}

// ApplyKeyword runs one keyword transition on the expert track of an item
// that is currently claimed. The transition starts from the stored vector,
// or the initial vector when nothing is stored yet. When record is non-nil
// it is stored alongside as the annotation for that keyword. The write only
// lands if the claim and the stored vector are unchanged since the read, and
// it counts as a heartbeat for the claim lease.
func (m *Manager) ApplyKeyword(ctx context.Context, itemID int64, action keywords.Action, index int, record *workitem.Record) (keywords.Progress, error) {
	item, err := m.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	state := item.Track(workitem.TrackExpert)
	if !state.Locked() {
		return nil, fmt.Errorf("item %d expert track: %w", itemID, workitem.ErrNotClaimed)
	}
	if record != nil && record.AnnotatorID != "" && record.AnnotatorID != state.LockedBy {
		return nil, fmt.Errorf("item %d expert track: %w", itemID, workitem.ErrNotLockHolder)
	}

	current := state.Progress
	if current == nil {
		current = keywords.Start(len(item.Keywords))
	}
	next, err := current.Apply(action, index)
	if err != nil {
		return nil, fmt.Errorf("keyword %s at %d: %w", action, index, err)
	}

	var records []workitem.Record
	if record != nil {
		entry := *record
		entry.ItemID = itemID
		entry.Track = workitem.TrackExpert
		entry.AnnotatorID = state.LockedBy
		entry.Keyword = item.Keywords[index]
		entry.KeywordIndex = &index
		entry.Action = string(action)
		records = append(records, entry)
	}
	if _, err := m.repo.AdvanceProgress(ctx, itemID, state.LockedBy, state.Progress, next, records); err != nil {
		return nil, fmt.Errorf("save progress: %w", err)
	}

	m.metrics.RecordKeywordAction(string(action))
	m.itemLogger(ctx, itemID, workitem.TrackExpert).Debug("keyword transition applied",
		logging.String("action", string(action)),
		logging.Int("index", index),
		logging.Int("cursor", next.Cursor()),
		logging.Bool("ready_to_finalize", next.ReadyToFinalize()),
	)
	return next, nil
}
