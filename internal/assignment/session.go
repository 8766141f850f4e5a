package assignment

import (
	"context"
	"fmt"

	"medannotate/internal/keywords"
	"medannotate/internal/logging"
	"medannotate/internal/workitem"
)

// EndSession closes an annotator's session on an item.
//
// Trainee sessions always release the lock; their work is only kept through
// SubmitTrainee. Expert sessions that started keep the lock and persist
// progress so the annotator resumes at the same cursor; a nil progress keeps
// whatever is already stored. Both require a live, incomplete expert claim.
// Expert sessions that never started clear progress and release the lock.
func (m *Manager) EndSession(ctx context.Context, itemID int64, track workitem.Track, started bool, progress keywords.Progress) error {
	switch track {
	case workitem.TrackTrainee:
		return m.endTraineeSession(ctx, itemID)
	case workitem.TrackExpert:
		return m.endExpertSession(ctx, itemID, started, progress)
	default:
		return fmt.Errorf("%w: unknown track %q", workitem.ErrInvalidInput, track)
	}
}

func (m *Manager) endTraineeSession(ctx context.Context, itemID int64) error {
	if err := m.repo.ReleaseLock(ctx, itemID, workitem.TrackTrainee); err != nil {
		return fmt.Errorf("release trainee lock: %w", err)
	}
	m.metrics.RecordSessionEnd(workitem.TrackTrainee, false)
	m.itemLogger(ctx, itemID, workitem.TrackTrainee).Info("trainee session ended, lock released")
	return nil
}

func (m *Manager) endExpertSession(ctx context.Context, itemID int64, started bool, progress keywords.Progress) error {
	logger := m.itemLogger(ctx, itemID, workitem.TrackExpert)
	if !started {
		if err := m.repo.SetProgress(ctx, itemID, nil); err != nil {
			return fmt.Errorf("clear progress: %w", err)
		}
		if err := m.repo.ReleaseLock(ctx, itemID, workitem.TrackExpert); err != nil {
			return fmt.Errorf("release expert lock: %w", err)
		}
		m.metrics.RecordSessionEnd(workitem.TrackExpert, false)
		logger.Info("expert session abandoned, lock released")
		return nil
	}

	item, err := m.loadItem(ctx, itemID)
	if err != nil {
		return err
	}
	if progress != nil {
		if err := progress.Validate(len(item.Keywords)); err != nil {
			return err
		}
	}
	state := item.Track(workitem.TrackExpert)
	if state.Completed || !state.Locked() {
		return fmt.Errorf("item %d expert track: %w", itemID, workitem.ErrNotClaimed)
	}
	if progress != nil {
		if _, err := m.repo.AdvanceProgress(ctx, itemID, state.LockedBy, state.Progress, progress, nil); err != nil {
			return fmt.Errorf("save progress: %w", err)
		}
	}
	m.metrics.RecordSessionEnd(workitem.TrackExpert, true)
	logger.Info("expert session paused, claim kept", logging.Int("keywords", len(progress)))
	return nil
}

// FinalizeItem marks the item complete for track. Completion clears the lock
// and any expert progress in the same store operation.
func (m *Manager) FinalizeItem(ctx context.Context, itemID int64, track workitem.Track) error {
	if !track.Valid() {
		return fmt.Errorf("%w: unknown track %q", workitem.ErrInvalidInput, track)
	}
	if err := m.repo.MarkCompleted(ctx, itemID, track); err != nil {
		return fmt.Errorf("finalize item: %w", err)
	}
	m.metrics.RecordFinalize(track)
	m.itemLogger(ctx, itemID, track).Info("work item finalized")
	return nil
}
