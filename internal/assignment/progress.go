package assignment

import (
	"context"
	"fmt"
	"strconv"

	"medannotate/internal/workitem"
)

// TrackProgress is the completion count of one track.
type TrackProgress struct {
	Track     workitem.Track `json:"track"`
	Completed int            `json:"completed"`
	Total     int            `json:"total"`
	Counter   string         `json:"counter"`
}

// Counter returns "{completed}/{total}" for track, read from the store on
// every call.
func (m *Manager) Counter(ctx context.Context, track workitem.Track) (string, error) {
	completed, total, err := m.counts(ctx, track)
	if err != nil {
		return "", err
	}
	return formatCounter(completed, total), nil
}

// Summary returns progress for every track.
func (m *Manager) Summary(ctx context.Context) ([]TrackProgress, error) {
	out := make([]TrackProgress, 0, len(workitem.Tracks))
	for _, track := range workitem.Tracks {
		completed, total, err := m.counts(ctx, track)
		if err != nil {
			return nil, err
		}
		out = append(out, TrackProgress{
			Track:     track,
			Completed: completed,
			Total:     total,
			Counter:   formatCounter(completed, total),
		})
	}
	return out, nil
}

func (m *Manager) counts(ctx context.Context, track workitem.Track) (int, int, error) {
	if !track.Valid() {
		return 0, 0, fmt.Errorf("%w: unknown track %q", workitem.ErrInvalidInput, track)
	}
	completed, err := m.repo.CountCompleted(ctx, track)
	if err != nil {
		return 0, 0, fmt.Errorf("count completed: %w", err)
	}
	total, err := m.repo.CountTotal(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("count total: %w", err)
	}
	return completed, total, nil
}

func formatCounter(completed, total int) string {
	return strconv.Itoa(completed) + "/" + strconv.Itoa(total)
}
