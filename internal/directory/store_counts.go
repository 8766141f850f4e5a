package directory

import (
	"context"
	"fmt"

	"medannotate/internal/workitem"
)

// CountTotal returns the number of stored items.
func (s *Store) CountTotal(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM work_items`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return total, nil
}

// CountCompleted returns the number of items completed on track.
func (s *Store) CountCompleted(ctx context.Context, track workitem.Track) (int, error) {
	var completed int
	if err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM item_tracks WHERE track = ? AND completed = 1`,
		string(track),
	).Scan(&completed); err != nil {
		return 0, fmt.Errorf("count completed %s: %w", track, err)
	}
	return completed, nil
}

// TrackStats aggregates item_tracks rows for one track.
type TrackStats struct {
	Track      workitem.Track
	Total      int
	Completed  int
	Locked     int
	InProgress int
}

// Stats returns per-track counts in workitem.Tracks order.
func (s *Store) Stats(ctx context.Context) ([]TrackStats, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT track,
                COUNT(1),
                COALESCE(SUM(completed), 0),
                COALESCE(SUM(CASE WHEN locked_by IS NOT NULL THEN 1 ELSE 0 END), 0),
                COALESCE(SUM(CASE WHEN progress IS NOT NULL THEN 1 ELSE 0 END), 0)
            FROM item_tracks GROUP BY track`,
	)
	if err != nil {
		return nil, fmt.Errorf("track stats: %w", err)
	}
	defer rows.Close()

	byTrack := make(map[workitem.Track]TrackStats, len(workitem.Tracks))
	for rows.Next() {
		var stats TrackStats
		if err := rows.Scan(&stats.Track, &stats.Total, &stats.Completed, &stats.Locked, &stats.InProgress); err != nil {
			return nil, err
		}
		byTrack[stats.Track] = stats
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TrackStats, 0, len(workitem.Tracks))
	for _, track := range workitem.Tracks {
		stats := byTrack[track]
		stats.Track = track
		out = append(out, stats)
	}
	return out, nil
}
