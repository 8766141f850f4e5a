package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"medannotate/internal/workitem"
)

// AddItem inserts a work item and one unlocked, incomplete row per track.
// A non-zero item.ID is kept as the externally assigned identifier.
func (s *Store) AddItem(ctx context.Context, item *workitem.WorkItem) (*workitem.WorkItem, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}
	if strings.TrimSpace(item.Specialty) == "" {
		return nil, fmt.Errorf("%w: specialty is required", workitem.ErrInvalidInput)
	}
	keywordList := item.Keywords
	if keywordList == nil {
		keywordList = []string{}
	}
	keywordsJSON, err := json.Marshal(keywordList)
	if err != nil {
		return nil, fmt.Errorf("marshal keywords: %w", err)
	}

	timestamp := formatTime(s.now())
	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO work_items (
                id, specialty, specialty_key, body_region, body_region_key, modality, modality_key,
                image_url, image_description, sex, age, skin_tone, diagnosis, treatment_name,
                keywords_json, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			nullableID(item.ID),
			strings.TrimSpace(item.Specialty),
			matchKey(item.Specialty),
			nullableString(item.BodyRegion),
			matchKey(item.BodyRegion),
			nullableString(item.Modality),
			matchKey(item.Modality),
			nullableString(item.ImageURL),
			nullableString(item.ImageDescription),
			nullableString(item.Sex),
			nullableString(item.Age),
			nullableString(item.SkinTone),
			nullableString(item.Diagnosis),
			nullableString(item.TreatmentName),
			string(keywordsJSON),
			timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert work item: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		for _, track := range workitem.Tracks {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO item_tracks (item_id, track, completed, updated_at) VALUES (?, ?, 0, ?)`,
				id, string(track), timestamp,
			); err != nil {
				return fmt.Errorf("insert %s track: %w", track, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a work item with every track state. It returns nil, nil
// when the item does not exist.
func (s *Store) GetByID(ctx context.Context, id int64) (*workitem.WorkItem, error) {
	items, err := s.queryItems(ctx, `WHERE w.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// ListFilter narrows List results.
type ListFilter struct {
	// Track, when set, restricts results by that track's state.
	Track workitem.Track
	// Locked keeps only items held on Track.
	Locked bool
	// Completed keeps only items completed on Track.
	Completed bool
	Limit     int
}

// List returns work items ordered by id.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*workitem.WorkItem, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Track != "" && (filter.Locked || filter.Completed) {
		sub := `SELECT item_id FROM item_tracks WHERE track = ?`
		args = append(args, string(filter.Track))
		if filter.Locked {
			sub += ` AND locked_by IS NOT NULL`
		}
		if filter.Completed {
			sub += ` AND completed = 1`
		}
		clauses = append(clauses, `w.id IN (`+sub+`)`)
	}
	if filter.Limit > 0 {
		clauses = append(clauses, `w.id IN (SELECT id FROM work_items ORDER BY id LIMIT ?)`)
		args = append(args, filter.Limit)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	items, err := s.queryItems(ctx, where, args...)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	return items, nil
}

// queryItems loads items matching where, folding the per-track rows of each
// item into its Tracks map.
func (s *Store) queryItems(ctx context.Context, where string, args ...any) ([]*workitem.WorkItem, error) {
	query := `SELECT ` + itemColumns + `, ` + trackColumns + `
        FROM work_items w JOIN item_tracks t ON t.item_id = w.id ` + where + `
        ORDER BY w.id, t.track`
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		items []*workitem.WorkItem
		last  *workitem.WorkItem
	)
	for rows.Next() {
		item, track, state, err := scanItemTrack(rows)
		if err != nil {
			return nil, err
		}
		if last == nil || last.ID != item.ID {
			item.Tracks = make(map[workitem.Track]*workitem.TrackState, len(workitem.Tracks))
			items = append(items, item)
			last = item
		}
		last.Tracks[track] = state
	}
	return items, rows.Err()
}

// itemExists reports whether id names a stored item.
func (s *Store) itemExists(ctx context.Context, q querier, id int64) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM work_items WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check item %d: %w", id, err)
	}
	return true, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nullableID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}
