package directory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"medannotate/internal/workitem"
)

// AddRecords appends annotation records for an item in one transaction.
// Records without an ID receive a random UUID; CreatedAt defaults to now.
func (s *Store) AddRecords(ctx context.Context, records []workitem.Record) ([]workitem.Record, error) {
	if len(records) == 0 {
		return nil, nil
	}
	stored, err := s.prepareRecords(records)
	if err != nil {
		return nil, err
	}
	if err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.insertRecords(ctx, tx, stored)
	}); err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Store) prepareRecords(records []workitem.Record) ([]workitem.Record, error) {
	stored := make([]workitem.Record, len(records))
	copy(stored, records)
	now := s.now()
	for i := range stored {
		if stored[i].ID == "" {
			stored[i].ID = uuid.NewString()
		}
		if stored[i].CreatedAt.IsZero() {
			stored[i].CreatedAt = now
		}
		if !stored[i].Track.Valid() {
			return nil, fmt.Errorf("%w: record track %q", workitem.ErrInvalidInput, stored[i].Track)
		}
	}
	return stored, nil
}

func (s *Store) insertRecords(ctx context.Context, tx *sql.Tx, records []workitem.Record) error {
	checked := make(map[int64]struct{})
	for _, record := range records {
		if _, ok := checked[record.ItemID]; !ok {
			exists, err := s.itemExists(ctx, tx, record.ItemID)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("item %d: %w", record.ItemID, workitem.ErrNotFound)
			}
			checked[record.ItemID] = struct{}{}
		}
		var index any
		if record.KeywordIndex != nil {
			index = *record.KeywordIndex
		}
		var payload any
		if len(record.Payload) > 0 {
			payload = string(record.Payload)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO annotation_records (
                id, item_id, track, annotator_id, keyword, keyword_index, action, payload, comment, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ID,
			record.ItemID,
			string(record.Track),
			record.AnnotatorID,
			nullableString(record.Keyword),
			index,
			nullableString(record.Action),
			payload,
			nullableString(record.Comment),
			formatTime(record.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert annotation record: %w", err)
		}
	}
	return nil
}

// ListRecords returns the records of an item on track in insertion order.
// An empty track lists both tracks.
func (s *Store) ListRecords(ctx context.Context, itemID int64, track workitem.Track) ([]workitem.Record, error) {
	query := `SELECT id, item_id, track, annotator_id, keyword, keyword_index, action, payload, comment, created_at
        FROM annotation_records WHERE item_id = ?`
	args := []any{itemID}
	if track != "" {
		query += ` AND track = ?`
		args = append(args, string(track))
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list annotation records: %w", err)
	}
	defer rows.Close()

	var records []workitem.Record
	for rows.Next() {
		var (
			record     workitem.Record
			keyword    sql.NullString
			index      sql.NullInt64
			action     sql.NullString
			payload    sql.NullString
			comment    sql.NullString
			createdRaw string
		)
		if err := rows.Scan(
			&record.ID,
			&record.ItemID,
			&record.Track,
			&record.AnnotatorID,
			&keyword,
			&index,
			&action,
			&payload,
			&comment,
			&createdRaw,
		); err != nil {
			return nil, err
		}
		record.Keyword = keyword.String
		if index.Valid {
			value := int(index.Int64)
			record.KeywordIndex = &value
		}
		record.Action = action.String
		if payload.Valid {
			record.Payload = []byte(payload.String)
		}
		record.Comment = comment.String
		if created, err := parseTimeString(createdRaw); err == nil {
			record.CreatedAt = created
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
