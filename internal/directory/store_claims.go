package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"medannotate/internal/keywords"
	"medannotate/internal/workitem"
)

// ClaimNext atomically locks the lowest-id item that is incomplete and
// unlocked on track and matches the scheduling filters. It returns nil, nil
// when nothing is eligible and workitem.ErrClaimConflict when every
// compare-and-set attempt lost to a concurrent claimant.
func (s *Store) ClaimNext(ctx context.Context, track workitem.Track, specialty string, regions, modalities []string, claimant string) (*workitem.WorkItem, error) {
	if !track.Valid() {
		return nil, fmt.Errorf("%w: unknown track %q", workitem.ErrInvalidInput, track)
	}
	claimant = strings.TrimSpace(claimant)
	if claimant == "" {
		return nil, fmt.Errorf("%w: claimant is required", workitem.ErrInvalidInput)
	}

	query, args := claimCandidatesQuery(track, specialty, regions, modalities, s.claimAttempts)
	var claimedID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		claimedID = 0
		candidates, err := queryIDs(ctx, tx, query, args...)
		if err != nil {
			return fmt.Errorf("select claim candidates: %w", err)
		}
		if len(candidates) == 0 {
			return nil
		}
		timestamp := formatTime(s.now())
		for _, id := range candidates {
			res, err := tx.ExecContext(
				ctx,
				`UPDATE item_tracks
                SET locked_by = ?, locked_at = ?, last_heartbeat = ?, updated_at = ?
                WHERE item_id = ? AND track = ? AND locked_by IS NULL AND completed = 0
                  AND NOT EXISTS (
                    SELECT 1 FROM item_tracks held
                    WHERE held.track = ? AND held.locked_by = ? AND held.completed = 0
                  )`,
				claimant, timestamp, timestamp, timestamp,
				id, string(track),
				string(track), claimant,
			)
			if err != nil {
				return fmt.Errorf("claim item %d: %w", id, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("claim rows affected: %w", err)
			}
			if affected == 1 {
				claimedID = id
				return nil
			}
			held, err := activeClaimID(ctx, tx, track, claimant)
			if err != nil {
				return err
			}
			if held != 0 {
				claimedID = held
				return nil
			}
		}
		return workitem.ErrClaimConflict
	})
	if err != nil {
		return nil, err
	}
	if claimedID == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, claimedID)
}

func claimCandidatesQuery(track workitem.Track, specialty string, regions, modalities []string, limit int) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT w.id FROM work_items w
        JOIN item_tracks t ON t.item_id = w.id
        WHERE t.track = ? AND t.completed = 0 AND t.locked_by IS NULL AND w.specialty_key = ?`)
	args := []any{string(track), matchKey(specialty)}
	if keys := matchKeys(regions); len(keys) > 0 {
		b.WriteString(` AND w.body_region_key IN (` + makePlaceholders(len(keys)) + `)`)
		for _, key := range keys {
			args = append(args, key)
		}
	}
	if keys := matchKeys(modalities); len(keys) > 0 {
		b.WriteString(` AND w.modality_key IN (` + makePlaceholders(len(keys)) + `)`)
		for _, key := range keys {
			args = append(args, key)
		}
	}
	b.WriteString(` ORDER BY w.id LIMIT ?`)
	args = append(args, limit)
	return b.String(), args
}

func queryIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func activeClaimID(ctx context.Context, q querier, track workitem.Track, claimant string) (int64, error) {
	var id int64
	err := q.QueryRowContext(
		ctx,
		`SELECT item_id FROM item_tracks
        WHERE track = ? AND locked_by = ? AND completed = 0
        ORDER BY item_id LIMIT 1`,
		string(track), claimant,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find active claim: %w", err)
	}
	return id, nil
}

// FindActiveClaim returns the incomplete item claimant holds on track, or
// nil when there is none.
func (s *Store) FindActiveClaim(ctx context.Context, track workitem.Track, claimant string) (*workitem.WorkItem, error) {
	ctx = ensureContext(ctx)
	id, err := activeClaimID(ctx, s.db, track, strings.TrimSpace(claimant))
	if err != nil || id == 0 {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// ReleaseLock clears the lock on track. Releasing an unlocked track is a
// no-op.
func (s *Store) ReleaseLock(ctx context.Context, itemID int64, track workitem.Track) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE item_tracks
        SET locked_by = NULL, locked_at = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE item_id = ? AND track = ?`,
		formatTime(s.now()), itemID, string(track),
	)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return requireRow(res, itemID)
}

// SetProgress persists the expert keyword vector. A nil vector clears it.
// Vectors that do not fit the item's keyword list are rejected with
// workitem.ErrInvariantViolation.
func (s *Store) SetProgress(ctx context.Context, itemID int64, progress keywords.Progress) error {
	encoded, err := keywords.Encode(progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkProgressFits(ctx, tx, itemID, progress); err != nil {
			return err
		}
		res, err := tx.ExecContext(
			ctx,
			`UPDATE item_tracks SET progress = ?, updated_at = ? WHERE item_id = ? AND track = ?`,
			nullableBytes(encoded), formatTime(s.now()), itemID, string(workitem.TrackExpert),
		)
		if err != nil {
			return fmt.Errorf("set progress: %w", err)
		}
		return requireRow(res, itemID)
	})
}

// AdvanceProgress replaces the expert vector of an item still held by
// holder, provided the stored vector equals prev. The write refreshes the
// claim heartbeat and inserts records in the same transaction. A lost or
// completed claim yields workitem.ErrNotLockHolder; a vector changed by a
// concurrent writer yields workitem.ErrClaimConflict.
func (s *Store) AdvanceProgress(ctx context.Context, itemID int64, holder string, prev, next keywords.Progress, records []workitem.Record) ([]workitem.Record, error) {
	holder = strings.TrimSpace(holder)
	if holder == "" {
		return nil, fmt.Errorf("%w: lock holder is required", workitem.ErrInvalidInput)
	}
	prevEncoded, err := keywords.Encode(prev)
	if err != nil {
		return nil, fmt.Errorf("encode previous progress: %w", err)
	}
	nextEncoded, err := keywords.Encode(next)
	if err != nil {
		return nil, fmt.Errorf("encode progress: %w", err)
	}
	var stored []workitem.Record
	if len(records) > 0 {
		if stored, err = s.prepareRecords(records); err != nil {
			return nil, err
		}
	}

	ctx = ensureContext(ctx)
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkProgressFits(ctx, tx, itemID, next); err != nil {
			return err
		}
		timestamp := formatTime(s.now())
		res, err := tx.ExecContext(
			ctx,
			`UPDATE item_tracks SET progress = ?, last_heartbeat = ?, updated_at = ?
            WHERE item_id = ? AND track = ? AND locked_by = ? AND completed = 0 AND progress IS ?`,
			nullableBytes(nextEncoded), timestamp, timestamp,
			itemID, string(workitem.TrackExpert), holder, nullableBytes(prevEncoded),
		)
		if err != nil {
			return fmt.Errorf("advance progress: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return s.explainStaleProgress(ctx, tx, itemID, holder)
		}
		return s.insertRecords(ctx, tx, stored)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// explainStaleProgress classifies why a guarded progress write matched no row.
func (s *Store) explainStaleProgress(ctx context.Context, tx *sql.Tx, itemID int64, holder string) error {
	var (
		lockedBy  sql.NullString
		completed bool
	)
	err := tx.QueryRowContext(
		ctx,
		`SELECT locked_by, completed FROM item_tracks WHERE item_id = ? AND track = ?`,
		itemID, string(workitem.TrackExpert),
	).Scan(&lockedBy, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("item %d: %w", itemID, workitem.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load expert track: %w", err)
	}
	if completed || !lockedBy.Valid || lockedBy.String != holder {
		return fmt.Errorf("item %d expert track: %w", itemID, workitem.ErrNotLockHolder)
	}
	return fmt.Errorf("item %d expert progress changed concurrently: %w", itemID, workitem.ErrClaimConflict)
}

// checkProgressFits loads the item's keyword list inside tx and validates
// progress against it. A nil vector always fits.
func checkProgressFits(ctx context.Context, tx *sql.Tx, itemID int64, progress keywords.Progress) error {
	var keywordsJSON string
	err := tx.QueryRowContext(ctx, `SELECT keywords_json FROM work_items WHERE id = ?`, itemID).Scan(&keywordsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("item %d: %w", itemID, workitem.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load keywords: %w", err)
	}
	if progress == nil {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(keywordsJSON), &list); err != nil {
		return fmt.Errorf("decode keywords for item %d: %w", itemID, err)
	}
	return progress.Validate(len(list))
}

func nullableBytes(value []byte) any {
	if value == nil {
		return nil
	}
	return string(value)
}

// MarkCompleted flags track complete and clears its lock and progress in the
// same statement.
func (s *Store) MarkCompleted(ctx context.Context, itemID int64, track workitem.Track) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE item_tracks
        SET completed = 1, locked_by = NULL, locked_at = NULL, last_heartbeat = NULL,
            progress = NULL, updated_at = ?
        WHERE item_id = ? AND track = ?`,
		formatTime(s.now()), itemID, string(track),
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return requireRow(res, itemID)
}

// Heartbeat refreshes the lease of claimant on track.
func (s *Store) Heartbeat(ctx context.Context, itemID int64, track workitem.Track, claimant string) error {
	ctx = ensureContext(ctx)
	timestamp := formatTime(s.now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE item_tracks SET last_heartbeat = ?, updated_at = ?
        WHERE item_id = ? AND track = ? AND locked_by = ? AND completed = 0`,
		timestamp, timestamp, itemID, string(track), strings.TrimSpace(claimant),
	)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		return nil
	}
	exists, err := s.itemExists(ctx, s.db, itemID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("item %d: %w", itemID, workitem.ErrNotFound)
	}
	return fmt.Errorf("item %d %s: %w", itemID, track, workitem.ErrNotLockHolder)
}

// ReclaimedClaim describes a lock released by ReclaimExpired.
type ReclaimedClaim struct {
	ItemID   int64
	Track    workitem.Track
	LockedBy string
}

// ReclaimExpired releases every claim whose last heartbeat, or claim time
// when no heartbeat was recorded, is older than cutoff. Expert progress of a
// reclaimed claim is discarded with the lock.
func (s *Store) ReclaimExpired(ctx context.Context, cutoff time.Time) ([]ReclaimedClaim, error) {
	var reclaimed []ReclaimedClaim
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		reclaimed = reclaimed[:0]
		rows, err := tx.QueryContext(
			ctx,
			`SELECT item_id, track, locked_by FROM item_tracks
            WHERE locked_by IS NOT NULL AND completed = 0
              AND COALESCE(last_heartbeat, locked_at) < ?
            ORDER BY item_id, track`,
			formatTime(cutoff),
		)
		if err != nil {
			return fmt.Errorf("select expired claims: %w", err)
		}
		for rows.Next() {
			var claim ReclaimedClaim
			if err := rows.Scan(&claim.ItemID, &claim.Track, &claim.LockedBy); err != nil {
				rows.Close()
				return err
			}
			reclaimed = append(reclaimed, claim)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		timestamp := formatTime(s.now())
		for _, claim := range reclaimed {
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE item_tracks
                SET locked_by = NULL, locked_at = NULL, last_heartbeat = NULL, progress = NULL, updated_at = ?
                WHERE item_id = ? AND track = ? AND locked_by = ?`,
				timestamp, claim.ItemID, string(claim.Track), claim.LockedBy,
			); err != nil {
				return fmt.Errorf("reclaim item %d: %w", claim.ItemID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reclaimed, nil
}

func requireRow(res sql.Result, itemID int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d: %w", itemID, workitem.ErrNotFound)
	}
	return nil
}
