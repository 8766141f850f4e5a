package directory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"medannotate/internal/keywords"
	"medannotate/internal/workitem"
)

// timeLayout is fixed width so stored timestamps compare lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const itemColumns = "w.id, w.specialty, w.body_region, w.modality, w.image_url, w.image_description, w.sex, w.age, w.skin_tone, w.diagnosis, w.treatment_name, w.keywords_json, w.created_at"

const trackColumns = "t.track, t.completed, t.locked_by, t.locked_at, t.last_heartbeat, t.progress"

type rowScanner interface {
	Scan(dest ...any) error
}

// scanItemTrack reads one joined work_items/item_tracks row.
func scanItemTrack(scanner rowScanner) (*workitem.WorkItem, workitem.Track, *workitem.TrackState, error) {
	var (
		id               int64
		specialty        string
		bodyRegion       sql.NullString
		modality         sql.NullString
		imageURL         sql.NullString
		imageDescription sql.NullString
		sex              sql.NullString
		age              sql.NullString
		skinTone         sql.NullString
		diagnosis        sql.NullString
		treatmentName    sql.NullString
		keywordsJSON     string
		createdRaw       sql.NullString
		track            string
		completed        int64
		lockedBy         sql.NullString
		lockedAtRaw      sql.NullString
		heartbeatRaw     sql.NullString
		progressRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&specialty,
		&bodyRegion,
		&modality,
		&imageURL,
		&imageDescription,
		&sex,
		&age,
		&skinTone,
		&diagnosis,
		&treatmentName,
		&keywordsJSON,
		&createdRaw,
		&track,
		&completed,
		&lockedBy,
		&lockedAtRaw,
		&heartbeatRaw,
		&progressRaw,
	); err != nil {
		return nil, "", nil, err
	}

	item := &workitem.WorkItem{
		ID:               id,
		Specialty:        specialty,
		BodyRegion:       bodyRegion.String,
		Modality:         modality.String,
		ImageURL:         imageURL.String,
		ImageDescription: imageDescription.String,
		Sex:              sex.String,
		Age:              age.String,
		SkinTone:         skinTone.String,
		Diagnosis:        diagnosis.String,
		TreatmentName:    treatmentName.String,
	}
	if err := json.Unmarshal([]byte(keywordsJSON), &item.Keywords); err != nil {
		return nil, "", nil, fmt.Errorf("decode keywords for item %d: %w", id, err)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}

	state := &workitem.TrackState{
		Completed: completed != 0,
		LockedBy:  lockedBy.String,
		LockedAt:  parseNullableTime(lockedAtRaw),
	}
	state.LastHeartbeat = parseNullableTime(heartbeatRaw)
	if progressRaw.Valid {
		progress, err := keywords.Decode([]byte(progressRaw.String))
		if err != nil {
			return nil, "", nil, fmt.Errorf("decode progress for item %d: %w", id, err)
		}
		state.Progress = progress
	}
	return item, workitem.Track(track), state, nil
}

// matchKey folds a scheduling attribute for case-insensitive comparison.
// A Caser is stateful, so each call builds its own.
func matchKey(value string) string {
	return cases.Fold().String(strings.TrimSpace(value))
}

func matchKeys(values []string) []string {
	keys := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		key := matchKey(value)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
