package workitem

import (
	"fmt"
	"strings"
	"time"

	"medannotate/internal/keywords"
)

// Track identifies one of the two independent annotation workflows.
type Track string

const (
	TrackExpert  Track = "expert"
	TrackTrainee Track = "trainee"
)

// Tracks lists every track in a stable order.
var Tracks = []Track{TrackExpert, TrackTrainee}

// ParseTrack maps user input onto a Track. The original role names
// ("professional", "student") are accepted as aliases.
func ParseTrack(value string) (Track, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "expert", "professional":
		return TrackExpert, nil
	case "trainee", "student", "medical student":
		return TrackTrainee, nil
	default:
		return "", fmt.Errorf("%w: unknown track %q", ErrInvalidInput, value)
	}
}

// Valid reports whether t is a known track.
func (t Track) Valid() bool {
	return t == TrackExpert || t == TrackTrainee
}

// HasProgress reports whether the track persists partial keyword progress.
// Trainee sessions submit atomically and never carry partial state.
func (t Track) HasProgress() bool {
	return t == TrackExpert
}

// TrackState is the mutable lock and completion state of an item for one track.
type TrackState struct {
	Completed     bool              `json:"completed"`
	LockedBy      string            `json:"locked_by,omitempty"`
	LockedAt      *time.Time        `json:"locked_at,omitempty"`
	LastHeartbeat *time.Time        `json:"last_heartbeat,omitempty"`
	Progress      keywords.Progress `json:"progress,omitempty"`
}

// Locked reports whether an annotator currently holds the track.
func (s *TrackState) Locked() bool {
	return s != nil && s.LockedBy != ""
}

// WorkItem is an annotation subject plus its per-track annotation state.
type WorkItem struct {
	ID               int64    `json:"id"`
	Specialty        string   `json:"specialty"`
	BodyRegion       string   `json:"body_region,omitempty"`
	Modality         string   `json:"modality,omitempty"`
	ImageURL         string   `json:"image_url,omitempty"`
	ImageDescription string   `json:"image_description,omitempty"`
	Sex              string   `json:"sex,omitempty"`
	Age              string   `json:"age,omitempty"`
	SkinTone         string   `json:"skin_tone,omitempty"`
	Diagnosis        string   `json:"diagnosis,omitempty"`
	TreatmentName    string   `json:"treatment_name,omitempty"`
	Keywords         []string `json:"keywords"`

	Tracks    map[Track]*TrackState `json:"tracks"`
	CreatedAt time.Time             `json:"created_at"`
}

// Track returns the state for t, never nil.
func (w *WorkItem) Track(t Track) *TrackState {
	if w == nil {
		return &TrackState{}
	}
	if w.Tracks == nil {
		w.Tracks = make(map[Track]*TrackState, len(Tracks))
	}
	state, ok := w.Tracks[t]
	if !ok || state == nil {
		state = &TrackState{}
		w.Tracks[t] = state
	}
	return state
}

// Annotator describes the signed-in user requesting work. Empty filter sets
// mean no filtering on that attribute.
type Annotator struct {
	ID                string   `json:"id"`
	Track             Track    `json:"track"`
	Specialty         string   `json:"specialty"`
	AllowedRegions    []string `json:"allowed_regions,omitempty"`
	AllowedModalities []string `json:"allowed_modalities,omitempty"`
}

// Validate checks the descriptor has what the scheduler needs.
func (a Annotator) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: annotator id is required", ErrInvalidInput)
	}
	if !a.Track.Valid() {
		return fmt.Errorf("%w: unknown track %q", ErrInvalidInput, a.Track)
	}
	if strings.TrimSpace(a.Specialty) == "" {
		return fmt.Errorf("%w: annotator specialty is required", ErrInvalidInput)
	}
	return nil
}
