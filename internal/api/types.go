package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// WorkItem describes a work item in a transport-friendly format.
type WorkItem struct {
	ID               int64                `json:"id"`
	Specialty        string               `json:"specialty"`
	BodyRegion       string               `json:"bodyRegion,omitempty"`
	Modality         string               `json:"modality,omitempty"`
	ImageURL         string               `json:"imageUrl,omitempty"`
	ImageDescription string               `json:"imageDescription,omitempty"`
	Sex              string               `json:"sex,omitempty"`
	Age              string               `json:"age,omitempty"`
	SkinTone         string               `json:"skinTone,omitempty"`
	Diagnosis        string               `json:"diagnosis,omitempty"`
	TreatmentName    string               `json:"treatmentName,omitempty"`
	Keywords         []string             `json:"keywords"`
	Tracks           map[string]TrackView `json:"tracks"`
	CreatedAt        string               `json:"createdAt,omitempty"`
}

// TrackView is the per-track state of a work item.
type TrackView struct {
	Completed     bool          `json:"completed"`
	LockedBy      string        `json:"lockedBy,omitempty"`
	LockedAt      string        `json:"lockedAt,omitempty"`
	LastHeartbeat string        `json:"lastHeartbeat,omitempty"`
	Progress      *ProgressView `json:"progress,omitempty"`
}

// ProgressView renders a keyword progress vector.
type ProgressView struct {
	Vector          []int    `json:"vector"`
	States          []string `json:"states"`
	Cursor          int      `json:"cursor"`
	ReadyToFinalize bool     `json:"readyToFinalize"`
}

// Annotator is the work request body: the signed-in annotator descriptor.
type Annotator struct {
	ID                string   `json:"id"`
	Track             string   `json:"track"`
	Specialty         string   `json:"specialty"`
	AllowedRegions    []string `json:"allowedRegions,omitempty"`
	AllowedModalities []string `json:"allowedModalities,omitempty"`
}

// WorkResponse answers a work request. Item is nil when no work is available.
type WorkResponse struct {
	Item      *WorkItem `json:"item"`
	Counter   string    `json:"counter"`
	Available bool      `json:"available"`
}

// ItemResponse wraps a single work item.
type ItemResponse struct {
	Item WorkItem `json:"item"`
}

// SessionRequest ends an annotation session. Progress is the integer vector;
// it is ignored for the trainee track.
type SessionRequest struct {
	Track    string `json:"track"`
	Started  bool   `json:"started"`
	Progress []int  `json:"progress,omitempty"`
}

// TrackRequest names the track an item operation applies to.
type TrackRequest struct {
	Track string `json:"track"`
}

// HeartbeatRequest extends a claim lease.
type HeartbeatRequest struct {
	Track       string `json:"track"`
	AnnotatorID string `json:"annotatorId"`
}

// KeywordActionRequest optionally carries the annotation drawn for the
// cursor keyword.
type KeywordActionRequest struct {
	AnnotatorID string          `json:"annotatorId,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Comment     string          `json:"comment,omitempty"`
}

// KeywordActionResponse returns the updated progress.
type KeywordActionResponse struct {
	ItemID   int64        `json:"itemId"`
	Progress ProgressView `json:"progress"`
}

// RecordInput is one annotation of a trainee submission.
type RecordInput struct {
	Keyword string          `json:"keyword,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Comment string          `json:"comment,omitempty"`
}

// SubmissionRequest is a trainee's complete set of annotations.
type SubmissionRequest struct {
	AnnotatorID string        `json:"annotatorId"`
	Records     []RecordInput `json:"records"`
}

// Record describes a stored annotation.
type Record struct {
	ID           string          `json:"id"`
	ItemID       int64           `json:"itemId"`
	Track        string          `json:"track"`
	AnnotatorID  string          `json:"annotatorId"`
	Keyword      string          `json:"keyword,omitempty"`
	KeywordIndex *int            `json:"keywordIndex,omitempty"`
	Action       string          `json:"action,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Comment      string          `json:"comment,omitempty"`
	CreatedAt    string          `json:"createdAt,omitempty"`
}

// SubmissionResponse returns the stored trainee records and the new counter.
type SubmissionResponse struct {
	Records []Record `json:"records"`
	Counter string   `json:"counter"`
}

// CounterResponse carries a track counter after a state change.
type CounterResponse struct {
	Track   string `json:"track"`
	Counter string `json:"counter"`
}

// TrackProgress is the completion count of one track.
type TrackProgress struct {
	Track     string `json:"track"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Counter   string `json:"counter"`
}

// ProgressResponse lists progress for every track.
type ProgressResponse struct {
	Tracks []TrackProgress `json:"tracks"`
}
