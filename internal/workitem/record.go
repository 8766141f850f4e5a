package workitem

import (
	"encoding/json"
	"time"
)

// Record is one stored annotation: an expert keyword action or one entry of
// a trainee submission. Payload carries client geometry verbatim.
type Record struct {
	ID           string          `json:"id"`
	ItemID       int64           `json:"item_id"`
	Track        Track           `json:"track"`
	AnnotatorID  string          `json:"annotator_id"`
	Keyword      string          `json:"keyword,omitempty"`
	KeywordIndex *int            `json:"keyword_index,omitempty"`
	Action       string          `json:"action,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Comment      string          `json:"comment,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
