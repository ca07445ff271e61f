package model

import "time"

// Submission is one filing under a compliance inspection.
type Submission struct {
	ID           int64     `json:"id"`
	ComplianceID int64     `json:"compliance_id"`
	Description  string    `json:"description"`
	SubmittedBy  *int64    `json:"submitted_by,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Items        []Element `json:"items"`

	// Joined fields (not always populated).
	SubmittedByName string `json:"submitted_by_name,omitempty"`
	ItemCount       int    `json:"item_count,omitempty"`
}

// Element is one asset attached to a submission.
type Element struct {
	ID           int64     `json:"id"`
	SubmissionID int64     `json:"submission_id"`
	Type         string    `json:"type"`
	Caption      string    `json:"caption,omitempty"`
	Geo          *Geo      `json:"geo,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	InternalExt  string    `json:"internal_ext,omitempty"`
	ImageMime    string    `json:"image_mime,omitempty"`
	ImageSize    int64     `json:"image_size,omitempty"`
	Text         string    `json:"text,omitempty"`
}

// Geo is a position in UTM coordinates.
type Geo struct {
	Zone     string  `json:"zone"`
	Easting  float64 `json:"easting"`
	Northing float64 `json:"northing"`
}

// Element types.
const (
	ElementPhoto = "photo"
	ElementVideo = "video"
	ElementVoice = "voice"
	ElementText  = "text"
)

// ValidElementType reports whether typ is a known element type.
func ValidElementType(typ string) bool {
	switch typ {
	case ElementPhoto, ElementVideo, ElementVoice, ElementText:
		return true
	}
	return false
}
