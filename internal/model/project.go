package model

import "time"

// Project groups the compliance inspections of one site or permit.
type Project struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Compliance is an inspection under a project. Inspectors file submissions
// against it.
type Compliance struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	// Joined fields (not always populated).
	ProjectName     string `json:"project_name,omitempty"`
	SubmissionCount int    `json:"submission_count,omitempty"`
}

// Compliance statuses.
const (
	ComplianceOpen   = "open"
	ComplianceClosed = "closed"
)
