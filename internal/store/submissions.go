package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/skladnost/internal/model"
)

// ErrComplianceClosed is returned when filing against a closed compliance.
var ErrComplianceClosed = errors.New("compliance is closed")

// CreateSubmission files a new submission under an open compliance.
func CreateSubmission(ctx context.Context, db *sql.DB, complianceID int64, description string, submittedBy *int64) (*model.Submission, error) {
	var status string
	err := db.QueryRowContext(ctx,
		`SELECT status FROM compliances WHERE id = ?`, complianceID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("compliance %d not found", complianceID)
	}
	if err != nil {
		return nil, fmt.Errorf("checking compliance: %w", err)
	}
	if status == model.ComplianceClosed {
		return nil, ErrComplianceClosed
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO submissions (compliance_id, description, submitted_by) VALUES (?, ?, ?)`,
		complianceID, description, submittedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating submission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting submission id: %w", err)
	}

	return GetSubmission(ctx, db, complianceID, id)
}

// GetSubmission returns a submission of a compliance together with its
// elements, or nil if it does not exist under that compliance.
func GetSubmission(ctx context.Context, db *sql.DB, complianceID, id int64) (*model.Submission, error) {
	s := &model.Submission{}
	var submittedBy sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT s.id, s.compliance_id, s.description, s.submitted_by, s.submitted_at, u.username
		 FROM submissions s
		 LEFT JOIN users u ON u.id = s.submitted_by
		 WHERE s.id = ? AND s.compliance_id = ?`, id, complianceID,
	).Scan(&s.ID, &s.ComplianceID, &s.Description, &s.SubmittedBy, &s.SubmittedAt, &submittedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting submission: %w", err)
	}
	s.SubmittedByName = submittedBy.String

	items, err := ListElements(ctx, db, s.ID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Element{}
	}
	s.Items = items
	s.ItemCount = len(items)
	return s, nil
}

// ListSubmissions returns the submissions of a compliance without their
// elements, newest first.
func ListSubmissions(ctx context.Context, db *sql.DB, complianceID int64) ([]model.Submission, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT s.id, s.compliance_id, s.description, s.submitted_by, s.submitted_at, u.username,
		        (SELECT COUNT(*) FROM elements e WHERE e.submission_id = s.id)
		 FROM submissions s
		 LEFT JOIN users u ON u.id = s.submitted_by
		 WHERE s.compliance_id = ?
		 ORDER BY s.submitted_at DESC, s.id DESC`, complianceID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var s model.Submission
		var submittedBy sql.NullString
		if err := rows.Scan(&s.ID, &s.ComplianceID, &s.Description, &s.SubmittedBy, &s.SubmittedAt, &submittedBy, &s.ItemCount); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		s.SubmittedByName = submittedBy.String
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
