package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/skladnost/internal/model"
)

// CreateCompliance opens a new compliance inspection under a project.
func CreateCompliance(ctx context.Context, db *sql.DB, projectID int64, name string) (*model.Compliance, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO compliances (project_id, name) VALUES (?, ?)`,
		projectID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("creating compliance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting compliance id: %w", err)
	}

	return GetCompliance(ctx, db, id)
}

// GetCompliance returns a compliance by ID with its project name, or nil if it
// does not exist.
func GetCompliance(ctx context.Context, db *sql.DB, id int64) (*model.Compliance, error) {
	c := &model.Compliance{}
	err := db.QueryRowContext(ctx,
		`SELECT c.id, c.project_id, c.name, c.status, c.created_at, p.name,
		        (SELECT COUNT(*) FROM submissions s WHERE s.compliance_id = c.id)
		 FROM compliances c
		 JOIN projects p ON p.id = c.project_id
		 WHERE c.id = ?`, id,
	).Scan(&c.ID, &c.ProjectID, &c.Name, &c.Status, &c.CreatedAt, &c.ProjectName, &c.SubmissionCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting compliance: %w", err)
	}
	return c, nil
}

// ListCompliances returns the compliances of a project, newest first.
func ListCompliances(ctx context.Context, db *sql.DB, projectID int64) ([]model.Compliance, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT c.id, c.project_id, c.name, c.status, c.created_at, p.name,
		        (SELECT COUNT(*) FROM submissions s WHERE s.compliance_id = c.id)
		 FROM compliances c
		 JOIN projects p ON p.id = c.project_id
		 WHERE c.project_id = ?
		 ORDER BY c.created_at DESC, c.id DESC`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing compliances: %w", err)
	}
	defer rows.Close()

	var compliances []model.Compliance
	for rows.Next() {
		var c model.Compliance
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Status, &c.CreatedAt, &c.ProjectName, &c.SubmissionCount); err != nil {
			return nil, fmt.Errorf("scanning compliance: %w", err)
		}
		compliances = append(compliances, c)
	}
	return compliances, rows.Err()
}

// SetComplianceStatus opens or closes a compliance.
func SetComplianceStatus(ctx context.Context, db *sql.DB, id int64, status string) error {
	if status != model.ComplianceOpen && status != model.ComplianceClosed {
		return fmt.Errorf("invalid compliance status %q", status)
	}
	_, err := db.ExecContext(ctx,
		`UPDATE compliances SET status = ? WHERE id = ?`, status, id,
	)
	if err != nil {
		return fmt.Errorf("updating compliance status: %w", err)
	}
	return nil
}
