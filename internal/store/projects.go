package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/skladnost/internal/model"
)

// CreateProject creates a new project.
func CreateProject(ctx context.Context, db *sql.DB, name, description string) (*model.Project, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO projects (name, description) VALUES (?, ?)`,
		name, description,
	)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting project id: %w", err)
	}

	return GetProject(ctx, db, id)
}

// GetProject returns a project by ID, or nil if it does not exist.
func GetProject(ctx context.Context, db *sql.DB, id int64) (*model.Project, error) {
	p := &model.Project{}
	var description sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, deleted_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &description, &p.CreatedAt, &p.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}
	p.Description = description.String
	return p, nil
}

// ListProjects returns all non-deleted projects ordered by name.
func ListProjects(ctx context.Context, db *sql.DB) ([]model.Project, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, description, created_at, deleted_at
		 FROM projects WHERE deleted_at IS NULL ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &description, &p.CreatedAt, &p.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		p.Description = description.String
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
