package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: lookup indexes for the submission detail page.
	`CREATE INDEX IF NOT EXISTS idx_submissions_compliance ON submissions(compliance_id)`,
	`CREATE INDEX IF NOT EXISTS idx_elements_submission ON elements(submission_id)`,
	// Migration 2: compliance listing per project.
	`CREATE INDEX IF NOT EXISTS idx_compliances_project ON compliances(project_id)`,
}

// Migrate ensures the schema and then runs the migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
