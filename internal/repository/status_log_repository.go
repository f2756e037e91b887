package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-project-tracker/internal/models"
)

// StatusLogRepository appends and reads the project status history.
// Entries are never updated or deleted outside of cascades.
type StatusLogRepository struct {
	db *sqlx.DB
}

func NewStatusLogRepository(db *sqlx.DB) *StatusLogRepository {
	return &StatusLogRepository{db: db}
}

func (r *StatusLogRepository) Append(ctx context.Context, exec sqlx.ExtContext, entry *models.StatusLogEntry) error {
	const query = `INSERT INTO project_status_logs (project_id, old_status, new_status, changed_at, changed_by, comment)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := sqlx.GetContext(ctx, orDefault(exec, r.db), &entry.ID, query,
		entry.ProjectID, entry.OldStatus, entry.NewStatus, entry.ChangedAt, entry.ChangedBy, entry.Comment); err != nil {
		return fmt.Errorf("append status log: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries first.
func (r *StatusLogRepository) ListRecent(ctx context.Context, projectID int64, limit int) ([]models.StatusLogEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT l.id, l.project_id, l.old_status, l.new_status, l.changed_at, l.changed_by, a.username AS changed_by_username, l.comment
FROM project_status_logs l LEFT JOIN accounts a ON a.id = l.changed_by
WHERE l.project_id = $1 ORDER BY l.changed_at DESC, l.id DESC LIMIT $2`
	var entries []models.StatusLogEntry
	if err := r.db.SelectContext(ctx, &entries, query, projectID, limit); err != nil {
		return nil, fmt.Errorf("list status logs: %w", err)
	}
	return entries, nil
}
