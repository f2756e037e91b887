package models

import "time"

// StatusLogEntry is an append-only record of one applied status change.
type StatusLogEntry struct {
	ID                int64         `db:"id" json:"id"`
	ProjectID         int64         `db:"project_id" json:"project_id"`
	OldStatus         ProjectStatus `db:"old_status" json:"old_status"`
	NewStatus         ProjectStatus `db:"new_status" json:"new_status"`
	ChangedAt         time.Time     `db:"changed_at" json:"changed_at"`
	ChangedBy         *int64        `db:"changed_by" json:"changed_by"`
	ChangedByUsername *string       `db:"changed_by_username" json:"changed_by_username,omitempty"`
	Comment           string        `db:"comment" json:"comment"`
}

// ProjectCreatedComment marks the log entry written when a project is created.
const ProjectCreatedComment = "Project created"
