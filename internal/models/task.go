package models

import "time"

// Task is a checklist item inside a project.
type Task struct {
	ID          int64      `db:"id" json:"id"`
	ProjectID   int64      `db:"project_id" json:"project_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	IsCompleted bool       `db:"is_completed" json:"is_completed"`
	SortOrder   int        `db:"sort_order" json:"order"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at"`
}

// Normalize keeps CompletedAt in step with IsCompleted without moving an
// existing completion time.
func (t *Task) Normalize(now time.Time) {
	if !t.IsCompleted {
		t.CompletedAt = nil
		return
	}
	if t.CompletedAt == nil {
		ts := now
		t.CompletedAt = &ts
	}
}

// Toggle flips completion and re-applies the save rules.
func (t *Task) Toggle(now time.Time) {
	t.IsCompleted = !t.IsCompleted
	t.Normalize(now)
}
