package task

import "time"

// Row is a task as stored in the remote table. Column names are snake_case.
// ID and CreatedAt are assigned by the remote and omitted on write;
// CompletedAt is always written so that clearing it reaches the remote.
type Row struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Assignee    string     `json:"assignee"`
	DueDate     string     `json:"due_date"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at"`
}

// FromRow translates a remote row into a Task.
func FromRow(r Row) Task {
	t := Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      Status(r.Status),
		Priority:    Priority(r.Priority),
		Assignee:    r.Assignee,
		DueDate:     r.DueDate,
	}
	if r.CreatedAt != nil {
		t.CreatedAt = *r.CreatedAt
	}
	if r.CompletedAt != nil && !r.CompletedAt.IsZero() {
		completed := *r.CompletedAt
		t.CompletedAt = &completed
	}
	return t
}

// ToRow translates a draft into the remote row shape used for writes.
func ToRow(d Draft) Row {
	r := Row{
		Title:       d.Title,
		Description: d.Description,
		Status:      string(d.Status),
		Priority:    string(d.Priority),
		Assignee:    d.Assignee,
		DueDate:     d.DueDate,
	}
	if d.CompletedAt != nil {
		completed := *d.CompletedAt
		r.CompletedAt = &completed
	}
	return r
}
