// Package task defines the task record and its translation to and from the
// remote table's row shape.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for due dates.
const DateLayout = "2006-01-02"

// Status is the workflow state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusCompleted, StatusOverdue}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities: high=3, medium=2, low=1. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ErrInvalid is returned by the parse and validation helpers.
var ErrInvalid = errors.New("invalid task")

// ParseStatus parses a status name (case-insensitive, trimmed).
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Statuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status: %s", ErrInvalid, s)
}

// ParsePriority parses a priority name (case-insensitive, trimmed).
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if p.Rank() == 0 {
		return "", fmt.Errorf("%w: unknown priority: %s", ErrInvalid, s)
	}
	return p, nil
}

// Task is a single task record as held in memory.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      Status
	Priority    Priority
	Assignee    string
	DueDate     string // YYYY-MM-DD
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Draft holds every mutable field of a task. It is what gets sent on create
// and, in full, on update.
type Draft struct {
	Title       string
	Description string
	Status      Status
	Priority    Priority
	Assignee    string
	DueDate     string
	CompletedAt *time.Time
}

// Draft returns the mutable fields of t.
func (t Task) Draft() Draft {
	return Draft{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Assignee:    t.Assignee,
		DueDate:     t.DueDate,
		CompletedAt: t.CompletedAt,
	}
}

// Due parses the due date.
func (t Task) Due() (time.Time, error) {
	return time.Parse(DateLayout, t.DueDate)
}

// Validate checks that the draft describes a well-formed task.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalid)
	}
	if strings.TrimSpace(d.Description) == "" {
		return fmt.Errorf("%w: description required", ErrInvalid)
	}
	if _, err := ParseStatus(string(d.Status)); err != nil {
		return err
	}
	if _, err := ParsePriority(string(d.Priority)); err != nil {
		return err
	}
	if _, err := time.Parse(DateLayout, d.DueDate); err != nil {
		return fmt.Errorf("%w: due date must be YYYY-MM-DD: %s", ErrInvalid, d.DueDate)
	}
	return nil
}
