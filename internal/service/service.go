// Package service defines the backend-agnostic interface to the remote task table.
package service

import (
	"context"

	"taskboard/internal/session"
	"taskboard/internal/task"
)

// Service defines the interface for remote task table operations.
// All backend calls go through this interface.
// Commands and the record store never import a backend SDK directly.
type Service interface {
	session.Session

	// ListTasks returns every row, newest created_at first.
	ListTasks(ctx context.Context) ([]task.Row, error)

	// InsertTask inserts a row and returns it with the server-assigned
	// id and created_at.
	InsertTask(ctx context.Context, row task.Row) (task.Row, error)

	// UpdateTask replaces the mutable fields of the row with the given id
	// and returns the updated row.
	UpdateTask(ctx context.Context, id string, row task.Row) (task.Row, error)

	// DeleteTask deletes the row with the given id.
	DeleteTask(ctx context.Context, id string) error

	// Subscribe delivers an Event for every insert, update or delete on the
	// table until the returned Subscription is closed or ctx is done.
	// fn may be called from another goroutine.
	Subscribe(ctx context.Context, fn func(Event)) (Subscription, error)
}
