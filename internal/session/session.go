// Package session describes who is logged in to the backend.
package session

import (
	"context"
	"errors"
)

// ErrNoSession is returned when nobody is logged in.
var ErrNoSession = errors.New("not logged in")

// User identifies the logged-in user.
type User struct {
	ID    string
	Email string
}

// Session supplies the current user. Implementations return ErrNoSession
// (possibly wrapped) when there is none.
type Session interface {
	CurrentUser(ctx context.Context) (User, error)
}
