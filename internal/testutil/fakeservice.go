// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/service"
	"taskboard/internal/session"
	"taskboard/internal/task"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// BaseTime is the created_at assigned to the first inserted row; each
// further insert is one minute later.
var BaseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu       sync.RWMutex
	rows     []task.Row
	inserted int
	subs     map[int]func(service.Event)
	nextSub  int

	// User is returned by CurrentUser. A zero User means nobody is logged in.
	User session.User

	// ListCalls counts ListTasks invocations. Read it with ListCount.
	ListCalls int

	// Error injection for testing
	ListTasksErr   error
	InsertTaskErr  error
	UpdateTaskErr  error
	DeleteTaskErr  error
	SubscribeErr   error
	CurrentUserErr error
}

// NewFakeService creates a FakeService with a logged-in user and no rows.
func NewFakeService() *FakeService {
	return &FakeService{
		subs: make(map[int]func(service.Event)),
		User: session.User{ID: "user-1", Email: "jean.dupont@example.com"},
	}
}

// AddRow stores a row as-is. Rows without created_at get the next insert time.
func (f *FakeService) AddRow(row task.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row.CreatedAt == nil {
		created := f.nextCreatedLocked()
		row.CreatedAt = &created
	}
	f.rows = append(f.rows, row)
}

// Row returns the stored row with the given id.
func (f *FakeService) Row(id string) (task.Row, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, r := range f.rows {
		if r.ID == id {
			return r, true
		}
	}
	return task.Row{}, false
}

// SetError sets an injected error under the lock, for use while other
// goroutines are calling the service.
func (f *FakeService) SetError(target *error, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*target = err
}

// Emit delivers ev to every open subscription.
func (f *FakeService) Emit(ev service.Event) {
	f.mu.RLock()
	fns := make([]func(service.Event), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Subscribers returns the number of open subscriptions.
func (f *FakeService) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// ListCount returns how many times ListTasks has been called.
func (f *FakeService) ListCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ListCalls
}

func (f *FakeService) nextCreatedLocked() time.Time {
	t := BaseTime.Add(time.Duration(f.inserted) * time.Minute)
	f.inserted++
	return t
}

// CurrentUser implements service.Service.
func (f *FakeService) CurrentUser(ctx context.Context) (session.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.CurrentUserErr != nil {
		return session.User{}, f.CurrentUserErr
	}
	if f.User.ID == "" {
		return session.User{}, session.ErrNoSession
	}
	return f.User, nil
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context) ([]task.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}

	result := make([]task.Row, len(f.rows))
	copy(result, f.rows)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(*result[j].CreatedAt)
	})
	return result, nil
}

// InsertTask implements service.Service.
func (f *FakeService) InsertTask(ctx context.Context, row task.Row) (task.Row, error) {
	f.mu.Lock()
	if f.InsertTaskErr != nil {
		err := f.InsertTaskErr
		f.mu.Unlock()
		return task.Row{}, err
	}
	row.ID = uuid.NewString()
	created := f.nextCreatedLocked()
	row.CreatedAt = &created
	f.rows = append(f.rows, row)
	f.mu.Unlock()

	return row, nil
}

// UpdateTask implements service.Service.
func (f *FakeService) UpdateTask(ctx context.Context, id string, row task.Row) (task.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateTaskErr != nil {
		return task.Row{}, f.UpdateTaskErr
	}

	for i, r := range f.rows {
		if r.ID == id {
			row.ID = r.ID
			row.CreatedAt = r.CreatedAt
			f.rows[i] = row
			return row, nil
		}
	}
	return task.Row{}, ErrNotFound
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}

	for i, r := range f.rows {
		if r.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Subscribe implements service.Service. Events are only delivered through Emit.
func (f *FakeService) Subscribe(ctx context.Context, fn func(service.Event)) (service.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}

	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn

	var once sync.Once
	return service.SubscriptionFunc(func() error {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
		return nil
	}), nil
}
