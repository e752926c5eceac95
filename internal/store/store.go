// Package store holds the session's authoritative in-memory task list and
// keeps it in step with the remote task table.
//
// Every mutation is applied locally only after the remote confirms it:
// create and update install the row echoed by the remote, delete removes
// the task once the remote reports success. Any change notification from
// the remote, whoever caused it, triggers a full reload.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"taskboard/internal/service"
	"taskboard/internal/session"
	"taskboard/internal/task"
)

// Snapshot is a copy of the store state.
type Snapshot struct {
	Tasks   []task.Task
	Loading bool
	Error   string // empty when there is no error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for lifecycle and failure messages.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecordGuard rejects an update or delete of a task while another
// mutation of the same task is pending.
func WithRecordGuard() Option {
	return func(s *Store) { s.guard = true }
}

// Store is the record store. It is safe for concurrent use.
type Store struct {
	svc    service.Service
	logger *slog.Logger
	guard  bool

	mu       sync.RWMutex
	tasks    []task.Task
	fetching int
	errMsg   string
	pending  map[string]Op

	watchMu   sync.Mutex
	watchers  map[int]func(Snapshot)
	nextWatch int

	subMu  sync.Mutex
	sub    service.Subscription
	cancel context.CancelFunc
	closed bool
	gen    atomic.Uint64
}

// New creates a store backed by svc.
func New(svc service.Service, opts ...Option) *Store {
	s := &Store{
		svc:      svc,
		logger:   slog.New(slog.DiscardHandler),
		pending:  make(map[string]Op),
		watchers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Tasks:   slices.Clone(s.tasks),
		Loading: s.fetching > 0,
		Error:   s.errMsg,
	}
}

// Tasks returns a copy of the task list in store order (newest first).
func (s *Store) Tasks() []task.Task {
	return s.Snapshot().Tasks
}

// Watch registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that caused the change. The returned function
// unregisters it.
func (s *Store) Watch(fn func(Snapshot)) (cancel func()) {
	s.watchMu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	s.watchMu.Unlock()

	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

func (s *Store) notify() {
	s.watchMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.Unlock()

	if len(fns) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}

// FetchAll replaces the task list with the remote's contents. On failure the
// list is left as it was and the error is recorded, unless the fetch was
// abandoned because ctx ended.
func (s *Store) FetchAll(ctx context.Context) error {
	s.mu.Lock()
	s.fetching++
	s.mu.Unlock()
	s.notify()

	rows, err := s.svc.ListTasks(ctx)

	s.mu.Lock()
	s.fetching--
	if err != nil {
		s.mu.Unlock()
		if ctx.Err() != nil {
			s.notify()
			return &OpError{Op: OpFetch, Err: err}
		}
		return s.fail(OpFetch, err)
	}
	tasks := make([]task.Task, len(rows))
	for i, r := range rows {
		tasks[i] = task.FromRow(r)
	}
	s.tasks = tasks
	s.errMsg = ""
	s.mu.Unlock()

	s.logger.Debug("tasks fetched", "count", len(tasks))
	s.notify()
	return nil
}

// Create inserts a task and puts the remote's copy at the head of the list.
func (s *Store) Create(ctx context.Context, d task.Draft) (task.Task, error) {
	row, err := s.svc.InsertTask(ctx, task.ToRow(d))
	if err != nil {
		return task.Task{}, s.fail(OpCreate, err)
	}
	created := task.FromRow(row)

	s.mu.Lock()
	// A reload triggered by the insert notification may have got here first.
	s.tasks = slices.DeleteFunc(s.tasks, func(t task.Task) bool { return t.ID == created.ID })
	s.tasks = append([]task.Task{created}, s.tasks...)
	s.mu.Unlock()

	s.logger.Debug("task created", "id", created.ID)
	s.notify()
	return created, nil
}

// Update replaces every mutable field of the task with the given id.
// Fields left zero in d are cleared on the remote. The remote's copy
// replaces the local one in place.
func (s *Store) Update(ctx context.Context, id string, d task.Draft) (task.Task, error) {
	if err := s.begin(id, OpUpdate); err != nil {
		return task.Task{}, &OpError{Op: OpUpdate, Err: err}
	}
	defer s.end(id)

	row, err := s.svc.UpdateTask(ctx, id, task.ToRow(d))
	if err != nil {
		return task.Task{}, s.fail(OpUpdate, err)
	}
	updated := task.FromRow(row)

	s.mu.Lock()
	if i := slices.IndexFunc(s.tasks, func(t task.Task) bool { return t.ID == id }); i >= 0 {
		s.tasks[i] = updated
	}
	s.mu.Unlock()

	s.logger.Debug("task updated", "id", id)
	s.notify()
	return updated, nil
}

// Delete removes the task from the remote and then from the local list.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.begin(id, OpDelete); err != nil {
		return &OpError{Op: OpDelete, Err: err}
	}
	defer s.end(id)

	if err := s.svc.DeleteTask(ctx, id); err != nil {
		return s.fail(OpDelete, err)
	}

	s.mu.Lock()
	s.tasks = slices.DeleteFunc(s.tasks, func(t task.Task) bool { return t.ID == id })
	s.mu.Unlock()

	s.logger.Debug("task deleted", "id", id)
	s.notify()
	return nil
}

// fail records err as the session error and returns it as an *OpError.
func (s *Store) fail(op Op, err error) error {
	opErr := &OpError{Op: op, Err: err}

	s.mu.Lock()
	s.errMsg = opErr.Error()
	s.mu.Unlock()

	s.logger.Warn("task operation failed", "op", string(op), "err", err)
	s.notify()
	return opErr
}

func (s *Store) begin(id string, op Op) error {
	if !s.guard {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if pending, ok := s.pending[id]; ok {
		return fmt.Errorf("%w: %s pending", ErrBusy, pending)
	}
	s.pending[id] = op
	return nil
}

func (s *Store) end(id string) {
	if !s.guard {
		return
	}
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Open starts the session-bound lifecycle: it checks that someone is logged
// in, loads the task list and subscribes to remote changes. Each change
// reloads the list. The subscription is released by Close or when ctx is
// done. Calling Open while already open does nothing, and calling it after
// Close returns ErrClosed.
//
// A failed initial load is recorded in the store state but does not prevent
// the subscription from opening.
func (s *Store) Open(ctx context.Context, sess session.Session) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.sub != nil {
		return nil
	}

	user, err := sess.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return err
		}
		return fmt.Errorf("%w: %v", session.ErrNoSession, err)
	}
	s.logger.Debug("session active", "user", user.ID)

	subCtx, cancel := context.WithCancel(ctx)
	if err := s.FetchAll(subCtx); err != nil {
		s.logger.Warn("initial fetch failed", "err", err)
	}

	gen := s.gen.Add(1)
	sub, err := s.svc.Subscribe(subCtx, func(ev service.Event) {
		s.onChange(subCtx, gen, ev)
	})
	if err != nil {
		cancel()
		s.gen.Add(1)
		return fmt.Errorf("subscribe to task changes: %w", err)
	}
	s.sub = sub
	s.cancel = cancel

	go func() {
		<-subCtx.Done()
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if s.gen.Load() == gen {
			if err := s.releaseLocked(); err != nil {
				s.logger.Warn("release subscription", "err", err)
			}
		}
	}()

	s.logger.Debug("subscribed to task changes")
	return nil
}

// Close releases the change subscription and stops later calls to Open
// from subscribing again. It is safe to call when not open.
func (s *Store) Close() error {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.closed = true
	return s.releaseLocked()
}

// IsOpen reports whether the change subscription is held.
func (s *Store) IsOpen() bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return s.sub != nil
}

func (s *Store) releaseLocked() error {
	if s.sub == nil {
		return nil
	}
	// Invalidate the handler first so in-flight events are dropped.
	s.gen.Add(1)
	s.cancel()
	err := s.sub.Close()
	s.sub = nil
	s.cancel = nil
	s.logger.Debug("unsubscribed from task changes")
	return err
}

func (s *Store) onChange(ctx context.Context, gen uint64, ev service.Event) {
	if s.gen.Load() != gen || ctx.Err() != nil {
		return
	}
	s.logger.Debug("task change received", "type", string(ev.Type), "id", ev.ID)
	if err := s.FetchAll(ctx); err != nil && s.gen.Load() == gen {
		s.logger.Warn("reload after change failed", "err", err)
	}
}
