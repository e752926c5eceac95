// Package postgres implements the service.Service interface directly against
// a PostgreSQL database, with LISTEN/NOTIFY for change notifications.
//
// The table and the trigger that notifies the channel belong to the
// externally owned schema; this package only reads and writes rows.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskboard/internal/config"
	"taskboard/internal/service"
	"taskboard/internal/session"
	"taskboard/internal/task"
)

// APITimeout is the timeout for each statement.
const APITimeout = 5 * time.Second

// ErrNotFound is returned when no row matches the given id.
var ErrNotFound = errors.New("not found")

// Client implements service.Service over a connection pool.
type Client struct {
	pool    *pgxpool.Pool
	table   string
	channel string
	logger  *slog.Logger
}

var _ service.Service = (*Client)(nil)

// New connects to the database named by the settings file.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	s := cfg.Settings.Postgres
	if s.DSN == "" {
		return nil, fmt.Errorf("%w: postgres dsn must be set in %s or %s", config.ErrNotConfigured, cfg.SettingsPath(), config.EnvPostgresDSN)
	}
	pool, err := pgxpool.New(ctx, s.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(pool, s.Table, s.Channel, cfg.Logger), nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool *pgxpool.Pool, table, channel string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{pool: pool, table: table, channel: channel, logger: logger}
}

// Close closes the pool.
func (c *Client) Close() error {
	c.pool.Close()
	return nil
}

func (c *Client) ident() string {
	return pgx.Identifier{c.table}.Sanitize()
}

const columns = `id::text, title, coalesce(description, ''), status, priority,
	coalesce(assignee, ''), coalesce(due_date::text, ''), created_at, completed_at`

func scanRow(row pgx.Row) (task.Row, error) {
	var (
		r         task.Row
		createdAt time.Time
	)
	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.Status, &r.Priority,
		&r.Assignee, &r.DueDate, &createdAt, &r.CompletedAt)
	if err != nil {
		return task.Row{}, err
	}
	r.CreatedAt = &createdAt
	return r, nil
}

// CurrentUser returns the database role of the connection.
func (c *Client) CurrentUser(ctx context.Context) (session.User, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var name string
	if err := c.pool.QueryRow(ctx, `SELECT current_user`).Scan(&name); err != nil {
		return session.User{}, fmt.Errorf("%w: %w", session.ErrNoSession, wrapError(err))
	}
	return session.User{ID: name}, nil
}

// ListTasks returns every row, newest first.
func (c *Client) ListTasks(ctx context.Context) ([]task.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	rows, err := c.pool.Query(ctx, `SELECT `+columns+` FROM `+c.ident()+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()

	var result []task.Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, wrapError(err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(err)
	}
	return result, nil
}

// InsertTask inserts row and returns it as stored.
func (c *Client) InsertTask(ctx context.Context, row task.Row) (task.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	r, err := scanRow(c.pool.QueryRow(ctx, `
INSERT INTO `+c.ident()+` (title, description, status, priority, assignee, due_date, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+columns,
		row.Title, row.Description, row.Status, row.Priority, row.Assignee, row.DueDate, row.CompletedAt,
	))
	if err != nil {
		return task.Row{}, wrapError(err)
	}
	return r, nil
}

// UpdateTask overwrites every mutable column of the row with the given id.
func (c *Client) UpdateTask(ctx context.Context, id string, row task.Row) (task.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	r, err := scanRow(c.pool.QueryRow(ctx, `
UPDATE `+c.ident()+`
SET title = $1, description = $2, status = $3, priority = $4,
    assignee = $5, due_date = $6, completed_at = $7
WHERE id::text = $8
RETURNING `+columns,
		row.Title, row.Description, row.Status, row.Priority, row.Assignee, row.DueDate, row.CompletedAt, id,
	))
	if err != nil {
		return task.Row{}, wrapError(err)
	}
	return r, nil
}

// DeleteTask deletes the row with the given id.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if _, err := c.pool.Exec(ctx, `DELETE FROM `+c.ident()+` WHERE id::text = $1`, id); err != nil {
		return wrapError(err)
	}
	return nil
}

// Subscribe listens on the change channel using a dedicated connection
// taken from the pool for the lifetime of the subscription. If that
// connection is lost, a new one is acquired and fn receives one
// EventUnknown once listening resumes.
func (c *Client) Subscribe(ctx context.Context, fn func(service.Event)) (service.Subscription, error) {
	conn, err := c.listen(ctx)
	if err != nil {
		return nil, err
	}

	ctx, stop := context.WithCancel(ctx)
	l := &listener{client: c, conn: conn, stop: stop, done: make(chan struct{})}
	go l.run(ctx, fn)

	c.logger.Debug("listening for task changes", "channel", c.channel)
	return l, nil
}

// listen acquires a connection and runs LISTEN on it.
func (c *Client) listen(ctx context.Context) (*pgxpool.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, wrapError(err)
	}
	if _, err := conn.Exec(ctx, `LISTEN `+pgx.Identifier{c.channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, wrapError(err)
	}
	return conn, nil
}

// ReconnectDelay is the first wait before listening again on a new
// connection. It doubles up to MaxReconnectDelay.
var ReconnectDelay = time.Second

// MaxReconnectDelay caps the wait between listen attempts.
const MaxReconnectDelay = 30 * time.Second

type listener struct {
	client *Client
	stop   context.CancelFunc
	done   chan struct{}
	once   sync.Once

	// conn is owned by run until done is closed. It is nil when run gave up
	// while reconnecting.
	conn *pgxpool.Conn
}

func (l *listener) run(ctx context.Context, fn func(service.Event)) {
	defer close(l.done)
	logger := l.client.logger
	for {
		n, err := l.conn.Conn().WaitForNotification(ctx)
		if err == nil {
			fn(ParseNotification(n.Payload))
			continue
		}
		if ctx.Err() != nil {
			return
		}
		logger.Warn("task change listener lost its connection", "err", err)
		l.discard()
		if !l.relisten(ctx) {
			return
		}
		fn(service.Event{Type: service.EventUnknown})
	}
}

// relisten acquires a new listening connection with backoff until it
// succeeds or ctx is done.
func (l *listener) relisten(ctx context.Context) bool {
	delay := ReconnectDelay
	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		conn, err := l.client.listen(ctx)
		if err == nil {
			l.conn = conn
			l.client.logger.Info("listening for task changes again", "channel", l.client.channel)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		delay = min(delay*2, MaxReconnectDelay)
		l.client.logger.Warn("listen for task changes failed", "err", err, "retry_in", delay)
	}
}

// discard closes the current connection without returning it to the pool.
func (l *listener) discard() {
	if l.conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), APITimeout)
	defer cancel()
	l.conn.Hijack().Close(ctx)
	l.conn = nil
}

// Close implements service.Subscription.
func (l *listener) Close() error {
	var err error
	l.once.Do(func() {
		l.stop()
		<-l.done
		if l.conn == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), APITimeout)
		defer cancel()
		if _, uerr := l.conn.Exec(ctx, `UNLISTEN `+pgx.Identifier{l.client.channel}.Sanitize()); uerr != nil {
			// The connection is in an unknown state; do not return it to the pool.
			l.discard()
			err = uerr
			return
		}
		l.conn.Release()
		l.conn = nil
	})
	return err
}

// ParseNotification reads an optional JSON payload of the form
// {"type":"INSERT","id":"..."}. Anything else is an EventUnknown.
func ParseNotification(payload string) service.Event {
	var p struct {
		Type string          `json:"type"`
		ID   json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return service.Event{Type: service.EventUnknown}
	}

	ev := service.Event{Type: service.EventUnknown}
	switch strings.ToUpper(p.Type) {
	case "INSERT":
		ev.Type = service.EventInsert
	case "UPDATE":
		ev.Type = service.EventUpdate
	case "DELETE":
		ev.Type = service.EventDelete
	}
	if len(p.ID) > 0 && string(p.ID) != "null" {
		var s string
		if json.Unmarshal(p.ID, &s) == nil {
			ev.ID = s
		} else {
			ev.ID = string(p.ID)
		}
	}
	return ev
}

// wrapError wraps driver errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out")
	}
	return err
}
