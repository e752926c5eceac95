// Package googletasks implements the service.Service interface using Google
// Tasks API. One task list plays the part of the task table.
package googletasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"taskboard/internal/backend/poll"
	"taskboard/internal/config"
	"taskboard/internal/service"
	"taskboard/internal/session"
	"taskboard/internal/task"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	statusNeedsAction = "needsAction"
	statusCompleted   = "completed"
)

// ErrNotFound is returned when a task or list does not exist.
var ErrNotFound = errors.New("not found")

// TaskList is a Google task list.
type TaskList struct {
	ID        string
	Title     string
	IsDefault bool
}

// Client implements service.Service using Google Tasks API.
type Client struct {
	svc          *tasks.Service
	listName     string
	pollInterval time.Duration
	logger       *slog.Logger

	mu     sync.Mutex
	listID string
}

var _ service.Service = (*Client)(nil)

// New creates a new Google Tasks client.
// Requires oauth_client.json and token.json to exist.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	oauthConfig, err := LoadOAuthConfig(cfg)
	if err != nil {
		return nil, err
	}

	token, err := cfg.LoadToken()
	if err != nil {
		return nil, err
	}

	// Create token source that auto-refreshes
	tokenSource := oauthConfig.TokenSource(ctx, token)

	// Create HTTP client with token source
	httpClient := oauth2.NewClient(ctx, tokenSource)

	return NewWithOptions(ctx, cfg.Settings.GoogleTasks, cfg.Logger, option.WithHTTPClient(httpClient))
}

// NewWithOptions creates a client with explicit API options (used by tests).
func NewWithOptions(ctx context.Context, s config.GoogleTasksSettings, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	listName := strings.TrimSpace(s.List)
	if listName == "" {
		listName = DefaultListID
	}
	c := &Client{
		svc:          svc,
		listName:     listName,
		pollInterval: s.PollInterval,
		logger:       logger,
	}
	if listName == DefaultListID {
		c.listID = DefaultListID
	}
	return c, nil
}

// NewWithHTTPClient creates a client for the default list with a custom
// HTTP client.
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client) (*Client, error) {
	return NewWithOptions(ctx, config.GoogleTasksSettings{List: DefaultListID}, nil, option.WithHTTPClient(httpClient))
}

// list returns the id of the configured list, resolving its name once.
func (c *Client) list(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listID != "" {
		return c.listID, nil
	}
	l, err := c.ResolveList(ctx, c.listName)
	if err != nil {
		return "", err
	}
	c.listID = l.ID
	return c.listID, nil
}

// CurrentUser checks that the stored token still grants access. Google Tasks
// exposes no profile, so the account is identified by its default list.
func (c *Client) CurrentUser(ctx context.Context) (session.User, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	list, err := c.svc.Tasklists.Get(DefaultListID).Context(ctx).Do()
	if err != nil {
		err = wrapError(err)
		if errors.Is(err, session.ErrNoSession) {
			return session.User{}, err
		}
		return session.User{}, fmt.Errorf("%w: %w", session.ErrNoSession, err)
	}
	return session.User{ID: list.Id}, nil
}

// ListLists returns all task lists in API order.
func (c *Client) ListLists(ctx context.Context) ([]TaskList, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	// First, get the default list to know its real ID
	defaultList, err := c.svc.Tasklists.Get(DefaultListID).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err)
	}
	defaultRealID := defaultList.Id

	var result []TaskList
	err = c.svc.Tasklists.List().MaxResults(100).Pages(ctx, func(resp *tasks.TaskLists) error {
		for _, list := range resp.Items {
			isDefault := list.Id == defaultRealID
			id := list.Id
			if isDefault {
				id = DefaultListID // Normalize to @default
			}
			result = append(result, TaskList{
				ID:        id,
				Title:     list.Title,
				IsDefault: isDefault,
			})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err)
	}

	return result, nil
}

// ResolveList finds a list by name (case-insensitive, trimmed).
func (c *Client) ResolveList(ctx context.Context, name string) (TaskList, error) {
	name = strings.TrimSpace(name)
	nameLower := strings.ToLower(name)

	lists, err := c.ListLists(ctx)
	if err != nil {
		return TaskList{}, err
	}

	var matches []TaskList
	for _, list := range lists {
		if strings.ToLower(strings.TrimSpace(list.Title)) == nameLower {
			matches = append(matches, list)
		}
	}

	switch len(matches) {
	case 0:
		return TaskList{}, fmt.Errorf("list not found: %s", name)
	case 1:
		return matches[0], nil
	default:
		return TaskList{}, fmt.Errorf("ambiguous list name: %s", name)
	}
}

// ListTasks returns every task of the list, newest created_at first.
func (c *Client) ListTasks(ctx context.Context) ([]task.Row, error) {
	listID, err := c.list(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var rows []task.Row
	err = c.svc.Tasks.List(listID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(false).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, t := range resp.Items {
				rows = append(rows, toRow(t))
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return createdAt(rows[i]).After(createdAt(rows[j]))
	})
	return rows, nil
}

// InsertTask creates a task stamped with the current time as created_at.
func (c *Client) InsertTask(ctx context.Context, row task.Row) (task.Row, error) {
	listID, err := c.list(ctx)
	if err != nil {
		return task.Row{}, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	row.CreatedAt = &now
	body, err := fromRow(row)
	if err != nil {
		return task.Row{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	created, err := c.svc.Tasks.Insert(listID, body).Context(ctx).Do()
	if err != nil {
		return task.Row{}, wrapError(err)
	}
	return toRow(created), nil
}

// UpdateTask replaces the task's fields, keeping its created_at.
func (c *Client) UpdateTask(ctx context.Context, id string, row task.Row) (task.Row, error) {
	listID, err := c.list(ctx)
	if err != nil {
		return task.Row{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	current, err := c.svc.Tasks.Get(listID, id).Context(ctx).Do()
	if err != nil {
		return task.Row{}, wrapError(err)
	}
	row.CreatedAt = toRow(current).CreatedAt

	body, err := fromRow(row)
	if err != nil {
		return task.Row{}, err
	}
	body.Id = id

	updated, err := c.svc.Tasks.Update(listID, id, body).Context(ctx).Do()
	if err != nil {
		return task.Row{}, wrapError(err)
	}
	return toRow(updated), nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	listID, err := c.list(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	if err := c.svc.Tasks.Delete(listID, id).Context(ctx).Do(); err != nil {
		return wrapError(err)
	}
	return nil
}

// Subscribe polls the list, since Google Tasks has no change feed.
func (c *Client) Subscribe(ctx context.Context, fn func(service.Event)) (service.Subscription, error) {
	return poll.Watch(ctx, c.pollInterval, c.fingerprint, fn, c.logger)
}

// fingerprint summarizes the list as its task count and latest update time.
func (c *Client) fingerprint(ctx context.Context) (string, error) {
	listID, err := c.list(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var (
		count  int
		latest string
	)
	err = c.svc.Tasks.List(listID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowHidden(true).
		Fields("items(id,updated)", "nextPageToken").
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, t := range resp.Items {
				count++
				if t.Updated > latest {
					latest = t.Updated
				}
			}
			return nil
		})
	if err != nil {
		return "", wrapError(err)
	}
	return strconv.Itoa(count) + "@" + latest, nil
}

func createdAt(r task.Row) time.Time {
	if r.CreatedAt == nil {
		return time.Time{}
	}
	return *r.CreatedAt
}

// toRow translates a Google task into a row.
func toRow(t *tasks.Task) task.Row {
	meta, description := DecodeNotes(t.Notes)
	r := task.Row{
		ID:          t.Id,
		Title:       t.Title,
		Description: description,
		Status:      meta.Status,
		Priority:    meta.Priority,
		Assignee:    meta.Assignee,
		CreatedAt:   meta.CreatedAt,
	}
	if len(t.Due) >= len(task.DateLayout) {
		r.DueDate = t.Due[:len(task.DateLayout)]
	}
	if t.Completed != nil && *t.Completed != "" {
		if ts, err := time.Parse(time.RFC3339, *t.Completed); err == nil {
			r.CompletedAt = &ts
		}
	}

	// Tasks written by other clients carry no metadata.
	if r.Status == "" {
		r.Status = string(task.StatusTodo)
		if t.Status == statusCompleted {
			r.Status = string(task.StatusCompleted)
		}
	}
	if r.Priority == "" {
		r.Priority = string(task.PriorityMedium)
	}
	if r.CreatedAt == nil {
		if ts, err := time.Parse(time.RFC3339, t.Updated); err == nil {
			r.CreatedAt = &ts
		}
	}
	return r
}

// fromRow translates a row into a Google task body.
func fromRow(r task.Row) (*tasks.Task, error) {
	notes, err := EncodeNotes(Meta{
		Status:    r.Status,
		Priority:  r.Priority,
		Assignee:  r.Assignee,
		CreatedAt: r.CreatedAt,
	}, r.Description)
	if err != nil {
		return nil, err
	}

	t := &tasks.Task{
		Title:  r.Title,
		Notes:  notes,
		Status: statusNeedsAction,
	}
	// Explicit nulls so that an update clears the field.
	var nulls []string
	if r.DueDate != "" {
		t.Due = r.DueDate + "T00:00:00.000Z"
	} else {
		nulls = append(nulls, "Due")
	}
	if r.Status == string(task.StatusCompleted) {
		t.Status = statusCompleted
		if r.CompletedAt != nil {
			completed := r.CompletedAt.UTC().Format(time.RFC3339)
			t.Completed = &completed
		}
	} else {
		nulls = append(nulls, "Completed")
	}
	t.NullFields = nulls
	return t, nil
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	// Check for timeout
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out")
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: token expired or revoked (run: taskboard login)", session.ErrNoSession)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: token expired or revoked (run: taskboard login)", session.ErrNoSession)
		case http.StatusNotFound:
			return ErrNotFound
		}
	}

	return err
}
