// Package supabase implements the service.Service interface over a hosted
// Supabase project: PostgREST for the table, GoTrue for the session and the
// realtime websocket for change notifications.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"taskboard/internal/config"
	"taskboard/internal/service"
	"taskboard/internal/session"
	"taskboard/internal/task"
)

const (
	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	restPath = "/rest/v1/"
	userPath = "/auth/v1/user"
)

// ErrNotFound is returned when no row matches the given id.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the project.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// Options configures a Client.
type Options struct {
	// URL is the project URL, e.g. https://abc.supabase.co.
	URL string

	// AnonKey is the project's public API key.
	AnonKey string

	// Table is the task table name.
	Table string

	// TokenSource supplies the user's access token. When nil, requests are
	// made with the anon key only.
	TokenSource oauth2.TokenSource

	// HTTPClient is the base client. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// ReconnectDelay is the first wait before redialing a dropped realtime
	// connection. It doubles up to MaxReconnectDelay. Defaults to one second.
	ReconnectDelay time.Duration

	Logger *slog.Logger
}

// Client implements service.Service against a Supabase project.
type Client struct {
	baseURL string
	anonKey string
	table   string
	tokens  oauth2.TokenSource
	http    *http.Client
	logger  *slog.Logger

	reconnectDelay time.Duration
}

var _ service.Service = (*Client)(nil)

// New creates a client from the settings file and the stored token.
// The token is refreshed as needed and refreshed tokens are saved back.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	s := cfg.Settings.Supabase
	if s.URL == "" || s.AnonKey == "" {
		return nil, fmt.Errorf("%w: supabase url and anon_key must be set in %s", config.ErrNotConfigured, cfg.SettingsPath())
	}

	token, err := cfg.LoadToken()
	if err != nil {
		return nil, err
	}

	auth := NewAuth(s.URL, s.AnonKey, nil)
	tokens := &savingTokenSource{
		base: auth.TokenSource(ctx, token),
		cfg:  cfg,
		last: token.AccessToken,
	}

	return NewWithOptions(Options{
		URL:         s.URL,
		AnonKey:     s.AnonKey,
		Table:       s.Table,
		TokenSource: tokens,
		Logger:      cfg.Logger,
	}), nil
}

// NewWithOptions creates a client from explicit options (used by tests).
func NewWithOptions(o Options) *Client {
	base := o.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	httpClient := base
	if o.TokenSource != nil {
		httpClient = &http.Client{
			Transport: &oauth2.Transport{Source: o.TokenSource, Base: base.Transport},
			Timeout:   base.Timeout,
		}
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	table := o.Table
	if table == "" {
		table = "tasks"
	}
	delay := o.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(o.URL, "/"),
		anonKey: o.AnonKey,
		table:   table,
		tokens:  o.TokenSource,
		http:    httpClient,
		logger:  logger,

		reconnectDelay: delay,
	}
}

// CurrentUser returns the user the stored token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (session.User, error) {
	if c.tokens == nil {
		return session.User{}, session.ErrNoSession
	}
	var u struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := c.do(ctx, http.MethodGet, c.baseURL+userPath, nil, nil, &u); err != nil {
		return session.User{}, wrapError(err)
	}
	return session.User{ID: u.ID, Email: u.Email}, nil
}

// ListTasks returns every row, newest first.
func (c *Client) ListTasks(ctx context.Context) ([]task.Row, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")

	var rows []task.Row
	if err := c.do(ctx, http.MethodGet, c.tableURL(q), nil, nil, &rows); err != nil {
		return nil, wrapError(err)
	}
	return rows, nil
}

// InsertTask inserts row and returns the stored representation.
func (c *Client) InsertTask(ctx context.Context, row task.Row) (task.Row, error) {
	row.ID = ""
	row.CreatedAt = nil

	var rows []task.Row
	h := http.Header{"Prefer": {"return=representation"}}
	if err := c.do(ctx, http.MethodPost, c.tableURL(nil), h, row, &rows); err != nil {
		return task.Row{}, wrapError(err)
	}
	if len(rows) == 0 {
		return task.Row{}, fmt.Errorf("insert returned no row")
	}
	return rows[0], nil
}

// UpdateTask overwrites the mutable columns of the row with the given id.
func (c *Client) UpdateTask(ctx context.Context, id string, row task.Row) (task.Row, error) {
	row.ID = ""
	row.CreatedAt = nil

	var rows []task.Row
	h := http.Header{"Prefer": {"return=representation"}}
	if err := c.do(ctx, http.MethodPatch, c.tableURL(idFilter(id)), h, row, &rows); err != nil {
		return task.Row{}, wrapError(err)
	}
	if len(rows) == 0 {
		return task.Row{}, ErrNotFound
	}
	return rows[0], nil
}

// DeleteTask deletes the row with the given id.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, c.tableURL(idFilter(id)), nil, nil, nil); err != nil {
		return wrapError(err)
	}
	return nil
}

func idFilter(id string) url.Values {
	q := url.Values{}
	q.Set("id", "eq."+id)
	return q
}

func (c *Client) tableURL(q url.Values) string {
	u := c.baseURL + restPath + url.PathEscape(c.table)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, rawURL string, h http.Header, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens == nil {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}
	for k, v := range h {
		req.Header[k] = v
	}

	c.logger.Debug("supabase request", "method", method, "url", rawURL)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// errorMessage extracts the message from a PostgREST or GoTrue error body.
func errorMessage(data []byte) string {
	var body struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(data, &body) != nil {
		return strings.TrimSpace(string(data))
	}
	for _, m := range []string{body.Message, body.Msg, body.ErrorDescription} {
		if m != "" {
			return m
		}
	}
	return ""
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out")
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: token expired or revoked (run: taskboard login)", session.ErrNoSession)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: token expired or revoked (run: taskboard login)", session.ErrNoSession)
		case http.StatusNotFound:
			return ErrNotFound
		}
	}

	return err
}
