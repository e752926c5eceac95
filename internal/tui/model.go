// Package tui implements the live dashboard: a summary panel over a task
// table that re-renders whenever the record store changes.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskboard/internal/output"
	"taskboard/internal/session"
	"taskboard/internal/store"
	"taskboard/internal/task"
	"taskboard/internal/view"
)

// SnapshotMsg carries a store snapshot into the program.
type SnapshotMsg struct {
	Snapshot store.Snapshot
}

// openedMsg reports the outcome of Store.Open.
type openedMsg struct {
	err error
}

// actionMsg reports the outcome of a refresh or mutation started from a key.
type actionMsg struct {
	op  string
	err error
}

// Fixed column widths; the title column takes what is left.
const (
	idWidth       = output.IDWidth
	statusWidth   = 11
	priorityWidth = 8
	assigneeWidth = 16
	dueWidth      = 10
	minTitleWidth = 20

	// title, status line, summary panel, table header and status bar
	chromeHeight = 9
)

// Model is the dashboard's Bubble Tea model.
type Model struct {
	ctx    context.Context
	store  *store.Store
	sess   session.Session
	logger *slog.Logger

	table   table.Model
	spinner spinner.Model

	snap    store.Snapshot
	visible []task.Task
	summary view.Summary
	filter  view.Filter
	sortKey view.SortKey

	width  int
	height int

	// err is fatal and ends the program.
	err error
}

// New creates the dashboard model over st. The store is opened by Init.
func New(ctx context.Context, st *store.Store, sess session.Session, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	t := table.New(
		table.WithColumns(columns(minTitleWidth)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(secondaryColor).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(primaryColor)
	t.SetStyles(s)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)

	m := Model{
		ctx:     ctx,
		store:   st,
		sess:    sess,
		logger:  logger,
		table:   t,
		spinner: sp,
		filter:  view.FilterAll,
		sortKey: view.SortDueDate,
	}
	m.apply(st.Snapshot())
	return m
}

func columns(titleWidth int) []table.Column {
	return []table.Column{
		{Title: "ID", Width: idWidth},
		{Title: "Title", Width: titleWidth},
		{Title: "Status", Width: statusWidth},
		{Title: "Priority", Width: priorityWidth},
		{Title: "Assignee", Width: assigneeWidth},
		{Title: "Due", Width: dueWidth},
	}
}

// Filter returns the active status filter.
func (m Model) Filter() view.Filter { return m.filter }

// SortKey returns the active sort key.
func (m Model) SortKey() view.SortKey { return m.sortKey }

// Visible returns the tasks currently shown in the table.
func (m Model) Visible() []task.Task { return m.visible }

// Err returns the error that ended the program, if any.
func (m Model) Err() error { return m.err }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.open())
}

func (m Model) open() tea.Cmd {
	return func() tea.Msg {
		return openedMsg{err: m.store.Open(m.ctx, m.sess)}
	}
}

func (m Model) refresh() tea.Cmd {
	return func() tea.Msg {
		return actionMsg{op: "refresh", err: m.store.FetchAll(m.ctx)}
	}
}

func (m Model) complete(t task.Task) tea.Cmd {
	return func() tea.Msg {
		d := t.Draft()
		if d.Status != task.StatusCompleted {
			now := time.Now().UTC().Truncate(time.Second)
			d.Status = task.StatusCompleted
			d.CompletedAt = &now
		}
		_, err := m.store.Update(m.ctx, t.ID, d)
		return actionMsg{op: "complete", err: err}
	}
}

func (m Model) remove(t task.Task) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{op: "delete", err: m.store.Delete(m.ctx, t.ID)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case SnapshotMsg:
		m.apply(msg.Snapshot)
		return m, nil

	case openedMsg:
		if errors.Is(msg.err, store.ErrClosed) {
			return m, tea.Quit
		}
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.apply(m.store.Snapshot())
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.logger.Debug("dashboard action failed", "op", msg.op, "err", msg.err)
		}
		m.apply(m.store.Snapshot())
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "f":
			m.filter = m.filter.Next()
			m.derive()
			return m, nil
		case "s":
			m.sortKey = m.sortKey.Next()
			m.derive()
			return m, nil
		case "r":
			return m, m.refresh()
		case "x":
			if t, ok := m.selected(); ok {
				return m, m.complete(t)
			}
			return m, nil
		case "d":
			if t, ok := m.selected(); ok {
				return m, m.remove(t)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) selected() (task.Task, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.visible) {
		return task.Task{}, false
	}
	return m.visible[i], true
}

// apply installs a new snapshot and recomputes the derived view.
func (m *Model) apply(snap store.Snapshot) {
	m.snap = snap
	m.derive()
}

func (m *Model) derive() {
	r := view.Derive(m.snap.Tasks, m.filter, m.sortKey)
	m.visible = r.Visible
	m.summary = r.Summary

	rows := make([]table.Row, len(r.Visible))
	for i, t := range r.Visible {
		rows[i] = table.Row{
			output.ShortID(t.ID),
			t.Title,
			string(t.Status),
			string(t.Priority),
			t.Assignee,
			t.DueDate,
		}
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

func (m *Model) resize() {
	fixed := idWidth + statusWidth + priorityWidth + assigneeWidth + dueWidth
	// Each column carries one cell of padding on both sides.
	titleWidth := m.width - fixed - 2*6
	if titleWidth < minTitleWidth {
		titleWidth = minTitleWidth
	}
	m.table.SetColumns(columns(titleWidth))

	h := m.height - chromeHeight
	if h < 3 {
		h = 3
	}
	m.table.SetHeight(h)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Task dashboard"))
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(m.renderSummary())
	b.WriteString("\n")

	if m.snap.Error != "" {
		b.WriteString(ErrorStyle.Render("error: " + m.snap.Error))
		b.WriteString("\n")
		b.WriteString(SubtleStyle.Render("press r to retry"))
	} else if len(m.visible) == 0 && !m.snap.Loading {
		b.WriteString(SubtleStyle.Render("no tasks found"))
	} else {
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")

	b.WriteString(StatusBarStyle.Render(strings.Join([]string{
		"↑↓ Navigate", "f Filter", "s Sort", "x Done", "d Delete", "r Refresh", "q Quit",
	}, "  •  ")))
	return b.String()
}

func (m Model) renderStatusLine() string {
	line := SubtleStyle.Render(fmt.Sprintf("filter: %s  sort: %s  showing %d of %d",
		m.filter, m.sortKey, len(m.visible), len(m.snap.Tasks)))
	if m.snap.Loading {
		line += "  " + m.spinner.View() + SubtleStyle.Render(" loading")
	}
	return line
}

func (m Model) renderSummary() string {
	s := m.summary
	cell := func(label string, value string) string {
		return IndicatorStyle.Render(SubtleStyle.Render(label) + "\n" + value)
	}
	return PanelStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top,
		cell("Total", ValueStyle.Render(fmt.Sprint(s.Total))),
		cell("Completed", completedStyle.Render(fmt.Sprint(s.Completed))),
		cell("In progress", inProgressStyle.Render(fmt.Sprint(s.InProgress))),
		cell("Overdue", overdueStyle.Render(fmt.Sprint(s.Overdue))),
		cell("To do", ValueStyle.Render(fmt.Sprint(s.Todo))),
		cell("Completion", completedStyle.Render(fmt.Sprintf("%d%%", s.CompletionRate))),
		cell("Overdue rate", overdueStyle.Render(fmt.Sprintf("%d%%", s.OverdueRate))),
	))
}
