// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"taskboard/internal/task"
	"taskboard/internal/view"
)

const (
	// IDWidth is how many characters of a task id are shown. Any unique
	// prefix is accepted as a task reference.
	IDWidth = 8

	assigneeWidth = 16
	rowFormat     = "%-8s  %-11s  %-8s  %-10s  %-16s  %s\n"
)

// ShortID returns the displayed prefix of id.
func ShortID(id string) string {
	if len(id) <= IDWidth {
		return id
	}
	return id[:IDWidth]
}

// FormatTaskHeader writes the column header of the task table.
func FormatTaskHeader(w io.Writer) {
	fmt.Fprintf(w, rowFormat, "ID", "STATUS", "PRIORITY", "DUE", "ASSIGNEE", "TITLE")
}

// FormatTask writes one task table row.
func FormatTask(w io.Writer, t task.Task) {
	fmt.Fprintf(w, rowFormat,
		ShortID(t.ID),
		string(t.Status),
		string(t.Priority),
		t.DueDate,
		truncate(singleLine(t.Assignee), assigneeWidth),
		normalizeTitle(t.Title),
	)
}

// FormatTasks writes the header and one row per task.
func FormatTasks(w io.Writer, tasks []task.Task) {
	FormatTaskHeader(w)
	for _, t := range tasks {
		FormatTask(w, t)
	}
}

// FormatSummary writes the dashboard indicators, one per line.
func FormatSummary(w io.Writer, s view.Summary) {
	fmt.Fprintf(w, "Total tasks:      %d\n", s.Total)
	fmt.Fprintf(w, "Completed:        %d\n", s.Completed)
	fmt.Fprintf(w, "In progress:      %d\n", s.InProgress)
	fmt.Fprintf(w, "Overdue:          %d\n", s.Overdue)
	fmt.Fprintf(w, "To do:            %d\n", s.Todo)
	fmt.Fprintf(w, "Completion rate:  %d%%\n", s.CompletionRate)
	fmt.Fprintf(w, "Overdue rate:     %d%%\n", s.OverdueRate)
}

// FormatTaskDetail writes every field of a task.
func FormatTaskDetail(w io.Writer, t task.Task) {
	fmt.Fprintf(w, "id:           %s\n", t.ID)
	fmt.Fprintf(w, "title:        %s\n", normalizeTitle(t.Title))
	fmt.Fprintf(w, "status:       %s\n", t.Status)
	fmt.Fprintf(w, "priority:     %s\n", t.Priority)
	fmt.Fprintf(w, "assignee:     %s\n", singleLine(t.Assignee))
	fmt.Fprintf(w, "due:          %s\n", t.DueDate)
	if !t.CreatedAt.IsZero() {
		fmt.Fprintf(w, "created:      %s\n", t.CreatedAt.UTC().Format("2006-01-02 15:04"))
	}
	if t.CompletedAt != nil {
		fmt.Fprintf(w, "completed:    %s\n", t.CompletedAt.UTC().Format("2006-01-02 15:04"))
	}
	if d := strings.TrimSpace(t.Description); d != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, d)
	}
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = singleLine(title)

	// Trim and check for empty
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

func singleLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// truncate shortens s to at most n runes, marking the cut with "~".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "~"
}
