// Package view derives the displayed task list and the summary indicators
// from the full task list. Everything here is pure.
package view

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"taskboard/internal/task"
)

// Filter selects tasks by status.
type Filter string

// FilterAll keeps every task.
const FilterAll Filter = "all"

// Filters lists every filter in cycling order.
var Filters = []Filter{
	FilterAll,
	Filter(task.StatusTodo),
	Filter(task.StatusInProgress),
	Filter(task.StatusCompleted),
	Filter(task.StatusOverdue),
}

// ParseFilter parses a filter name.
func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Filters, f) {
		return f, nil
	}
	return "", fmt.Errorf("unknown status filter: %s", s)
}

// Next returns the filter after f in cycling order.
func (f Filter) Next() Filter {
	i := slices.Index(Filters, f)
	return Filters[(i+1)%len(Filters)]
}

// SortKey selects the display ordering.
type SortKey string

const (
	SortDueDate  SortKey = "dueDate"
	SortPriority SortKey = "priority"
	SortStatus   SortKey = "status"
)

// SortKeys lists every sort key in cycling order.
var SortKeys = []SortKey{SortDueDate, SortPriority, SortStatus}

// ParseSortKey parses a sort key name. Matching ignores case, so "duedate" is accepted.
func ParseSortKey(s string) (SortKey, error) {
	for _, k := range SortKeys {
		if strings.EqualFold(strings.TrimSpace(s), string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort key: %s", s)
}

// Next returns the sort key after k in cycling order.
func (k SortKey) Next() SortKey {
	i := slices.Index(SortKeys, k)
	return SortKeys[(i+1)%len(SortKeys)]
}

// FilterTasks returns the tasks matching f. The input is never modified.
func FilterTasks(tasks []task.Task, f Filter) []task.Task {
	out := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if f == FilterAll || Filter(t.Status) == f {
			out = append(out, t)
		}
	}
	return out
}

// SortTasks returns a stably sorted copy of tasks.
func SortTasks(tasks []task.Task, key SortKey) []task.Task {
	out := slices.Clone(tasks)
	switch key {
	case SortDueDate:
		slices.SortStableFunc(out, compareDue)
	case SortPriority:
		slices.SortStableFunc(out, func(a, b task.Task) int {
			return b.Priority.Rank() - a.Priority.Rank()
		})
	case SortStatus:
		slices.SortStableFunc(out, func(a, b task.Task) int {
			return strings.Compare(string(a.Status), string(b.Status))
		})
	}
	return out
}

// compareDue orders by calendar date. Dates that fail to parse fall back to
// plain string comparison.
func compareDue(a, b task.Task) int {
	da, errA := time.Parse(task.DateLayout, a.DueDate)
	db, errB := time.Parse(task.DateLayout, b.DueDate)
	if errA != nil || errB != nil {
		return strings.Compare(a.DueDate, b.DueDate)
	}
	return da.Compare(db)
}

// Result is the output of the pipeline.
type Result struct {
	Visible []task.Task
	Summary Summary
}

// Derive filters and sorts tasks for display and summarizes the full list.
func Derive(tasks []task.Task, f Filter, key SortKey) Result {
	return Result{
		Visible: SortTasks(FilterTasks(tasks, f), key),
		Summary: Summarize(tasks),
	}
}
