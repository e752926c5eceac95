package view

import "taskboard/internal/task"

// Summary holds the dashboard indicators.
type Summary struct {
	Total          int
	Completed      int
	InProgress     int
	Overdue        int
	Todo           int
	CompletionRate int // percent
	OverdueRate    int // percent
}

// Summarize counts tasks per status over the whole list.
func Summarize(tasks []task.Task) Summary {
	var s Summary
	s.Total = len(tasks)
	for _, t := range tasks {
		switch t.Status {
		case task.StatusCompleted:
			s.Completed++
		case task.StatusInProgress:
			s.InProgress++
		case task.StatusOverdue:
			s.Overdue++
		case task.StatusTodo:
			s.Todo++
		}
	}
	s.CompletionRate = percent(s.Completed, s.Total)
	s.OverdueRate = percent(s.Overdue, s.Total)
	return s
}

// percent returns n/total*100 rounded half up, or 0 when total is 0.
func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return (200*n + total) / (2 * total)
}
