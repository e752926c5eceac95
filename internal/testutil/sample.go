package testutil

import (
	"time"

	"taskboard/internal/task"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

// SampleRows returns six rows with statuses completed×1, in-progress×2,
// todo×2 and overdue×1.
func SampleRows() []task.Row {
	return []task.Row{
		{
			ID: "1", Title: "Build the authentication module",
			Description: "Implement login with validation",
			Status:      "completed", Priority: "high", Assignee: "Jean Dupont",
			DueDate: "2025-01-20", CreatedAt: ts("2025-01-10T10:00:00Z"),
			CompletedAt: ts("2025-01-18T14:30:00Z"),
		},
		{
			ID: "2", Title: "Design the user interface",
			Description: "Mockups and prototypes for the application",
			Status:      "in-progress", Priority: "medium", Assignee: "Marie Martin",
			DueDate: "2025-01-25", CreatedAt: ts("2025-01-12T09:00:00Z"),
		},
		{
			ID: "3", Title: "Test the features",
			Description: "Unit and integration tests",
			Status:      "todo", Priority: "medium", Assignee: "Pierre Leroy",
			DueDate: "2025-01-30", CreatedAt: ts("2025-01-15T11:00:00Z"),
		},
		{
			ID: "4", Title: "Optimize performance",
			Description: "Improve load time and efficiency",
			Status:      "overdue", Priority: "high", Assignee: "Sophie Bernard",
			DueDate: "2025-01-15", CreatedAt: ts("2025-01-08T08:00:00Z"),
		},
		{
			ID: "5", Title: "Document the API",
			Description: "Write the full technical reference",
			Status:      "todo", Priority: "low", Assignee: "Antoine Rousseau",
			DueDate: "2025-02-05", CreatedAt: ts("2025-01-16T13:00:00Z"),
		},
		{
			ID: "6", Title: "Set up production",
			Description: "Servers and CI/CD",
			Status:      "in-progress", Priority: "high", Assignee: "Emilie Moreau",
			DueDate: "2025-01-28", CreatedAt: ts("2025-01-14T16:00:00Z"),
		},
	}
}

// SampleTasks returns SampleRows translated to tasks, in the same order.
func SampleTasks() []task.Task {
	rows := SampleRows()
	tasks := make([]task.Task, len(rows))
	for i, r := range rows {
		tasks[i] = task.FromRow(r)
	}
	return tasks
}

// NewSampleService returns a FakeService seeded with SampleRows.
func NewSampleService() *FakeService {
	f := NewFakeService()
	for _, r := range SampleRows() {
		f.AddRow(r)
	}
	return f
}
