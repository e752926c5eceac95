package commands_test

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"taskboard/internal/commands"
	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/session"
	"taskboard/internal/task"
	"taskboard/internal/testutil"
)

// runCommand is a helper to run a command with FakeService.
func runCommand(t *testing.T, cmd commands.Command, svc *testutil.FakeService, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer

	cfg := &config.Config{
		Dir:   t.TempDir(),
		Quiet: quiet,
	}

	ctx := context.Background()
	code = cmd.Run(ctx, cfg, svc, args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// newFlagSet registers the command's flags the way the dispatcher does.
func newFlagSet(cmd commands.Command) *flag.FlagSet {
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.RegisterFlags(fs)
	return fs
}

// runWithFlags parses argv into the command's flags and runs it on the rest.
func runWithFlags(t *testing.T, cmd commands.Command, svc *testutil.FakeService, argv []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()
	fs := newFlagSet(cmd)
	if err := fs.Parse(argv); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return runCommand(t, cmd, svc, fs.Args(), quiet)
}

var fixedNow = time.Date(2025, 1, 22, 10, 0, 0, 0, time.UTC)

func fixClock(t *testing.T) {
	t.Helper()
	old := commands.Now
	commands.Now = func() time.Time { return fixedNow }
	t.Cleanup(func() { commands.Now = old })
}

func expectCode(t *testing.T, want, got int, stderr string) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d (stderr %q)", want, got, stderr)
	}
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	cmd := &commands.VersionCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	expectCode(t, exitcode.Success, code, stderr)
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "taskboard 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	cmd := &commands.HelpCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	expectCode(t, exitcode.Success, code, stderr)
	for _, want := range []string{"Usage:", "taskboard list", "taskboard dash", "Common flags:"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}

// Tests for list command
func TestListCommand_Default(t *testing.T) {
	svc := testutil.NewSampleService()

	stdout, stderr, code := runWithFlags(t, &commands.ListCmd{}, svc, nil, false)

	expectCode(t, exitcode.Success, code, stderr)
	testutil.GoldenString(t, "list_default", stdout)
}

func TestListCommand_FilterAndSort(t *testing.T) {
	svc := testutil.NewSampleService()

	stdout, stderr, code := runWithFlags(t, &commands.ListCmd{}, svc,
		[]string{"--status", "todo", "--sort", "priority"}, false)

	expectCode(t, exitcode.Success, code, stderr)
	testutil.GoldenString(t, "list_todo_by_priority", stdout)
}

func TestListCommand_FlagsResetBetweenRuns(t *testing.T) {
	svc := testutil.NewSampleService()
	cmd := &commands.ListCmd{}

	runWithFlags(t, cmd, svc, []string{"--status", "todo"}, false)
	stdout, _, _ := runWithFlags(t, cmd, svc, nil, false)

	if strings.Count(stdout, "\n") != 7 {
		t.Errorf("expected header plus six rows, got:\n%s", stdout)
	}
}

func TestListCommand_Empty(t *testing.T) {
	svc := testutil.NewFakeService()

	stdout, stderr, code := runWithFlags(t, &commands.ListCmd{}, svc, nil, false)

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "no tasks found\n" {
		t.Errorf("expected 'no tasks found', got %q", stdout)
	}
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	svc := testutil.NewFakeService()

	stdout, _, code := runWithFlags(t, &commands.ListCmd{}, svc, nil, true)

	expectCode(t, exitcode.Success, code, "")
	if stdout != "" {
		t.Errorf("expected no stdout in quiet mode, got %q", stdout)
	}
}

func TestListCommand_BadFilter(t *testing.T) {
	svc := testutil.NewSampleService()

	_, stderr, code := runWithFlags(t, &commands.ListCmd{}, svc, []string{"--status", "blocked"}, false)

	expectCode(t, exitcode.UserError, code, stderr)
	if stderr != "error: unknown status filter: blocked\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if svc.ListCount() != 0 {
		t.Error("expected no backend call for a bad flag")
	}
}

func TestListCommand_BadSortKey(t *testing.T) {
	_, stderr, code := runWithFlags(t, &commands.ListCmd{}, testutil.NewSampleService(),
		[]string{"--sort", "assignee"}, false)

	expectCode(t, exitcode.UserError, code, stderr)
	if stderr != "error: unknown sort key: assignee\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestListCommand_FetchFailure(t *testing.T) {
	svc := testutil.NewSampleService()
	svc.ListTasksErr = errors.New("network unreachable")

	stdout, stderr, code := runWithFlags(t, &commands.ListCmd{}, svc, nil, false)

	expectCode(t, exitcode.BackendError, code, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: fetch failed: network unreachable\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestListCommand_SessionExpired(t *testing.T) {
	svc := testutil.NewSampleService()
	svc.ListTasksErr = fmt.Errorf("%w: token expired or revoked", session.ErrNoSession)

	_, stderr, code := runWithFlags(t, &commands.ListCmd{}, svc, nil, false)

	expectCode(t, exitcode.AuthError, code, stderr)
	if !strings.HasPrefix(stderr, "error: auth error: ") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for summary command
func TestSummaryCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.SummaryCmd{}, testutil.NewSampleService(), nil, false)

	expectCode(t, exitcode.Success, code, stderr)
	testutil.GoldenString(t, "summary", stdout)
}

// Tests for show command
func TestShowCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.ShowCmd{}, testutil.NewSampleService(), []string{"1"}, false)

	expectCode(t, exitcode.Success, code, stderr)
	testutil.GoldenString(t, "show", stdout)
}

func TestShowCommand_NotFound(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.ShowCmd{}, testutil.NewSampleService(), []string{"99"}, false)

	expectCode(t, exitcode.UserError, code, stderr)
	if stderr != "error: task not found: 99\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for add command
func TestAddCommand_Success(t *testing.T) {
	fixClock(t)
	svc := testutil.NewSampleService()

	stdout, stderr, code := runWithFlags(t, &commands.AddCmd{}, svc,
		[]string{"--desc", "Setup and usage", "--priority", "high", "--assignee", "Luc Petit", "Write", "the", "README"}, false)

	expectCode(t, exitcode.Success, code, stderr)
	id, ok := strings.CutPrefix(strings.TrimSpace(stdout), "ok ")
	if !ok || id == "" {
		t.Fatalf("expected 'ok <id>', got %q", stdout)
	}

	row, found := svc.Row(id)
	if !found {
		t.Fatalf("row %s not stored", id)
	}
	want := task.Row{
		ID:          id,
		Title:       "Write the README",
		Description: "Setup and usage",
		Status:      "todo",
		Priority:    "high",
		Assignee:    "Luc Petit",
		DueDate:     "2025-01-22",
	}
	row.CreatedAt = nil
	if row != want {
		t.Errorf("expected %+v, got %+v", want, row)
	}
}

func TestAddCommand_Quiet(t *testing.T) {
	svc := testutil.NewFakeService()

	stdout, stderr, code := runWithFlags(t, &commands.AddCmd{}, svc,
		[]string{"--desc", "d", "Title"}, true)

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout in quiet mode, got %q", stdout)
	}
}

func TestAddCommand_CompletedStampsCompletedAt(t *testing.T) {
	fixClock(t)
	svc := testutil.NewFakeService()

	stdout, stderr, code := runWithFlags(t, &commands.AddCmd{}, svc,
		[]string{"--desc", "d", "--status", "completed", "Title"}, false)

	expectCode(t, exitcode.Success, code, stderr)
	row, _ := svc.Row(strings.TrimPrefix(strings.TrimSpace(stdout), "ok "))
	if row.CompletedAt == nil || !row.CompletedAt.Equal(fixedNow) {
		t.Errorf("expected completed_at %v, got %v", fixedNow, row.CompletedAt)
	}
}

func TestAddCommand_Invalid(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want string
	}{
		{"no title", []string{"--desc", "d"}, "error: title required\n"},
		{"no description", []string{"Title"}, "error: invalid task: description required\n"},
		{"bad priority", []string{"--desc", "d", "--priority", "urgent", "Title"}, "error: invalid task: unknown priority: urgent\n"},
		{"bad status", []string{"--desc", "d", "--status", "blocked", "Title"}, "error: invalid task: unknown status: blocked\n"},
		{"bad due date", []string{"--desc", "d", "--due", "22/01/2025", "Title"}, "error: invalid task: due date must be YYYY-MM-DD: 22/01/2025\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := testutil.NewFakeService()
			_, stderr, code := runWithFlags(t, &commands.AddCmd{}, svc, tt.argv, false)

			expectCode(t, exitcode.UserError, code, stderr)
			if stderr != tt.want {
				t.Errorf("expected %q, got %q", tt.want, stderr)
			}
			if svc.ListCount() != 0 {
				t.Error("invalid drafts must not reach the backend")
			}
		})
	}
}

func TestAddCommand_InsertFailure(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.InsertTaskErr = errors.New("permission denied")

	_, stderr, code := runWithFlags(t, &commands.AddCmd{}, svc, []string{"--desc", "d", "Title"}, false)

	expectCode(t, exitcode.BackendError, code, stderr)
	if stderr != "error: create failed: permission denied\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for edit command
func TestEditCommand_ChangesOnlyGivenFields(t *testing.T) {
	svc := testutil.NewSampleService()

	stdout, stderr, code := runWithFlags(t, &commands.EditCmd{}, svc,
		[]string{"--status", "in-progress", "--assignee", "Luc Petit", "3"}, false)

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}
	row, _ := svc.Row("3")
	if row.Status != "in-progress" || row.Assignee != "Luc Petit" {
		t.Errorf("fields not updated: %+v", row)
	}
	if row.Title != "Test the features" || row.DueDate != "2025-01-30" || row.Priority != "medium" {
		t.Errorf("untouched fields changed: %+v", row)
	}
}

func TestEditCommand_ReopenClearsCompletedAt(t *testing.T) {
	svc := testutil.NewSampleService()

	_, stderr, code := runWithFlags(t, &commands.EditCmd{}, svc, []string{"--status", "todo", "1"}, false)

	expectCode(t, exitcode.Success, code, stderr)
	row, _ := svc.Row("1")
	if row.Status != "todo" || row.CompletedAt != nil {
		t.Errorf("expected todo with no completed_at, got %+v", row)
	}
}

func TestEditCommand_Title(t *testing.T) {
	svc := testutil.NewSampleService()

	_, stderr, code := runWithFlags(t, &commands.EditCmd{}, svc, []string{"--title", "Benchmark", "4"}, false)

	expectCode(t, exitcode.Success, code, stderr)
	if row, _ := svc.Row("4"); row.Title != "Benchmark" {
		t.Errorf("expected new title, got %q", row.Title)
	}
}

func TestEditCommand_EmptyTitleRejected(t *testing.T) {
	svc := testutil.NewSampleService()

	_, stderr, code := runWithFlags(t, &commands.EditCmd{}, svc, []string{"--title", " ", "4"}, false)

	expectCode(t, exitcode.UserError, code, stderr)
	if row, _ := svc.Row("4"); row.Title != "Optimize performance" {
		t.Errorf("title should be unchanged, got %q", row.Title)
	}
}

func TestEditCommand_NotFound(t *testing.T) {
	_, stderr, code := runWithFlags(t, &commands.EditCmd{}, testutil.NewSampleService(), []string{"zz"}, false)

	expectCode(t, exitcode.UserError, code, stderr)
	if stderr != "error: task not found: zz\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for done command
func TestDoneCommand_Success(t *testing.T) {
	fixClock(t)
	svc := testutil.NewSampleService()

	stdout, stderr, code := runCommand(t, &commands.DoneCmd{}, svc, []string{"2"}, false)

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}
	row, _ := svc.Row("2")
	if row.Status != "completed" {
		t.Errorf("expected completed, got %s", row.Status)
	}
	if row.CompletedAt == nil || !row.CompletedAt.Equal(fixedNow) {
		t.Errorf("expected completed_at %v, got %v", fixedNow, row.CompletedAt)
	}
	if row.Title != "Design the user interface" || row.Assignee != "Marie Martin" {
		t.Errorf("other fields changed: %+v", row)
	}
}

func TestDoneCommand_AlreadyCompleted(t *testing.T) {
	svc := testutil.NewSampleService()
	before, _ := svc.Row("1")

	stdout, stderr, code := runCommand(t, &commands.DoneCmd{}, svc, []string{"1"}, false)

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "already completed\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	after, _ := svc.Row("1")
	if !after.CompletedAt.Equal(*before.CompletedAt) {
		t.Error("completed_at should be unchanged")
	}
}

func TestDoneCommand_NoRef(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.DoneCmd{}, testutil.NewSampleService(), nil, false)

	expectCode(t, exitcode.UserError, code, stderr)
	if stderr != "error: task reference required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDoneCommand_UpdateFailure(t *testing.T) {
	svc := testutil.NewSampleService()
	svc.UpdateTaskErr = errors.New("timeout")

	_, stderr, code := runCommand(t, &commands.DoneCmd{}, svc, []string{"2"}, false)

	expectCode(t, exitcode.BackendError, code, stderr)
	if stderr != "error: update failed: timeout\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for rm command
func TestRmCommand_Success(t *testing.T) {
	svc := testutil.NewSampleService()

	stdout, stderr, code := runCommand(t, &commands.RmCmd{}, svc, []string{"5"}, false)

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected 'ok\\n', got %q", stdout)
	}
	if _, ok := svc.Row("5"); ok {
		t.Error("task 5 should be deleted")
	}
}

func TestRmCommand_UniquePrefix(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddRow(task.Row{ID: "3f2a9c", Title: "a", Description: "a", Status: "todo", Priority: "low", DueDate: "2025-01-01"})
	svc.AddRow(task.Row{ID: "7b1e00", Title: "b", Description: "b", Status: "todo", Priority: "low", DueDate: "2025-01-01"})

	_, stderr, code := runCommand(t, &commands.RmCmd{}, svc, []string{"3f"}, true)

	expectCode(t, exitcode.Success, code, stderr)
	if _, ok := svc.Row("3f2a9c"); ok {
		t.Error("expected 3f2a9c to be deleted")
	}
	if _, ok := svc.Row("7b1e00"); !ok {
		t.Error("7b1e00 should remain")
	}
}

func TestRmCommand_Ambiguous(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddRow(task.Row{ID: "ab1"})
	svc.AddRow(task.Row{ID: "ab2"})

	_, stderr, code := runCommand(t, &commands.RmCmd{}, svc, []string{"ab"}, false)

	expectCode(t, exitcode.UserError, code, stderr)
	if stderr != "error: ambiguous task reference: ab\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestRmCommand_DeleteFailure(t *testing.T) {
	svc := testutil.NewSampleService()
	svc.DeleteTaskErr = errors.New("row is locked")

	_, stderr, code := runCommand(t, &commands.RmCmd{}, svc, []string{"5"}, false)

	expectCode(t, exitcode.BackendError, code, stderr)
	if stderr != "error: delete failed: row is locked\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if _, ok := svc.Row("5"); !ok {
		t.Error("task 5 should remain after a failed delete")
	}
}

// Tests for whoami command
func TestWhoamiCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.WhoamiCmd{}, testutil.NewFakeService(), nil, false)

	expectCode(t, exitcode.Success, code, stderr)
	if stdout != "user-1 <jean.dupont@example.com>\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
}

func TestWhoamiCommand_NoSession(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.User = session.User{}

	_, stderr, code := runCommand(t, &commands.WhoamiCmd{}, svc, nil, false)

	expectCode(t, exitcode.AuthError, code, stderr)
	if stderr != "error: auth error: not logged in\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for the registry
func TestRegistry_DuplicateName(t *testing.T) {
	r := commands.NewRegistry()
	if err := r.Register(&commands.ListCmd{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(&commands.ListCmd{}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestRegistry_FindAlias(t *testing.T) {
	cmd, ok := commands.DefaultRegistry.Find("ls")
	if !ok {
		t.Fatal("expected ls alias")
	}
	if cmd.Name() != "list" {
		t.Errorf("expected list, got %s", cmd.Name())
	}
}

func TestRegistry_AllSortedUnique(t *testing.T) {
	var names []string
	for _, cmd := range commands.DefaultRegistry.All() {
		names = append(names, cmd.Name())
	}
	want := "add,dash,done,edit,help,list,login,logout,rm,show,summary,version,whoami"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
