package commands

import (
	"errors"
	"testing"

	"taskboard/internal/task"
)

func TestParseTaskRef(t *testing.T) {
	ref, err := ParseTaskRef([]string{" 3f2a "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "3f2a" {
		t.Errorf("expected trimmed ref, got %q", ref)
	}
}

func TestParseTaskRef_Missing(t *testing.T) {
	for _, args := range [][]string{nil, {""}, {"  "}} {
		if _, err := ParseTaskRef(args); !errors.Is(err, ErrTaskRefRequired) {
			t.Errorf("args %q: expected ErrTaskRefRequired, got %v", args, err)
		}
	}
}

func TestParseTaskRef_ExtraArgument(t *testing.T) {
	_, err := ParseTaskRef([]string{"1", "2"})
	if !errors.Is(err, task.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	expectedMsg := "invalid task: unexpected argument: 2"
	if err.Error() != expectedMsg {
		t.Errorf("expected %q, got %q", expectedMsg, err.Error())
	}
}

func refTasks() []task.Task {
	return []task.Task{
		{ID: "a1b2c3d4-0000"},
		{ID: "a1b2ffff-0000"},
		{ID: "b7"},
		{ID: "b"},
	}
}

func TestResolveTaskRef_ExactID(t *testing.T) {
	got, err := ResolveTaskRef(refTasks(), "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// "b" is also a prefix of "b7"; the exact match wins.
	if got.ID != "b" {
		t.Errorf("expected b, got %s", got.ID)
	}
}

func TestResolveTaskRef_UniquePrefix(t *testing.T) {
	got, err := ResolveTaskRef(refTasks(), "a1b2c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "a1b2c3d4-0000" {
		t.Errorf("expected a1b2c3d4-0000, got %s", got.ID)
	}
}

func TestResolveTaskRef_Ambiguous(t *testing.T) {
	_, err := ResolveTaskRef(refTasks(), "a1b2")
	if !errors.Is(err, ErrAmbiguousTaskRef) {
		t.Fatalf("expected ErrAmbiguousTaskRef, got %v", err)
	}
	if err.Error() != "ambiguous task reference: a1b2" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestResolveTaskRef_NotFound(t *testing.T) {
	_, err := ResolveTaskRef(refTasks(), "zz")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err.Error() != "task not found: zz" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestResolveTaskRef_Empty(t *testing.T) {
	if _, err := ResolveTaskRef(nil, "1"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}
