package commands

import (
	"errors"
	"fmt"
	"strings"

	"taskboard/internal/task"
)

var (
	// ErrTaskRefRequired indicates no task reference was provided.
	ErrTaskRefRequired = errors.New("task reference required")

	// ErrTaskNotFound indicates no task matches the reference.
	ErrTaskNotFound = errors.New("task not found")

	// ErrAmbiguousTaskRef indicates the reference is a prefix of several ids.
	ErrAmbiguousTaskRef = errors.New("ambiguous task reference")
)

// ParseTaskRef extracts the single task reference from args.
func ParseTaskRef(args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", ErrTaskRefRequired
	}
	if len(args) > 1 {
		return "", fmt.Errorf("%w: unexpected argument: %s", task.ErrInvalid, args[1])
	}
	return strings.TrimSpace(args[0]), nil
}

// ResolveTaskRef finds the task whose id is ref or, failing that, the only
// task whose id starts with ref.
func ResolveTaskRef(tasks []task.Task, ref string) (task.Task, error) {
	var matches []task.Task
	for _, t := range tasks {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return task.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return task.Task{}, fmt.Errorf("%w: %s", ErrAmbiguousTaskRef, ref)
	}
}
