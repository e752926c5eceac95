package commands

import (
	"errors"
	"fmt"
	"io"

	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/session"
	"taskboard/internal/task"
)

// reportError prints err to errOut and returns the matching exit code.
func reportError(errOut io.Writer, err error) int {
	switch {
	case errors.Is(err, session.ErrNoSession),
		errors.Is(err, config.ErrNoToken),
		errors.Is(err, config.ErrNotConfigured):
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
		return exitcode.AuthError
	case errors.Is(err, task.ErrInvalid),
		errors.Is(err, ErrTaskRefRequired),
		errors.Is(err, ErrTaskNotFound),
		errors.Is(err, ErrAmbiguousTaskRef):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	default:
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
}
