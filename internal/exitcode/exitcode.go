// Package exitcode defines exit codes for the CLI.
package exitcode

// Exit codes returned by taskboard commands.
const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates bad arguments, an invalid task or an unknown
	// task reference.
	UserError = 1

	// AuthError indicates nobody is logged in or the backend is not
	// configured.
	AuthError = 2

	// BackendError indicates the backend rejected or failed a request.
	BackendError = 3
)

// Text returns a short name for code, for logs.
func Text(code int) string {
	switch code {
	case Success:
		return "success"
	case UserError:
		return "user error"
	case AuthError:
		return "auth error"
	case BackendError:
		return "backend error"
	default:
		return "unknown"
	}
}
