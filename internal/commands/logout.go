package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskboard/internal/backend/supabase"
	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/service"
)

func init() {
	Register(&LogoutCmd{})
}

// LogoutCmd implements the logout command. The stored token is always
// removed; for Supabase the session is also revoked, on a best-effort basis.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string      { return "logout" }
func (c *LogoutCmd) Aliases() []string { return nil }
func (c *LogoutCmd) Synopsis() string  { return "Remove stored credentials" }
func (c *LogoutCmd) Usage() string     { return "taskboard logout" }
func (c *LogoutCmd) NeedsAuth() bool   { return false }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	if !cfg.HasToken() {
		if !cfg.Quiet {
			fmt.Fprintln(out, "not logged in")
		}
		return exitcode.Success
	}

	if cfg.Settings.Backend == config.BackendSupabase {
		revokeSupabase(ctx, cfg)
	}

	if err := cfg.RemoveToken(); err != nil {
		fmt.Fprintf(errOut, "error: failed to remove token: %v\n", err)
		return exitcode.AuthError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

func revokeSupabase(ctx context.Context, cfg *config.Config) {
	s := cfg.Settings.Supabase
	if s.URL == "" || s.AnonKey == "" {
		return
	}
	token, err := cfg.LoadToken()
	if err != nil {
		return
	}
	if err := supabase.NewAuth(s.URL, s.AnonKey, nil).SignOut(ctx, token.AccessToken); err != nil && cfg.Logger != nil {
		cfg.Logger.Warn("revoke session", "err", err)
	}
}
