package commands

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/oauth2"

	"taskboard/internal/backend/googletasks"
	"taskboard/internal/backend/supabase"
	"taskboard/internal/config"
	"taskboard/internal/exitcode"
	"taskboard/internal/service"
)

// EnvPassword supplies the Supabase password without a prompt.
const EnvPassword = "TASKBOARD_PASSWORD"

func init() {
	Register(&LoginCmd{In: os.Stdin})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	// In is read for the password when EnvPassword is unset.
	In io.Reader

	email string
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Authenticate with the backend" }
func (c *LoginCmd) Usage() string     { return "taskboard login [--email <address>]" }
func (c *LoginCmd) NeedsAuth() bool   { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	c.email = ""
	fs.StringVar(&c.email, "email", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	switch cfg.Settings.Backend {
	case config.BackendGoogleTasks:
		return c.loginGoogle(ctx, cfg, out, errOut)
	case config.BackendPostgres:
		fmt.Fprintln(errOut, "error: the postgres backend authenticates through its dsn; nothing to log in to")
		return exitcode.UserError
	default:
		return c.loginSupabase(ctx, cfg, out, errOut)
	}
}

func (c *LoginCmd) loginSupabase(ctx context.Context, cfg *config.Config, out, errOut io.Writer) int {
	s := cfg.Settings.Supabase
	if s.URL == "" || s.AnonKey == "" {
		fmt.Fprintf(errOut, "error: supabase url and anon_key must be set in %s\n", cfg.SettingsPath())
		return exitcode.AuthError
	}
	if c.email == "" {
		fmt.Fprintln(errOut, "error: --email required")
		return exitcode.UserError
	}

	password := os.Getenv(EnvPassword)
	if password == "" {
		if c.In == nil {
			fmt.Fprintf(errOut, "error: password required (set %s)\n", EnvPassword)
			return exitcode.UserError
		}
		fmt.Fprint(errOut, "Password: ")
		line, err := bufio.NewReader(c.In).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			fmt.Fprintf(errOut, "error: failed to read password: %v\n", err)
			return exitcode.UserError
		}
		password = strings.TrimRight(line, "\r\n")
	}

	token, err := supabase.NewAuth(s.URL, s.AnonKey, nil).SignIn(ctx, c.email, password)
	if err != nil {
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
		return exitcode.AuthError
	}
	return saveToken(cfg, token, out, errOut)
}

func (c *LoginCmd) loginGoogle(ctx context.Context, cfg *config.Config, out, errOut io.Writer) int {
	if !cfg.HasOAuthClient() {
		fmt.Fprintf(errOut, "error: oauth_client.json not found in %s\n\n", cfg.Dir)
		fmt.Fprintln(errOut, "To authenticate with Google Tasks, you need OAuth credentials:")
		fmt.Fprintln(errOut, "")
		fmt.Fprintln(errOut, "1. Go to https://console.cloud.google.com/apis/credentials")
		fmt.Fprintln(errOut, "2. Create a project (or select an existing one)")
		fmt.Fprintln(errOut, "3. Enable the Google Tasks API:")
		fmt.Fprintln(errOut, "   https://console.cloud.google.com/apis/library/tasks.googleapis.com")
		fmt.Fprintln(errOut, "4. Create OAuth 2.0 credentials:")
		fmt.Fprintln(errOut, "   - Click 'Create Credentials' > 'OAuth client ID'")
		fmt.Fprintln(errOut, "   - Choose 'Desktop app' as application type")
		fmt.Fprintln(errOut, "   - Download the JSON file")
		fmt.Fprintln(errOut, "5. Save it as:")
		fmt.Fprintf(errOut, "   %s/%s\n", cfg.Dir, config.OAuthClientFile)
		fmt.Fprintln(errOut, "")
		fmt.Fprintln(errOut, "Then run 'taskboard login' again.")
		return exitcode.AuthError
	}

	if cfg.HasToken() && googletasks.TokenValid(ctx, cfg) {
		if !cfg.Quiet {
			fmt.Fprintln(out, "already logged in")
		}
		return exitcode.Success
	}

	token, err := googletasks.Login(ctx, cfg, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.AuthError
	}
	return saveToken(cfg, token, out, errOut)
}

func saveToken(cfg *config.Config, token *oauth2.Token, out, errOut io.Writer) int {
	if err := cfg.SaveToken(token); err != nil {
		fmt.Fprintf(errOut, "error: failed to save token: %v\n", err)
		return exitcode.AuthError
	}
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
