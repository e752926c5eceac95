package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in the settings file.
const (
	BackendSupabase    = "supabase"
	BackendPostgres    = "postgres"
	BackendGoogleTasks = "googletasks"
)

// Environment overrides.
const (
	EnvBackend     = "TASKBOARD_BACKEND"
	EnvPostgresDSN = "TASKBOARD_POSTGRES_DSN"
)

// Settings is the contents of config.yaml.
type Settings struct {
	Backend     string              `yaml:"backend"`
	Supabase    SupabaseSettings    `yaml:"supabase"`
	Postgres    PostgresSettings    `yaml:"postgres"`
	GoogleTasks GoogleTasksSettings `yaml:"googletasks"`
}

// SupabaseSettings locates a hosted project.
type SupabaseSettings struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"`
	Table   string `yaml:"table"`
}

// PostgresSettings locates a database holding the task table.
type PostgresSettings struct {
	DSN     string `yaml:"dsn"`
	Table   string `yaml:"table"`
	Channel string `yaml:"channel"`
}

// GoogleTasksSettings selects the task list used as the table.
type GoogleTasksSettings struct {
	List         string        `yaml:"list"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DefaultSettings returns the settings used when config.yaml is absent.
func DefaultSettings() Settings {
	return Settings{
		Backend:     BackendSupabase,
		Supabase:    SupabaseSettings{Table: "tasks"},
		Postgres:    PostgresSettings{Table: "tasks", Channel: "tasks_changes"},
		GoogleTasks: GoogleTasksSettings{List: "@default", PollInterval: 15 * time.Second},
	}
}

// LoadSettings reads the settings file at path over the defaults and applies
// environment overrides. A missing file is not an error.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Settings{}, fmt.Errorf("failed to read %s: %w", SettingsFile, err)
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("invalid %s: %w", SettingsFile, err)
		}
	}

	if v := os.Getenv(EnvBackend); v != "" {
		s.Backend = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		s.Postgres.DSN = v
	}
	s.fillDefaults()

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// fillDefaults restores defaults for keys the file set to empty values.
func (s *Settings) fillDefaults() {
	d := DefaultSettings()
	if s.Backend == "" {
		s.Backend = d.Backend
	}
	if s.Supabase.Table == "" {
		s.Supabase.Table = d.Supabase.Table
	}
	if s.Postgres.Table == "" {
		s.Postgres.Table = d.Postgres.Table
	}
	if s.Postgres.Channel == "" {
		s.Postgres.Channel = d.Postgres.Channel
	}
	if s.GoogleTasks.List == "" {
		s.GoogleTasks.List = d.GoogleTasks.List
	}
	if s.GoogleTasks.PollInterval <= 0 {
		s.GoogleTasks.PollInterval = d.GoogleTasks.PollInterval
	}
}

// Validate checks that the backend name is known.
func (s Settings) Validate() error {
	switch s.Backend {
	case BackendSupabase, BackendPostgres, BackendGoogleTasks:
		return nil
	default:
		return fmt.Errorf("unknown backend: %s", s.Backend)
	}
}
