package cli

import (
	"context"
	"fmt"

	"taskboard/internal/backend/googletasks"
	"taskboard/internal/backend/postgres"
	"taskboard/internal/backend/supabase"
	"taskboard/internal/config"
	"taskboard/internal/service"
)

// NewService creates the backend named by cfg.Settings.Backend.
func NewService(ctx context.Context, cfg *config.Config) (service.Service, error) {
	switch cfg.Settings.Backend {
	case config.BackendSupabase:
		c, err := supabase.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendPostgres:
		c, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendGoogleTasks:
		c, err := googletasks.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend: %s", config.ErrNotConfigured, cfg.Settings.Backend)
	}
}
