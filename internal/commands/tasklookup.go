package commands

import (
	"context"

	"taskboard/internal/config"
	"taskboard/internal/service"
	"taskboard/internal/store"
	"taskboard/internal/task"
)

// loadStore creates a store over svc and fetches the task list into it.
func loadStore(ctx context.Context, cfg *config.Config, svc service.Service) (*store.Store, error) {
	st := store.New(svc, store.WithLogger(cfg.Logger))
	if err := st.FetchAll(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// lookupTask loads the task list and resolves the task reference in args.
func lookupTask(ctx context.Context, cfg *config.Config, svc service.Service, args []string) (*store.Store, task.Task, error) {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return nil, task.Task{}, err
	}
	st, err := loadStore(ctx, cfg, svc)
	if err != nil {
		return nil, task.Task{}, err
	}
	t, err := ResolveTaskRef(st.Tasks(), ref)
	if err != nil {
		return nil, task.Task{}, err
	}
	return st, t, nil
}
