package tui

import (
	"context"
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"taskboard/internal/session"
	"taskboard/internal/store"
)

// Run opens st against sess and runs the dashboard until the user quits or
// ctx is done. Store changes, including those caused by other clients, are
// pushed into the program as they happen.
func Run(ctx context.Context, st *store.Store, sess session.Session, logger *slog.Logger) error {
	m := New(ctx, st, sess, logger)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	unwatch := st.Watch(func(snap store.Snapshot) {
		p.Send(SnapshotMsg{Snapshot: snap})
	})
	defer unwatch()
	defer func() {
		if err := st.Close(); err != nil {
			m.logger.Warn("close store", "err", err)
		}
	}()

	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	if fm, ok := final.(Model); ok {
		return fm.Err()
	}
	return nil
}
