package settings

import (
	"context"

	"github.com/rs/zerolog"

	"regstudio/internal/notes"
	"regstudio/internal/storage"
)

type ActivityStore interface {
	AppendActivity(ctx context.Context, e storage.ActivityEntry) error
	ListActivity(ctx context.Context, workspaceID string, limit uint64) ([]storage.ActivityEntry, error)
}

// Activity persists the user-facing log and mirrors it to the process log.
type Activity struct {
	store  ActivityStore
	logger zerolog.Logger
}

func NewActivity(store ActivityStore, logger zerolog.Logger) *Activity {
	return &Activity{store: store, logger: logger}
}

func (a *Activity) Log(ctx context.Context, workspace, message string, severity notes.Severity) {
	ev := a.logger.Info()
	switch severity {
	case notes.SeverityWarning:
		ev = a.logger.Warn()
	case notes.SeverityError:
		ev = a.logger.Error()
	}
	ev.Str("workspace", workspace).Str("severity", string(severity)).Msg(message)

	// the entry outlives a cancelled request
	ctx = context.WithoutCancel(ctx)
	if err := a.store.AppendActivity(ctx, storage.ActivityEntry{
		WorkspaceID: workspace,
		Message:     message,
		Severity:    string(severity),
	}); err != nil {
		a.logger.Error().Err(err).Str("workspace", workspace).Msg("append activity")
	}
}

func (a *Activity) Recent(ctx context.Context, workspace string, limit int) ([]storage.ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	return a.store.ListActivity(ctx, workspace, uint64(limit))
}
