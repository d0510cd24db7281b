package hooks

import (
	"context"

	"github.com/agita-app/agita/internal/common"
	"github.com/agita-app/agita/internal/logging"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-visible message, the toast of a UI.
type Notification struct {
	Level   Level
	Title   string
	Message string
	Err     error
}

// Kind is the error taxonomy name of n.Err, "ok" when there is none.
func (n Notification) Kind() string { return common.Kind(n.Err) }

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Log logging.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	args := []any{"title", n.Title, "message", n.Message}
	if n.Err != nil {
		args = append(args, "kind", n.Kind(), "error", n.Err)
	}
	switch n.Level {
	case LevelError:
		l.Log.Error(ctx, "notification", args...)
	case LevelWarning:
		l.Log.Warn(ctx, "notification", args...)
	default:
		l.Log.Info(ctx, "notification", args...)
	}
}
