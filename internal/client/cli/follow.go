package cli

import (
	"context"
	"time"

	"github.com/agita-app/agita/internal/client/models"
)

// followInterval is how often a followed read is re-requested. Fresh
// entries answer from the cache, so only invalidated or stale ones reach
// the store.
var followInterval = time.Second

var followTables = []string{
	models.TableActivities,
	models.TableProfiles,
	models.TableActivityTypes,
}

// follow keeps a watched read current until ctx ends: remote row changes
// invalidate the cache (when realtime is configured) and a ticker asks the
// watch to read again.
func (a *App) follow(ctx context.Context, refresh func(context.Context)) {
	if a.realtime != nil {
		go func() {
			err := a.hooks.WatchRemoteChanges(ctx, a.realtime, followTables)
			if err != nil && ctx.Err() == nil {
				a.log.Warn(ctx, "realtime stopped, polling only", "error", err)
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(followInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				refresh(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}
