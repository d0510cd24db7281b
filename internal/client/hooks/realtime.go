package hooks

import (
	"context"

	"github.com/agita-app/agita/internal/client/querycache"
	"github.com/agita-app/agita/internal/client/store/rest"
)

// ChangeSource pushes row change notifications, as rest.Realtime does.
type ChangeSource interface {
	Listen(ctx context.Context, tables []string, h rest.ChangeHandler) error
}

// WatchRemoteChanges invalidates cached reads whenever a row of one of
// tables changes remotely, including reads that only join the table. It
// blocks until ctx is done or the source fails.
func (c *Client) WatchRemoteChanges(ctx context.Context, src ChangeSource, tables []string) error {
	return src.Listen(ctx, tables, func(ch rest.Change) {
		n := 0
		for _, coll := range catalog.Dependents(ch.Table) {
			n += c.cache.Invalidate(querycache.Collection(coll, nil))
		}
		c.log.Debug(ctx, "remote change", "table", ch.Table, "type", ch.Type, "invalidated", n)
	})
}
