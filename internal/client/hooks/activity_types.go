package hooks

import (
	"context"
	"time"

	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/client/store"
)

// ActivityTypeFilter narrows the activity type catalog.
type ActivityTypeFilter struct {
	Category   string
	ActiveOnly bool
	Search     string
}

var activityTypesQuery = declareQuery(&Query[ActivityTypeFilter, []models.ActivityType]{
	Name:       "activity types",
	Collection: models.TableActivityTypes,
	StaleAfter: func(p Policy) time.Duration { return p.ActivityTypesStaleAfter },
	Params: func(f ActivityTypeFilter) map[string]any {
		return map[string]any{"category": f.Category, "active_only": f.ActiveOnly, "search": f.Search}
	},
	Load: func(ctx context.Context, c *Client, f ActivityTypeFilter) ([]models.ActivityType, error) {
		q := store.From(models.TableActivityTypes).OrderBy("name", false)
		if f.Category != "" {
			q = q.Where(store.Eq("category", f.Category))
		}
		if f.ActiveOnly {
			q = q.Where(store.Eq("is_active", true))
		}
		if f.Search != "" {
			q = q.Where(store.ILike("name", f.Search))
		}
		rows, err := c.store.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		return store.DecodeAll[models.ActivityType]("activity type", rows)
	},
})

var activityTypeQuery = declareQuery(&Query[string, models.ActivityType]{
	Name:       "activity type",
	Collection: models.TableActivityTypes,
	StaleAfter: func(p Policy) time.Duration { return p.ActivityTypesStaleAfter },
	Params:     func(id string) map[string]any { return map[string]any{"id": id} },
	Load: func(ctx context.Context, c *Client, id string) (models.ActivityType, error) {
		row, err := c.store.QuerySingle(ctx, store.From(models.TableActivityTypes).Where(store.Eq("id", id)))
		if err != nil {
			return models.ActivityType{}, err
		}
		return store.Decode[models.ActivityType]("activity type", row)
	},
})

// ActivityTypes lists activity types matching f, ordered by name.
func (c *Client) ActivityTypes(ctx context.Context, f ActivityTypeFilter) ([]models.ActivityType, error) {
	return activityTypesQuery.Read(ctx, c, f)
}

// WatchActivityTypes streams the catalog for f.
func (c *Client) WatchActivityTypes(ctx context.Context, f ActivityTypeFilter) *Watch[[]models.ActivityType] {
	return activityTypesQuery.Watch(ctx, c, f)
}

// ActivityType reads one activity type.
func (c *Client) ActivityType(ctx context.Context, id string) (models.ActivityType, error) {
	return activityTypeQuery.Read(ctx, c, id)
}
