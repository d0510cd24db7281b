package hooks

import (
	"context"
	"fmt"
	"time"

	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/common"
)

// adminView tags the moderation list keys inside the activities collection.
var adminView = map[string]any{"view": "admin"}

// AdminActivityFilter narrows the moderation list. An empty Status (or
// "all") lists every status; Search matches descriptions.
type AdminActivityFilter struct {
	Status string
	Search string
}

var adminActivitiesQuery = declareQuery(&Query[AdminActivityFilter, []models.AdminActivity]{
	Name:       "admin activities",
	Collection: models.TableActivities,
	Reads:      []string{models.TableActivities, models.TableProfiles, models.TableActivityTypes},
	Params: func(f AdminActivityFilter) map[string]any {
		return map[string]any{"view": "admin", "status": f.Status, "search": f.Search}
	},
	Load: loadAdminActivities,
})

func loadAdminActivities(ctx context.Context, c *Client, f AdminActivityFilter) ([]models.AdminActivity, error) {
	q := store.From(models.TableActivities).OrderBy("created_at", true)
	if f.Status != "" && f.Status != "all" {
		q = q.Where(store.Eq("status", f.Status))
	}
	if f.Search != "" {
		q = q.Where(store.ILike("description", f.Search))
	}
	rows, err := c.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	acts, err := store.DecodeAll[models.Activity]("activity", rows)
	if err != nil {
		return nil, err
	}
	if len(acts) == 0 {
		return []models.AdminActivity{}, nil
	}

	userIDs := make([]string, 0, len(acts))
	typeIDs := make([]string, 0, len(acts))
	for _, a := range acts {
		userIDs = append(userIDs, a.UserID)
		typeIDs = append(typeIDs, a.ActivityTypeID)
	}

	profRows, err := c.store.Query(ctx, store.From(models.TableProfiles).Where(store.In("id", unique(userIDs))))
	if err != nil {
		return nil, err
	}
	profiles, err := store.DecodeAll[models.Profile]("profile", profRows)
	if err != nil {
		return nil, err
	}
	typeRows, err := c.store.Query(ctx, store.From(models.TableActivityTypes).Where(store.In("id", unique(typeIDs))))
	if err != nil {
		return nil, err
	}
	types, err := store.DecodeAll[models.ActivityType]("activity type", typeRows)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		byUser[p.ID] = p
	}
	byType := make(map[string]string, len(types))
	for _, t := range types {
		byType[t.ID] = t.Name
	}

	out := make([]models.AdminActivity, 0, len(acts))
	for _, a := range acts {
		aa := models.AdminActivity{Activity: a, ActivityTypeName: byType[a.ActivityTypeID]}
		if p, ok := byUser[a.UserID]; ok {
			aa.SubmitterName = p.FullName
			aa.SubmitterAvatar = p.AvatarURL
		}
		out = append(out, aa)
	}
	return out, nil
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type statusChange struct {
	ActivityID string
	Status     string
	ReviewerID string
}

// setActivityStatus invalidates the whole activities collection: the
// moderation list has one key per filter combination and a status change
// can move a row between any of them.
var setActivityStatus = declareMutation(&Mutation[statusChange, models.Activity]{
	Name:   "set activity status",
	Writes: []string{models.TableActivities},
	Invalidates: []Dependency[statusChange, models.Activity]{
		{Collection: models.TableActivities},
		{Collection: models.TableProfiles},
	},
	Run: func(ctx context.Context, c *Client, in statusChange) (models.Activity, error) {
		switch in.Status {
		case models.ActivityApproved, models.ActivityRejected, models.ActivityPending:
		default:
			return models.Activity{}, common.NewValidationError("activity", "status", fmt.Sprintf("unknown status %q", in.Status))
		}
		if in.ActivityID == "" {
			return models.Activity{}, common.NewValidationError("activity", "id", "required")
		}
		row := store.Row{
			"id":          in.ActivityID,
			"status":      in.Status,
			"reviewed_by": in.ReviewerID,
			"reviewed_at": c.now().UTC().Format(time.RFC3339),
		}
		saved, err := c.store.Upsert(ctx, models.TableActivities, row)
		if err != nil {
			return models.Activity{}, err
		}
		return store.Decode[models.Activity]("activity", saved)
	},
})

// AdminActivities lists activities for moderation with submitter and type
// names joined in.
func (c *Client) AdminActivities(ctx context.Context, f AdminActivityFilter) ([]models.AdminActivity, error) {
	return adminActivitiesQuery.Read(ctx, c, f)
}

// WatchAdminActivities streams the moderation list for f.
func (c *Client) WatchAdminActivities(ctx context.Context, f AdminActivityFilter) *Watch[[]models.AdminActivity] {
	return adminActivitiesQuery.Watch(ctx, c, f)
}

// SetActivityStatus approves, rejects or reopens an activity.
func (c *Client) SetActivityStatus(ctx context.Context, activityID, status, reviewerID string) (models.Activity, error) {
	return setActivityStatus.Mutate(ctx, c, statusChange{ActivityID: activityID, Status: status, ReviewerID: reviewerID})
}
