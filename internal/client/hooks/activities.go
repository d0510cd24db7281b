package hooks

import (
	"context"

	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/client/store"
)

// ActivityFilter selects a user's activities; an empty Status means all.
type ActivityFilter struct {
	UserID string
	Status string
}

var userActivitiesQuery = declareQuery(&Query[ActivityFilter, []models.Activity]{
	Name:       "user activities",
	Collection: models.TableActivities,
	Params: func(f ActivityFilter) map[string]any {
		return map[string]any{"user_id": f.UserID, "status": f.Status}
	},
	Load: func(ctx context.Context, c *Client, f ActivityFilter) ([]models.Activity, error) {
		q := store.From(models.TableActivities).
			Where(store.Eq("user_id", f.UserID)).
			OrderBy("created_at", true)
		if f.Status != "" {
			q = q.Where(store.Eq("status", f.Status))
		}
		rows, err := c.store.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		return store.DecodeAll[models.Activity]("activity", rows)
	},
})

type activityLog struct {
	Input models.ActivityInput
	Photo *File
}

var logActivity = declareMutation(&Mutation[activityLog, models.Activity]{
	Name:   "log activity",
	Writes: []string{models.TableActivities},
	Invalidates: []Dependency[activityLog, models.Activity]{
		{Collection: models.TableActivities, Params: func(in activityLog, _ models.Activity) map[string]any {
			return map[string]any{"user_id": in.Input.UserID}
		}},
		{Collection: models.TableActivities, Params: func(activityLog, models.Activity) map[string]any {
			return adminView
		}},
		{Collection: models.TableProfiles, Params: func(in activityLog, _ models.Activity) map[string]any {
			return map[string]any{"id": in.Input.UserID}
		}},
	},
	Run: func(ctx context.Context, c *Client, in activityLog) (models.Activity, error) {
		if err := models.Validate("activity", in.Input); err != nil {
			return models.Activity{}, err
		}
		row, err := store.Encode(in.Input)
		if err != nil {
			return models.Activity{}, err
		}
		// The photo goes first: a failed upload aborts before anything is written.
		if in.Photo != nil {
			url, err := c.UploadImage(ctx, models.BucketActivityPhotos, *in.Photo, in.Input.UserID)
			if err != nil {
				return models.Activity{}, err
			}
			row["photo_url"] = *url
		}
		row["status"] = models.ActivityPending
		saved, err := c.store.Upsert(ctx, models.TableActivities, row)
		if err != nil {
			return models.Activity{}, err
		}
		return store.Decode[models.Activity]("activity", saved)
	},
})

// UserActivities lists f.UserID's activities, newest first.
func (c *Client) UserActivities(ctx context.Context, f ActivityFilter) ([]models.Activity, error) {
	return userActivitiesQuery.Read(ctx, c, f)
}

// LogActivity submits an activity for moderation, uploading photo first
// when given.
func (c *Client) LogActivity(ctx context.Context, in models.ActivityInput, photo *File) (models.Activity, error) {
	return logActivity.Mutate(ctx, c, activityLog{Input: in, Photo: photo})
}
