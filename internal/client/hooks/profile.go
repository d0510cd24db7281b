package hooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/client/session"
	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/common"
)

// Placeholder profile defaults.
const (
	StarterSUOR        = 250
	DefaultCity        = "São Paulo"
	DefaultDisplayName = "Atleta Agita"
)

var profileQuery = declareQuery(&Query[string, models.Profile]{
	Name:       "profile",
	Collection: models.TableProfiles,
	StaleAfter: func(p Policy) time.Duration { return p.ProfileStaleAfter },
	Params:     func(id string) map[string]any { return map[string]any{"id": id} },
	Load: func(ctx context.Context, c *Client, id string) (models.Profile, error) {
		row, err := c.store.QuerySingle(ctx, store.From(models.TableProfiles).Where(store.Eq("id", id)))
		if err != nil {
			return models.Profile{}, err
		}
		return store.Decode[models.Profile]("profile", row)
	},
})

type profileUpdate struct {
	UserID string
	Patch  models.ProfilePatch
}

var updateProfile = declareMutation(&Mutation[profileUpdate, models.Profile]{
	Name:   "update profile",
	Writes: []string{models.TableProfiles},
	Invalidates: []Dependency[profileUpdate, models.Profile]{
		{Collection: models.TableProfiles, Params: func(in profileUpdate, _ models.Profile) map[string]any {
			return map[string]any{"id": in.UserID}
		}},
		{Collection: models.TableActivities, Params: func(profileUpdate, models.Profile) map[string]any {
			return adminView
		}},
	},
	Run: func(ctx context.Context, c *Client, in profileUpdate) (models.Profile, error) {
		if err := models.Validate("profile", in.Patch); err != nil {
			return models.Profile{}, err
		}
		row, err := store.Encode(in.Patch)
		if err != nil {
			return models.Profile{}, err
		}
		row["id"] = in.UserID
		saved, err := c.store.Upsert(ctx, models.TableProfiles, row)
		if err != nil {
			return models.Profile{}, err
		}
		return store.Decode[models.Profile]("profile", saved)
	},
})

// PlaceholderProfile synthesizes the profile shown when the real one cannot
// be read. It is tagged Fallback and never sent to the store.
func PlaceholderProfile(id session.Identity, now time.Time) models.Profile {
	name := id.DisplayName
	if name == "" {
		name = DefaultDisplayName
	}
	return models.Profile{
		ID:        id.UserID,
		FullName:  name,
		City:      DefaultCity,
		TotalSUOR: StarterSUOR,
		XP:        0,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
		Fallback:  true,
	}
}

// Profile reads the signed-in user's profile. A failed or empty read is
// replaced by a placeholder (a Fallback result carrying the cause) unless
// the failure is an authentication one, which is returned as an error.
func (c *Client) Profile(ctx context.Context, id session.Identity) Result[models.Profile] {
	if !id.Authenticated() {
		return Fail[models.Profile](fmt.Errorf("profile: %w", common.ErrUnauthorized))
	}
	p, err := profileQuery.Read(ctx, c, id.UserID)
	switch {
	case err == nil:
		return Ok(p)
	case errors.Is(err, common.ErrUnauthorized), ctx.Err() != nil:
		return Fail[models.Profile](fmt.Errorf("profile: %w", err))
	}
	c.log.Warn(ctx, "profile unavailable, using placeholder",
		"user_id", id.UserID, "kind", common.Kind(err), "error", err)
	return Fallback(PlaceholderProfile(id, c.now()), err)
}

// WatchProfile streams the profile cache entry. Views carry the raw read
// outcome; no placeholder is substituted.
func (c *Client) WatchProfile(ctx context.Context, id session.Identity) *Watch[models.Profile] {
	return profileQuery.Watch(ctx, c, id.UserID)
}

// UpdateProfile writes patch to the user's profile. Only the patch travels
// to the store, never placeholder fields.
//
// When the write fails and current is a placeholder, the patch merged into
// the placeholder is returned together with the error, so the caller can
// keep showing the edit without mistaking it for a saved one.
func (c *Client) UpdateProfile(ctx context.Context, id session.Identity, current Result[models.Profile], patch models.ProfilePatch) (models.Profile, error) {
	if !id.Authenticated() {
		return models.Profile{}, fmt.Errorf("update profile: %w", common.ErrUnauthorized)
	}
	saved, err := updateProfile.Mutate(ctx, c, profileUpdate{UserID: id.UserID, Patch: patch})
	if err != nil {
		if current.IsFallback() {
			return patch.Apply(current.Value), err
		}
		return models.Profile{}, err
	}
	return saved, nil
}

// UploadAvatar uploads f and points the profile's avatar_url at it.
func (c *Client) UploadAvatar(ctx context.Context, id session.Identity, current Result[models.Profile], f File) (models.Profile, error) {
	if !id.Authenticated() {
		return models.Profile{}, fmt.Errorf("upload avatar: %w", common.ErrUnauthorized)
	}
	url, err := c.UploadImage(ctx, models.BucketAvatars, f, id.UserID)
	if err != nil {
		return models.Profile{}, err
	}
	return c.UpdateProfile(ctx, id, current, models.ProfilePatch{AvatarURL: url})
}
