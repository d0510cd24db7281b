package hooks

import (
	"context"
	"errors"

	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/common"
)

// rewardImageOwner prefixes reward image object names.
const rewardImageOwner = "reward"

type rewardSave struct {
	Input models.RewardInput
	Image *File
}

var rewardsChanged = []string{models.TableRewards}

var saveReward = declareMutation(&Mutation[rewardSave, models.Reward]{
	Name:        "save reward",
	Writes:      rewardsChanged,
	Invalidates: []Dependency[rewardSave, models.Reward]{{Collection: models.TableRewards}},
	Run: func(ctx context.Context, c *Client, in rewardSave) (models.Reward, error) {
		if err := models.Validate("reward", in.Input); err != nil {
			return models.Reward{}, err
		}
		// Upload before upsert; a failed upload leaves the catalog untouched.
		if in.Image != nil {
			url, err := c.UploadImage(ctx, models.BucketRewardImages, *in.Image, rewardImageOwner)
			if err != nil {
				return models.Reward{}, err
			}
			in.Input.ImageURL = url
		}
		row, err := store.Encode(in.Input)
		if err != nil {
			return models.Reward{}, err
		}
		saved, err := c.store.Upsert(ctx, models.TableRewards, row)
		if err != nil {
			return models.Reward{}, err
		}
		return store.Decode[models.Reward]("reward", saved)
	},
})

var deleteReward = declareMutation(&Mutation[string, struct{}]{
	Name:        "delete reward",
	Writes:      rewardsChanged,
	Invalidates: []Dependency[string, struct{}]{{Collection: models.TableRewards}},
	Run: func(ctx context.Context, c *Client, id string) (struct{}, error) {
		row, err := c.store.QuerySingle(ctx, store.From(models.TableRewards).Where(store.Eq("id", id)))
		if errors.Is(err, common.ErrNotFound) {
			return struct{}{}, nil
		}
		if err != nil {
			return struct{}{}, err
		}
		reward, err := store.Decode[models.Reward]("reward", row)
		if err != nil {
			return struct{}{}, err
		}
		if err := c.store.Remove(ctx, models.TableRewards, id); err != nil {
			return struct{}{}, err
		}
		// The row is gone; a leftover image is only reported.
		if reward.ImageURL != nil && *reward.ImageURL != "" {
			_ = c.DeleteImage(ctx, models.BucketRewardImages, *reward.ImageURL)
		}
		return struct{}{}, nil
	},
})

type availability struct {
	ID        string
	Available bool
}

var toggleReward = declareMutation(&Mutation[availability, models.Reward]{
	Name:        "toggle reward availability",
	Writes:      rewardsChanged,
	Invalidates: []Dependency[availability, models.Reward]{{Collection: models.TableRewards}},
	Run: func(ctx context.Context, c *Client, in availability) (models.Reward, error) {
		if in.ID == "" {
			return models.Reward{}, common.NewValidationError("reward", "id", "required")
		}
		saved, err := c.store.Upsert(ctx, models.TableRewards, store.Row{"id": in.ID, "is_available": in.Available})
		if err != nil {
			return models.Reward{}, err
		}
		return store.Decode[models.Reward]("reward", saved)
	},
})

// SaveReward creates (empty ID) or updates a reward, uploading image first
// when given.
func (c *Client) SaveReward(ctx context.Context, in models.RewardInput, image *File) (models.Reward, error) {
	return saveReward.Mutate(ctx, c, rewardSave{Input: in, Image: image})
}

// DeleteReward removes a reward and then its image. Deleting a missing
// reward is not an error.
func (c *Client) DeleteReward(ctx context.Context, id string) error {
	_, err := deleteReward.Mutate(ctx, c, id)
	return err
}

// ToggleRewardAvailability flips whether a reward can be redeemed.
func (c *Client) ToggleRewardAvailability(ctx context.Context, id string, available bool) (models.Reward, error) {
	return toggleReward.Mutate(ctx, c, availability{ID: id, Available: available})
}
