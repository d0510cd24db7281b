package hooks

import (
	"context"
	"fmt"

	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/client/store"
	"github.com/agita-app/agita/internal/common"
)

// RewardFilter narrows the reward catalog.
type RewardFilter struct {
	Category      string
	AvailableOnly bool
}

var rewardsQuery = declareQuery(&Query[RewardFilter, []models.Reward]{
	Name:       "rewards",
	Collection: models.TableRewards,
	Params: func(f RewardFilter) map[string]any {
		return map[string]any{"category": f.Category, "available_only": f.AvailableOnly}
	},
	Load: func(ctx context.Context, c *Client, f RewardFilter) ([]models.Reward, error) {
		q := store.From(models.TableRewards).OrderBy("suor_cost", false)
		if f.Category != "" {
			q = q.Where(store.Eq("category", f.Category))
		}
		if f.AvailableOnly {
			q = q.Where(store.Eq("is_available", true))
		}
		rows, err := c.store.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		return store.DecodeAll[models.Reward]("reward", rows)
	},
})

var redemptionsQuery = declareQuery(&Query[string, []models.RewardRedemption]{
	Name:       "redemptions",
	Collection: models.TableRewardRedemptions,
	Params:     func(userID string) map[string]any { return map[string]any{"user_id": userID} },
	Load: func(ctx context.Context, c *Client, userID string) ([]models.RewardRedemption, error) {
		rows, err := c.store.Query(ctx, store.From(models.TableRewardRedemptions).
			Where(store.Eq("user_id", userID)).
			OrderBy("created_at", true))
		if err != nil {
			return nil, err
		}
		return store.DecodeAll[models.RewardRedemption]("redemption", rows)
	},
})

type redemption struct {
	UserID   string
	RewardID string
}

var redeemReward = declareMutation(&Mutation[redemption, models.RewardRedemption]{
	Name:   "redeem reward",
	Writes: []string{models.TableRewardRedemptions},
	Invalidates: []Dependency[redemption, models.RewardRedemption]{
		{Collection: models.TableRewards},
		{Collection: models.TableProfiles, Params: func(in redemption, _ models.RewardRedemption) map[string]any {
			return map[string]any{"id": in.UserID}
		}},
		{Collection: models.TableRewardRedemptions, Params: func(in redemption, _ models.RewardRedemption) map[string]any {
			return map[string]any{"user_id": in.UserID}
		}},
	},
	Run: func(ctx context.Context, c *Client, in redemption) (models.RewardRedemption, error) {
		row, err := c.store.QuerySingle(ctx, store.From(models.TableRewards).Where(store.Eq("id", in.RewardID)))
		if err != nil {
			return models.RewardRedemption{}, err
		}
		reward, err := store.Decode[models.Reward]("reward", row)
		if err != nil {
			return models.RewardRedemption{}, err
		}
		if !reward.IsAvailable {
			return models.RewardRedemption{}, fmt.Errorf("%w: reward %s is not available", common.ErrConflict, reward.ID)
		}
		if reward.Stock != nil && *reward.Stock == 0 {
			return models.RewardRedemption{}, fmt.Errorf("%w: reward %s is out of stock", common.ErrConflict, reward.ID)
		}
		saved, err := c.store.Upsert(ctx, models.TableRewardRedemptions, store.Row{
			"user_id":    in.UserID,
			"reward_id":  reward.ID,
			"suor_spent": reward.SUORCost,
			"status":     "pending",
		})
		if err != nil {
			return models.RewardRedemption{}, err
		}
		return store.Decode[models.RewardRedemption]("redemption", saved)
	},
})

// Rewards lists the reward catalog, cheapest first.
func (c *Client) Rewards(ctx context.Context, f RewardFilter) ([]models.Reward, error) {
	return rewardsQuery.Read(ctx, c, f)
}

// Redemptions lists userID's redemptions, newest first.
func (c *Client) Redemptions(ctx context.Context, userID string) ([]models.RewardRedemption, error) {
	return redemptionsQuery.Read(ctx, c, userID)
}

// RedeemReward spends the reward's SUOR cost. Balance checks happen in the
// store; an unavailable or sold-out reward fails with common.ErrConflict
// before anything is written.
func (c *Client) RedeemReward(ctx context.Context, userID, rewardID string) (models.RewardRedemption, error) {
	return redeemReward.Mutate(ctx, c, redemption{UserID: userID, RewardID: rewardID})
}
