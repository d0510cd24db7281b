package cli

import (
	"github.com/agita-app/agita/internal/client/hooks"
	"github.com/spf13/cobra"
)

func (a *App) rewardsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "Browse and redeem rewards with SUOR",
	}

	var f hooks.RewardFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List rewards, cheapest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rewards, err := a.hooks.Rewards(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.printJSON(rewards)
		},
	}
	list.Flags().StringVar(&f.Category, "category", "", "only this category")
	list.Flags().BoolVar(&f.AvailableOnly, "available", false, "only rewards that can be redeemed")

	redeem := &cobra.Command{
		Use:   "redeem <reward-id>",
		Short: "Spend SUOR on a reward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.identity()
			if err != nil {
				return err
			}
			r, err := a.hooks.RedeemReward(cmd.Context(), id.UserID, args[0])
			if err != nil {
				return err
			}
			return a.printJSON(r)
		},
	}

	history := &cobra.Command{
		Use:     "redemptions",
		Aliases: []string{"history"},
		Short:   "List your redemptions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.identity()
			if err != nil {
				return err
			}
			rs, err := a.hooks.Redemptions(cmd.Context(), id.UserID)
			if err != nil {
				return err
			}
			return a.printJSON(rs)
		},
	}

	cmd.AddCommand(list, redeem, history)
	return cmd
}
