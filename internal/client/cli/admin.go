package cli

import (
	"github.com/agita-app/agita/internal/client/hooks"
	"github.com/agita-app/agita/internal/client/models"
	"github.com/spf13/cobra"
)

func (a *App) adminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Moderate activities and manage rewards (admin role)",
	}
	cmd.AddCommand(a.adminActivitiesCommand(), a.adminRewardsCommand())
	return cmd
}

func (a *App) adminActivitiesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activities",
		Short: "Review submitted activities",
	}

	var (
		f      hooks.AdminActivityFilter
		follow bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List activities with submitter and type",
		Example: `  agita admin activities list --status pending
  agita admin activities list --follow    # print the queue on every change`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.requireAdmin(); err != nil {
				return err
			}
			if follow {
				w := a.hooks.WatchAdminActivities(cmd.Context(), f)
				defer w.Close()
				a.follow(cmd.Context(), w.Refresh)
				return printViews(cmd, a, w.Views(), 0)
			}
			acts, err := a.hooks.AdminActivities(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.printJSON(acts)
		},
	}
	list.Flags().StringVar(&f.Status, "status", "", "pending, approved, rejected or all")
	list.Flags().StringVar(&f.Search, "search", "", "case-insensitive description search")
	list.Flags().BoolVar(&follow, "follow", false, "keep printing the list as it changes")

	setStatus := func(use, short, status string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <activity-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := a.requireAdmin()
				if err != nil {
					return err
				}
				act, err := a.hooks.SetActivityStatus(cmd.Context(), args[0], status, id.UserID)
				if err != nil {
					return err
				}
				return a.printJSON(act)
			},
		}
	}

	cmd.AddCommand(list,
		setStatus("approve", "Approve an activity", models.ActivityApproved),
		setStatus("reject", "Reject an activity", models.ActivityRejected),
		setStatus("reopen", "Put an activity back in the queue", models.ActivityPending),
	)
	return cmd
}

func (a *App) adminRewardsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "Create, edit and remove rewards",
	}

	var (
		in    models.RewardInput
		stock int
		image string
	)
	save := &cobra.Command{
		Use:   "save",
		Short: "Create a reward, or update one with --id",
		Example: `  agita admin rewards save --title "Squeeze" --category gym --cost 300 --available --image squeeze.png
  agita admin rewards save --id <reward-id> --title "Squeeze" --category gym --cost 250`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := a.requireAdmin(); err != nil {
				return err
			}
			if cmd.Flags().Changed("stock") {
				in.Stock = &stock
			}
			img, err := a.readImage(ctx, image)
			if err != nil {
				return err
			}
			r, err := a.hooks.SaveReward(ctx, in, img)
			if err != nil {
				return err
			}
			return a.printJSON(r)
		},
	}
	save.Flags().StringVar(&in.ID, "id", "", "reward to update")
	save.Flags().StringVar(&in.Title, "title", "", "title")
	save.Flags().StringVar(&in.Description, "description", "", "description")
	save.Flags().StringVar(&in.Category, "category", "", "category")
	save.Flags().IntVar(&in.SUORCost, "cost", 0, "price in SUOR")
	save.Flags().IntVar(&stock, "stock", 0, "units left (unlimited when omitted)")
	save.Flags().BoolVar(&in.IsAvailable, "available", false, "open for redemption")
	save.Flags().StringVar(&image, "image", "", "image file")

	del := &cobra.Command{
		Use:     "delete <reward-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a reward and its image",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireAdmin(); err != nil {
				return err
			}
			if err := a.hooks.DeleteReward(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.printJSON(map[string]any{"id": args[0], "deleted": true})
		},
	}

	var available bool
	toggle := &cobra.Command{
		Use:   "toggle <reward-id>",
		Short: "Open or close a reward for redemption",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireAdmin(); err != nil {
				return err
			}
			r, err := a.hooks.ToggleRewardAvailability(cmd.Context(), args[0], available)
			if err != nil {
				return err
			}
			return a.printJSON(r)
		},
	}
	toggle.Flags().BoolVar(&available, "available", true, "new availability")

	cmd.AddCommand(save, del, toggle)
	return cmd
}
