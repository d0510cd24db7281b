package cli

import (
	"github.com/agita-app/agita/internal/client/hooks"
	"github.com/agita-app/agita/internal/client/models"
	"github.com/spf13/cobra"
)

func (a *App) activityTypesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "activity-types",
		Aliases: []string{"types"},
		Short:   "Browse the activity catalog",
	}

	var f hooks.ActivityTypeFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List activity types ordered by name",
		Example: `  agita activity-types list --category running --active
  agita activity-types list --search bike`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			types, err := a.hooks.ActivityTypes(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.printJSON(types)
		},
	}
	list.Flags().StringVar(&f.Category, "category", "", "only this category")
	list.Flags().BoolVar(&f.ActiveOnly, "active", false, "only active types")
	list.Flags().StringVar(&f.Search, "search", "", "case-insensitive name search")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one activity type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.hooks.ActivityType(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(t)
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func (a *App) activitiesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activities",
		Short: "List or log your activities",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List your activities, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.identity()
			if err != nil {
				return err
			}
			acts, err := a.hooks.UserActivities(cmd.Context(), hooks.ActivityFilter{UserID: id.UserID, Status: status})
			if err != nil {
				return err
			}
			return a.printJSON(acts)
		},
	}
	list.Flags().StringVar(&status, "status", "", "pending, approved or rejected")

	var (
		in    models.ActivityInput
		photo string
	)
	log := &cobra.Command{
		Use:     "log",
		Short:   "Submit an activity for review",
		Example: `  agita activities log --type <activity-type-id> --minutes 45 --photo run.jpg`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, err := a.identity()
			if err != nil {
				return err
			}
			img, err := a.readImage(ctx, photo)
			if err != nil {
				return err
			}
			in.UserID = id.UserID
			act, err := a.hooks.LogActivity(ctx, in, img)
			if err != nil {
				return err
			}
			return a.printJSON(act)
		},
	}
	log.Flags().StringVar(&in.ActivityTypeID, "type", "", "activity type id")
	log.Flags().IntVar(&in.DurationMinutes, "minutes", 0, "duration in minutes (1-1440)")
	log.Flags().StringVar(&in.Description, "description", "", "optional description")
	log.Flags().StringVar(&photo, "photo", "", "optional photo")
	_ = log.MarkFlagRequired("type")
	_ = log.MarkFlagRequired("minutes")

	cmd.AddCommand(list, log)
	return cmd
}
