package cli

import (
	"github.com/spf13/cobra"
)

func (a *App) sessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect the signed-in identity",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "whoami",
		Short: "Print the user carried by the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.identity()
			if err != nil {
				return err
			}
			return a.printJSON(map[string]any{
				"user_id":      id.UserID,
				"display_name": id.DisplayName,
				"email":        id.Email,
				"role":         id.Role,
				"admin":        id.IsAdmin(),
			})
		},
	})
	return cmd
}

func (a *App) onboardingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboarding",
		Short: "Show or set the onboarding-completed flag",
	}

	show := func(done bool) error {
		return a.printJSON(map[string]any{"onboarding_completed": done})
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Tell whether onboarding was completed on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			done, err := a.prefs.OnboardingCompleted(cmd.Context())
			if err != nil {
				return err
			}
			return show(done)
		},
	}

	set := func(use, short string, done bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := a.prefs.SetOnboardingCompleted(cmd.Context(), done); err != nil {
					return err
				}
				return show(done)
			},
		}
	}

	cmd.AddCommand(status,
		set("done", "Mark onboarding as completed", true),
		set("reset", "Show onboarding again", false),
	)
	return cmd
}
