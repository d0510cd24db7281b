package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agita-app/agita/internal/common"
	"github.com/spf13/cobra"
)

var errNotAdmin = fmt.Errorf("%w: not an admin", common.ErrUnauthorized)

func (a *App) rootCommand() *cobra.Command {
	var askToken bool

	root := &cobra.Command{
		Use:   "agita",
		Short: "Agita activity tracker client",
		Long: `agita - command-line client for the Agita activity tracker.

Reads go through a shared query cache; writes invalidate the reads they affect.
Output is JSON on stdout, notifications go to stderr.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if askToken {
				tok, err := a.readSecret()
				if err != nil {
					return fmt.Errorf("read token: %w", err)
				}
				a.config.AccessToken = strings.TrimSpace(string(tok))
			}
			return a.open(cmd.Context())
		},
	}

	// Consumed by the config loader before the tree runs; declared here so
	// the parser accepts them.
	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "JSON config file")
	pf.StringP("store-url", "u", "", "store base URL")
	pf.StringP("store-key", "k", "", "store API key")
	pf.StringP("token", "t", "", "access token (JWT)")
	pf.StringP("local-db", "l", "", "local preferences database")
	pf.BoolVar(&askToken, "ask-token", false, "prompt for the access token")

	root.AddGroup(
		&cobra.Group{ID: "user", Title: "User Commands:"},
		&cobra.Group{ID: "admin", Title: "Admin Commands:"},
	)

	for _, c := range []*cobra.Command{
		a.profileCommand(),
		a.activityTypesCommand(),
		a.activitiesCommand(),
		a.rewardsCommand(),
		a.eventsCommand(),
		a.onboardingCommand(),
		a.sessionCommand(),
	} {
		c.GroupID = "user"
		root.AddCommand(c)
	}
	admin := a.adminCommand()
	admin.GroupID = "admin"
	root.AddCommand(admin)

	return root
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, common.ErrMissingConfig):
		return 1
	case errors.Is(err, common.ErrUnauthorized):
		return 3
	case errors.Is(err, common.ErrValidation):
		return 4
	default:
		return 2
	}
}
