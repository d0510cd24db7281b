package cli

import (
	"github.com/agita-app/agita/internal/client/hooks"
	"github.com/spf13/cobra"
)

func (a *App) eventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Join or leave events",
	}

	var f hooks.EventFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List active events by start date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, err := a.hooks.Events(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.printJSON(events)
		},
	}
	list.Flags().BoolVar(&f.UpcomingOnly, "upcoming", false, "hide events that already ended")

	status := &cobra.Command{
		Use:   "status <event-id>",
		Short: "Tell whether you joined an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.identity()
			if err != nil {
				return err
			}
			joined, err := a.hooks.Participation(cmd.Context(), id.UserID, args[0])
			if err != nil {
				return err
			}
			return a.printJSON(map[string]any{"event_id": args[0], "joined": joined})
		},
	}

	join := &cobra.Command{
		Use:   "join <event-id>",
		Short: "Join an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.identity()
			if err != nil {
				return err
			}
			p, err := a.hooks.JoinEvent(cmd.Context(), id.UserID, args[0])
			if err != nil {
				return err
			}
			return a.printJSON(p)
		},
	}

	leave := &cobra.Command{
		Use:   "leave <event-id>",
		Short: "Leave an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.identity()
			if err != nil {
				return err
			}
			if err := a.hooks.LeaveEvent(cmd.Context(), id.UserID, args[0]); err != nil {
				return err
			}
			return a.printJSON(map[string]any{"event_id": args[0], "joined": false})
		},
	}

	participants := &cobra.Command{
		Use:   "participants <event-id>",
		Short: "List who joined an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := a.hooks.EventParticipants(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(ps)
		},
	}

	cmd.AddCommand(list, status, join, leave, participants)
	return cmd
}
