package cli

import (
	"time"

	"github.com/agita-app/agita/internal/client/hooks"
	"github.com/agita-app/agita/internal/client/models"
	"github.com/agita-app/agita/internal/common"
	"github.com/spf13/cobra"
)

// profileOutput shows where the profile came from; a placeholder carries
// the failure it stands in for.
type profileOutput struct {
	Profile models.Profile `json:"profile"`
	Source  string         `json:"source"`
	Cause   string         `json:"cause,omitempty"`
	Saved   *bool          `json:"saved,omitempty"`
}

func newProfileOutput(r hooks.Result[models.Profile]) profileOutput {
	out := profileOutput{Profile: r.Value, Source: r.Source.String()}
	if r.Cause != nil {
		out.Cause = common.Kind(r.Cause) + ": " + r.Cause.Error()
	}
	return out
}

func (a *App) profileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your profile",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show your profile, SUOR balance and level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.identity()
			if err != nil {
				return err
			}
			r := a.hooks.Profile(cmd.Context(), id)
			if r.Err != nil {
				return r.Err
			}
			return a.printJSON(newProfileOutput(r))
		},
	}

	var name, city, avatar string
	update := &cobra.Command{
		Use:   "update",
		Short: "Change your name, city or avatar",
		Example: `  agita profile update --name "Ana Souza" --city Recife
  agita profile update --avatar ./me.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, err := a.identity()
			if err != nil {
				return err
			}
			current := a.hooks.Profile(ctx, id)
			if current.Err != nil {
				return current.Err
			}

			var patch models.ProfilePatch
			if cmd.Flags().Changed("name") {
				patch.FullName = &name
			}
			if cmd.Flags().Changed("city") {
				patch.City = &city
			}

			img, err := a.readImage(ctx, avatar)
			if err != nil {
				return err
			}

			saved := current.Value
			if img != nil {
				saved, err = a.hooks.UploadAvatar(ctx, id, current, *img)
			}
			if err == nil && (patch.FullName != nil || patch.City != nil) {
				saved, err = a.hooks.UpdateProfile(ctx, id, current, patch)
			}

			ok := err == nil
			out := profileOutput{Profile: saved, Source: current.Source.String(), Saved: &ok}
			if err != nil {
				// a placeholder keeps the attempted edit; show it, unsaved
				if !current.IsFallback() {
					return err
				}
				out.Cause = err.Error()
				if perr := a.printJSON(out); perr != nil {
					return perr
				}
				return err
			}
			return a.printJSON(out)
		},
	}
	update.Flags().StringVar(&name, "name", "", "full name")
	update.Flags().StringVar(&city, "city", "", "city")
	update.Flags().StringVar(&avatar, "avatar", "", "path of a new avatar image")

	var count int
	watch := &cobra.Command{
		Use:   "watch",
		Short: "Print every state change of your cached profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.identity()
			if err != nil {
				return err
			}
			w := a.hooks.WatchProfile(cmd.Context(), id)
			defer w.Close()
			return printViews(cmd, a, w.Views(), count)
		},
	}
	watch.Flags().IntVar(&count, "count", 0, "stop after this many updates (0 = until interrupted)")

	cmd.AddCommand(show, update, watch)
	return cmd
}

type viewOutput[T any] struct {
	Data      *T        `json:"data,omitempty"`
	IsLoading bool      `json:"is_loading"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitzero"`
}

// printViews writes views until ctx ends, the stream closes or count views
// were printed.
func printViews[T any](cmd *cobra.Command, a *App, views <-chan hooks.View[T], count int) error {
	ctx := cmd.Context()
	for n := 0; count <= 0 || n < count; n++ {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-views:
			if !ok {
				return nil
			}
			out := viewOutput[T]{IsLoading: v.IsLoading, FetchedAt: v.FetchedAt}
			if v.HasData {
				out.Data = &v.Data
			}
			if v.Err != nil {
				out.Error = v.Err.Error()
			}
			if err := a.printJSON(out); err != nil {
				return err
			}
		}
	}
	return nil
}
