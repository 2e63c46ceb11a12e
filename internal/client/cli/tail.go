package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/client/services"
	"github.com/spf13/cobra"
)

func newTailCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow new entries live",
		Long: "Follow new entries live. The feed resumes after the last entry this device " +
			"acknowledged and reconnects on its own when the connection drops.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			count, _ := cmd.Flags().GetInt("count")
			after, _ := cmd.Flags().GetInt64("after")

			return s.withApp(cmd, true, func(ctx context.Context, a *App) error {
				err := a.notes.Follow(ctx, services.FollowOptions{
					Device:   a.config.Device,
					AfterID:  after,
					Count:    count,
					MinDelay: a.config.ReconnectMinDelay,
					MaxDelay: a.config.ReconnectMaxDelay,
					Handler: func(e models.Entry) error {
						printEntry(cmd.OutOrStdout(), e)
						return nil
					},
					OnReconnect: func(delay time.Duration, cause error) {
						_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "connection lost (%v), retrying in %s\n", cause, delay.Round(time.Millisecond))
					},
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().Int("count", 0, "Stop after N entries (0 = follow until interrupted)")
	cmd.Flags().Int64("after", 0, "Start after this id instead of the device's cursor")
	return cmd
}
