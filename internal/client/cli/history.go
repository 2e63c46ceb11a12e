package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/client"
	"github.com/spf13/cobra"
)

func parseTimeFlag(cmd *cobra.Command, name string) (int64, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return 0, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s; expected RFC3339", name)
	}
	return t.UnixNano(), nil
}

func newHistoryCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List committed entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := client.Query{}
			q.AfterID, _ = cmd.Flags().GetInt64("after")
			q.UpToID, _ = cmd.Flags().GetInt64("up-to")
			q.Author, _ = cmd.Flags().GetString("author")
			q.Text, _ = cmd.Flags().GetString("text")
			q.Limit, _ = cmd.Flags().GetInt("limit")

			var err error
			if q.Since, err = parseTimeFlag(cmd, "since"); err != nil {
				return err
			}
			if q.Until, err = parseTimeFlag(cmd, "until"); err != nil {
				return err
			}

			return s.withApp(cmd, true, func(ctx context.Context, a *App) error {
				ctx, cancel := a.requestContext(ctx)
				defer cancel()
				list, fromCache, err := a.notes.History(ctx, q)
				if err != nil {
					return err
				}
				if fromCache {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "server unavailable, showing cached entries")
				}
				for _, e := range list {
					printEntry(cmd.OutOrStdout(), e)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64("after", 0, "Only entries after this id")
	cmd.Flags().Int64("up-to", 0, "Only entries up to this id")
	cmd.Flags().String("author", "", "Only entries by this user")
	cmd.Flags().String("since", "", "Committed at or after (RFC3339)")
	cmd.Flags().String("until", "", "Committed before (RFC3339)")
	cmd.Flags().String("text", "", "Body pattern; * matches any run of characters")
	cmd.Flags().Int("limit", 50, "Maximum entries (0 = no limit)")
	return cmd
}
