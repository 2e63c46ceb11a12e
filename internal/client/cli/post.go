package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/services"
	"github.com/spf13/cobra"
)

func newPostCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post [text...]",
		Short: "Commit a new entry",
		Long:  "Commit a new entry. Without text arguments the body is read from the terminal until an empty line.",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			files, _ := cmd.Flags().GetStringSlice("file")
			tokens, _ := cmd.Flags().GetStringSlice("attachment")

			body := strings.Join(args, " ")
			if body == "" && len(files) == 0 && len(tokens) == 0 {
				var err error
				body, err = getMultiline(s.in, "Entry text", cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}
			if strings.TrimSpace(body) == "" && len(files) == 0 && len(tokens) == 0 {
				return errors.New("nothing to post")
			}

			return s.withApp(cmd, true, func(ctx context.Context, a *App) error {
				ctx, cancel := a.requestContext(ctx)
				defer cancel()
				e, err := a.notes.Post(ctx, services.PostRequest{Body: body, Kind: kind, Files: files, Attachments: tokens})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Committed #%d at %s\n", e.ID, e.CommittedAt.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().String("kind", "plain", "Content kind: plain|markdown")
	cmd.Flags().StringSliceP("file", "f", nil, "File to attach (repeatable)")
	cmd.Flags().StringSlice("attachment", nil, "Token printed by the attach command (repeatable)")
	return cmd
}
