package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/notesync/internal/client/services"
	"github.com/dmitrijs2005/notesync/internal/filex"
	"github.com/spf13/cobra"
)

func newAttachCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <file>",
		Short: "Upload a file and print its attachment token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.withApp(cmd, true, func(ctx context.Context, a *App) error {
				ctx, cancel := a.requestContext(ctx)
				defer cancel()
				token, err := a.notes.Attach(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
}

func newFetchCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <token>",
		Short: "Download an attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			direct, _ := cmd.Flags().GetBool("direct")

			return s.withApp(cmd, true, func(ctx context.Context, a *App) error {
				ctx, cancel := a.requestContext(ctx)
				defer cancel()
				att, err := a.notes.Fetch(ctx, args[0], services.FetchOptions{Direct: direct})
				if err != nil {
					return err
				}

				path := out
				if path == "" {
					path = filepath.Base(att.Name)
				}
				if path == "" || path == "." || path == string(filepath.Separator) {
					path = args[0]
				}
				if err := filex.WriteFileAtomic(path, att.Data, 0o600); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes) to %s\n", att.Name, len(att.Data), path)
				return nil
			})
		},
	}
	cmd.Flags().StringP("out", "o", "", "Output path (default: the attachment's name)")
	cmd.Flags().Bool("direct", false, "Download straight from the blob store when possible")
	return cmd
}
