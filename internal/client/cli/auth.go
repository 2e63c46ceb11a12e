package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// credentials returns the --username flag or prompts for it, then prompts
// for the password. The caller owns the returned password buffer.
func (s *state) credentials(cmd *cobra.Command) (string, []byte, error) {
	user, _ := cmd.Flags().GetString("username")
	if user == "" {
		var err error
		user, err = getSimpleText(s.in, "Enter user name", cmd.OutOrStdout())
		if err != nil {
			return "", nil, err
		}
	}
	if user == "" {
		return "", nil, errors.New("user name is required")
	}

	pw, err := getPassword(cmd.OutOrStdout())
	if err != nil {
		return "", nil, err
	}
	return user, pw, nil
}

func newRegisterCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, pw, err := s.credentials(cmd)
			if err != nil {
				return err
			}
			return s.withApp(cmd, false, func(ctx context.Context, a *App) error {
				ctx, cancel := a.requestContext(ctx)
				defer cancel()
				if err := a.auth.Register(ctx, user, pw); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Registered and signed in as %s\n", user)
				return nil
			})
		},
	}
	cmd.Flags().StringP("username", "u", "", "User name")
	return cmd
}

func newLoginCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and cache the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, pw, err := s.credentials(cmd)
			if err != nil {
				return err
			}
			return s.withApp(cmd, false, func(ctx context.Context, a *App) error {
				ctx, cancel := a.requestContext(ctx)
				defer cancel()
				if err := a.auth.Login(ctx, user, pw); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user)
				return nil
			})
		},
	}
	cmd.Flags().StringP("username", "u", "", "User name")
	return cmd
}

func newLogoutCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withApp(cmd, false, func(ctx context.Context, a *App) error {
				if err := a.auth.Logout(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

func newStatusCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the server's last update and this device's cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withApp(cmd, false, func(ctx context.Context, a *App) error {
				rctx, cancel := a.requestContext(ctx)
				defer cancel()
				st, err := a.auth.Ping(rctx)
				if err != nil {
					return err
				}
				last, err := a.notes.LastAcked(ctx, a.config.Device)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "server:        %s\n", a.config.ServerEndpointAddr)
				_, _ = fmt.Fprintf(out, "last entry:    %d\n", st.MaxID)
				if !st.LastCommittedAt.IsZero() {
					_, _ = fmt.Fprintf(out, "last commit:   %s\n", st.LastCommittedAt.Format(time.RFC3339))
				}
				_, _ = fmt.Fprintf(out, "live sessions: %d\n", st.LiveSessions)
				_, _ = fmt.Fprintf(out, "device:        %s (acked %d)\n", a.config.Device, last)
				return nil
			})
		},
	}
}
