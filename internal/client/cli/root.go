package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/notesync/internal/client/config"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

// Options customizes the command tree. Zero values use the process's stdin
// and a plain TCP connection.
type Options struct {
	In          io.Reader
	DialOptions []grpc.DialOption
}

type state struct {
	opts Options
	in   *bufio.Reader
	cfg  *config.Config
}

// NewRootCommand builds the notesync command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	st := &state{opts: opts, in: bufio.NewReader(opts.In)}

	root := &cobra.Command{
		Use:               "notesync",
		Short:             "Shared append-only notes with live sync",
		SilenceUsage:      true,
		PersistentPreRunE: st.loadConfig,
	}
	root.PersistentFlags().String("config", os.Getenv("NOTESYNC_CONFIG"), "Config file (JSON or YAML)")
	root.PersistentFlags().String("server", "", "Server gRPC address, host:port")
	root.PersistentFlags().String("cache-dir", "", "Local cache directory")
	root.PersistentFlags().String("device", "", "Device name for the server-side cursor")

	root.AddCommand(
		newRegisterCommand(st),
		newLoginCommand(st),
		newLogoutCommand(st),
		newStatusCommand(st),
		newPostCommand(st),
		newHistoryCommand(st),
		newTailCommand(st),
		newAttachCommand(st),
		newFetchCommand(st),
	)
	return root
}

// loadConfig reads the config file, then applies flags given on the command
// line.
func (s *state) loadConfig(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("server") {
		cfg.ServerEndpointAddr, _ = cmd.Flags().GetString("server")
	}
	if cmd.Flags().Changed("cache-dir") {
		cfg.CacheDir, _ = cmd.Flags().GetString("cache-dir")
	}
	if cmd.Flags().Changed("device") {
		cfg.Device, _ = cmd.Flags().GetString("device")
	}
	s.cfg = cfg
	return nil
}

// withApp opens an App for the duration of fn. With signedIn set the cached
// session is restored first.
func (s *state) withApp(cmd *cobra.Command, signedIn bool, fn func(ctx context.Context, a *App) error) error {
	ctx := cmd.Context()
	a, err := NewApp(ctx, s.cfg, cmd.ErrOrStderr(), s.opts.DialOptions...)
	if err != nil {
		return err
	}
	defer a.Close()

	if signedIn {
		if err := a.restore(ctx); err != nil {
			return err
		}
	}
	return fn(ctx, a)
}
