package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/notesync/internal/client/client"
	"github.com/dmitrijs2005/notesync/internal/client/config"
	"github.com/dmitrijs2005/notesync/internal/client/services"
	"github.com/dmitrijs2005/notesync/internal/filex"
	"google.golang.org/grpc"
)

// App is one command's connection to the server and the local cache.
type App struct {
	config *config.Config
	db     *sql.DB
	client *client.GRPCClient
	auth   services.AuthService
	notes  *services.NoteService
	user   string
}

// NewApp creates the cache directory, opens and migrates the cache and dials
// the server. Token refreshes are written back to the cache; failures to do
// so are reported on warn.
func NewApp(ctx context.Context, c *config.Config, warn io.Writer, dial ...grpc.DialOption) (*App, error) {
	dir, err := filex.EnsureDir(c.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	c.CacheDir = dir

	db, err := client.OpenDatabase(ctx, c.CachePath())
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	sink := services.PersistTokens(db, func(err error) { fmt.Fprintln(warn, "warning:", err) })
	apiClient, err := client.NewNoteSyncClientService(c.ServerEndpointAddr, sink, dial...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &App{
		config: c,
		db:     db,
		client: apiClient,
		auth:   services.NewAuthService(apiClient, db),
		notes: services.NewNoteService(apiClient, db, services.RetryPolicy{
			Attempts: 3,
			MinDelay: c.ReconnectMinDelay,
			MaxDelay: c.ReconnectMaxDelay,
		}),
	}, nil
}

// restore loads the cached session, failing when nobody is signed in.
func (a *App) restore(ctx context.Context) error {
	user, err := a.auth.Restore(ctx)
	if errors.Is(err, services.ErrNotSignedIn) {
		return errors.New("not signed in, run `notesync login` first")
	}
	if err != nil {
		return err
	}
	a.user = user
	return nil
}

// requestContext bounds a single request/response call.
func (a *App) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) Close() error {
	return errors.Join(a.client.Close(), a.db.Close())
}
