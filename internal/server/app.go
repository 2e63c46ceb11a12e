// Package server wires the notesync core together and runs it: storage,
// the durable log and its derived index, the commit path, live delivery and
// the gRPC and HTTP front ends.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/attachments"
	"github.com/dmitrijs2005/notesync/internal/server/auth"
	"github.com/dmitrijs2005/notesync/internal/server/blobstore"
	"github.com/dmitrijs2005/notesync/internal/server/config"
	"github.com/dmitrijs2005/notesync/internal/server/dispatcher"
	"github.com/dmitrijs2005/notesync/internal/server/durablelog"
	"github.com/dmitrijs2005/notesync/internal/server/entrystore"
	"github.com/dmitrijs2005/notesync/internal/server/httpapi"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/notesync/internal/server/sequencer"
	"github.com/dmitrijs2005/notesync/internal/server/services"
	"github.com/dmitrijs2005/notesync/internal/server/sessions"

	gs "github.com/dmitrijs2005/notesync/internal/server/grpc"
)

const closeTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	log      *durablelog.Log
	resolver *attachments.Resolver
	disp     *dispatcher.Dispatcher
	closers  []func()

	userService *services.UserService
	noteService *services.NoteService
}

// NewApp opens storage, replays the log into the entry index and builds the
// services. Nothing is served until Run.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	dialect := dbx.Dialect(c.DatabaseDriver)
	if dialect != dbx.DialectPostgres && dialect != dbx.DialectSQLite {
		return nil, fmt.Errorf("unknown database driver %q", c.DatabaseDriver)
	}

	db, err := repomanager.OpenDB(ctx, dialect, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db}

	if err := app.build(ctx, dialect); err != nil {
		_ = db.Close()
		app.runClosers()
		return nil, err
	}
	return app, nil
}

func (app *App) build(ctx context.Context, dialect dbx.Dialect) error {
	c := app.config
	repos := repomanager.NewRepositoryManager(dialect)
	if err := repos.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	blobs, err := app.openBlobs(ctx)
	if err != nil {
		return fmt.Errorf("blob store init error: %w", err)
	}

	app.resolver = attachments.NewResolver(app.db, repos, blobs, app.logger)
	app.log, err = durablelog.Open(ctx, app.db, repos, app.resolver, app.logger)
	if err != nil {
		return fmt.Errorf("durable log: %w", err)
	}

	store := entrystore.New()
	if err := store.Rebuild(ctx, app.log, c.CatchUpPageSize); err != nil {
		return fmt.Errorf("entry index rebuild: %w", err)
	}
	app.logger.Info(ctx, "Entry index rebuilt", "max_id", app.log.MaxID())

	registry := sessions.NewRegistry(auth.NewVerifier(app.db, repos, []byte(c.SecretKey)), app.logger)
	app.disp = dispatcher.New(store, dispatcher.Options{
		QueueCapacity: c.SessionQueueCapacity,
		PageSize:      c.CatchUpPageSize,
		OnDegraded:    func(id string) { registry.MarkDegraded(id, true) },
		OnRecovered:   func(id string) { registry.MarkDegraded(id, false) },
	}, app.logger)

	seq := sequencer.New(app.log, store, app.resolver, app.disp, sequencer.Options{
		MaxBodyBytes:   c.MaxBodyBytes,
		MaxAttachments: c.MaxAttachments,
	}, app.logger)

	app.userService = services.NewUserService(app.db, repos, c)
	app.noteService = services.NewNoteService(app.db, repos, services.Components{
		Log:        app.log,
		Store:      store,
		Sequencer:  seq,
		Resolver:   app.resolver,
		Sessions:   registry,
		Dispatcher: app.disp,
	}, app.logger)
	return nil
}

func (app *App) openBlobs(ctx context.Context) (blobstore.Store, error) {
	c := app.config
	switch c.BlobBackend {
	case "s3":
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		})
	case "fs":
		s, err := blobstore.NewFSStore(c.BlobDir)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, s.Close)
		return s, nil
	}
	return nil, fmt.Errorf("unknown blob backend %q", c.BlobBackend)
}

func (app *App) runClosers() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled, a signal arrives or a server fails, then
// checkpoints the log and releases storage.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	grpcServer := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.noteService, app.config.SecretKey)
	httpServer := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, app.noteService, app.config.SecretKey, 0)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				app.logger.Error(ctx, "Server failed", "server", name, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancelFunc()
			}
		}()
	}
	run("grpc", grpcServer.Run)
	run("http", httpServer.Run)

	if app.config.OrphanSweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.resolver.RunSweeper(ctx, app.config.OrphanSweepInterval, app.config.OrphanAttachmentTTL)
		}()
	}

	wg.Wait()
	app.logger.Info(context.WithoutCancel(ctx), "Shutting down...")
	return errors.Join(append(errs, app.close(context.WithoutCancel(ctx)))...)
}

func (app *App) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()

	app.disp.Close()
	err := app.log.Close(ctx)
	if cerr := app.db.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	app.runClosers()
	return err
}
