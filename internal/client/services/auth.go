package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/client/client"
	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/dbx"
)

// Metadata keys of the signed-in user.
const (
	keyUsername     = "username"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

// ErrNotSignedIn is returned by Restore when no tokens are cached.
var ErrNotSignedIn = errors.New("not signed in")

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Register: create an account, then sign in with it.
//   - Login: authenticate against the server and cache the token pair.
//   - Restore: load cached tokens into the client.
//   - Logout: forget the cached user and tokens.
//   - Ping: fetch the server's last-update status.
type AuthService interface {
	Register(ctx context.Context, username string, password []byte) error
	Login(ctx context.Context, username string, password []byte) error
	Restore(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) (models.Status, error)
}

type authService struct {
	client client.Client
	db     *sql.DB
}

func NewAuthService(c client.Client, db *sql.DB) AuthService {
	return &authService{client: c, db: db}
}

func (a *authService) metadataRepo(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

// Register creates the account and signs in. The password buffer is wiped
// before returning.
func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	defer common.WipeByteArray(password)

	if err := a.client.Register(ctx, username, string(password)); err != nil {
		return fmt.Errorf("register error: %w", err)
	}
	return a.login(ctx, username, password)
}

// Login authenticates and stores the username. Tokens reach the cache through
// the client's token sink, see PersistTokens. The password buffer is wiped
// before returning.
func (a *authService) Login(ctx context.Context, username string, password []byte) error {
	defer common.WipeByteArray(password)
	return a.login(ctx, username, password)
}

func (a *authService) login(ctx context.Context, username string, password []byte) error {
	if err := a.client.Login(ctx, username, string(password)); err != nil {
		return fmt.Errorf("login error: %w", err)
	}
	if err := a.metadataRepo(a.db).Set(ctx, keyUsername, []byte(username)); err != nil {
		return fmt.Errorf("save username: %w", err)
	}
	return nil
}

// Restore hands the cached token pair to the client and returns the cached
// username.
func (a *authService) Restore(ctx context.Context) (string, error) {
	repo := a.metadataRepo(a.db)

	user, err := repo.Get(ctx, keyUsername)
	if errors.Is(err, common.ErrorNotFound) {
		return "", ErrNotSignedIn
	}
	if err != nil {
		return "", err
	}
	access, err := repo.Get(ctx, keyAccessToken)
	if errors.Is(err, common.ErrorNotFound) {
		return "", ErrNotSignedIn
	}
	if err != nil {
		return "", err
	}
	refresh, err := repo.Get(ctx, keyRefreshToken)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return "", err
	}

	a.client.SetTokens(string(access), string(refresh))
	return string(user), nil
}

func (a *authService) Logout(ctx context.Context) error {
	a.client.SetTokens("", "")
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.metadataRepo(tx)
		for _, k := range []string{keyUsername, keyAccessToken, keyRefreshToken} {
			if err := repo.Delete(ctx, k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *authService) Ping(ctx context.Context) (models.Status, error) {
	return a.client.Ping(ctx)
}

// PersistTokens returns a token sink that writes every new pair to the cache
// in one transaction. Failures are reported to onErr, which may be nil.
func PersistTokens(db *sql.DB, onErr func(error)) client.TokenSink {
	return func(access, refresh string) {
		err := dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := metadata.NewSQLiteRepository(tx)
			if err := repo.Set(ctx, keyAccessToken, []byte(access)); err != nil {
				return err
			}
			return repo.Set(ctx, keyRefreshToken, []byte(refresh))
		})
		if err != nil && onErr != nil {
			onErr(fmt.Errorf("persist tokens: %w", err))
		}
	}
}
