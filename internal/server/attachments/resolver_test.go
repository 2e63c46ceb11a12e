package attachments

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/blobstore"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBlobs struct {
	mu      sync.Mutex
	data    map[string][]byte
	putErr  error
	presign bool
}

func (m *memBlobs) Put(_ context.Context, data []byte) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := blobstore.HashKey(data)
	m.data[key] = data
	return key, nil
}

func (m *memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return d, nil
}

type presigningBlobs struct{ *memBlobs }

func (presigningBlobs) PresignGet(_ context.Context, key string) (string, error) {
	return "https://blobs/" + key, nil
}

func setup(t *testing.T) (*Resolver, *sql.DB, repomanager.RepositoryManager, *memBlobs) {
	t.Helper()
	ctx := context.Background()
	db, err := repomanager.OpenDB(ctx, dbx.DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repos := repomanager.NewRepositoryManager(dbx.DialectSQLite)
	require.NoError(t, repos.RunMigrations(ctx, db))

	blobs := &memBlobs{data: map[string][]byte{}}
	return NewResolver(db, repos, blobs, logging.Nop()), db, repos, blobs
}

func commitEntry(t *testing.T, db *sql.DB, repos repomanager.RepositoryManager, r *Resolver, id int64, owner string, tokens ...string) error {
	t.Helper()
	ctx := context.Background()
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := repos.Entries(tx).Insert(ctx, models.Entry{
			ID: id, Author: owner, Body: "b", Kind: models.KindPlain, CommittedAt: time.Unix(0, id),
		}); err != nil {
			return err
		}
		for i, tok := range tokens {
			if err := r.Register(ctx, tx, models.AttachmentRef{Token: tok, Owner: owner, EntryID: id, Position: i}); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestStageAndFetch(t *testing.T) {
	r, _, _, _ := setup(t)
	ctx := context.Background()

	ref, err := r.Stage(ctx, "alice", "photo.png", []byte("png bytes"))
	require.NoError(t, err)
	assert.NotEmpty(t, ref.Token)
	assert.False(t, ref.Bound())

	key, err := r.Resolve(ctx, ref.Token)
	require.NoError(t, err)
	assert.Equal(t, blobstore.HashKey([]byte("png bytes")), key)

	data, got, err := r.Fetch(ctx, ref.Token)
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), data)
	assert.Equal(t, "photo.png", got.Name)
	assert.Equal(t, "alice", got.Owner)
}

func TestStage_BlobFailure(t *testing.T) {
	r, _, _, blobs := setup(t)
	blobs.putErr = errors.New("bucket gone")

	_, err := r.Stage(context.Background(), "alice", "a", []byte("x"))
	assert.ErrorIs(t, err, common.ErrStorage)
}

func TestResolve_UnknownToken(t *testing.T) {
	r, _, _, _ := setup(t)
	_, err := r.Resolve(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFetch_MissingBlobIsReported(t *testing.T) {
	r, _, _, blobs := setup(t)
	ctx := context.Background()

	ref, err := r.Stage(ctx, "alice", "a", []byte("x"))
	require.NoError(t, err)
	delete(blobs.data, ref.BlobKey)

	_, got, err := r.Fetch(ctx, ref.Token)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Equal(t, ref.Token, got.Token)
}

func TestValidate(t *testing.T) {
	r, db, repos, _ := setup(t)
	ctx := context.Background()

	mine, err := r.Stage(ctx, "alice", "a", []byte("1"))
	require.NoError(t, err)
	theirs, err := r.Stage(ctx, "bob", "b", []byte("2"))
	require.NoError(t, err)
	used, err := r.Stage(ctx, "alice", "c", []byte("3"))
	require.NoError(t, err)
	require.NoError(t, commitEntry(t, db, repos, r, 1, "alice", used.Token))

	assert.NoError(t, r.Validate(ctx, "alice", nil))
	assert.NoError(t, r.Validate(ctx, "alice", []string{mine.Token}))

	for name, tokens := range map[string][]string{
		"unknown": {"missing"},
		"foreign": {mine.Token, theirs.Token},
		"bound":   {used.Token},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, r.Validate(ctx, "alice", tokens), common.ErrValidation)
		})
	}
}

func TestRegister_BindsInsideTransaction(t *testing.T) {
	r, db, repos, _ := setup(t)
	ctx := context.Background()

	a, _ := r.Stage(ctx, "alice", "a", []byte("1"))
	b, _ := r.Stage(ctx, "alice", "b", []byte("2"))
	require.NoError(t, commitEntry(t, db, repos, r, 1, "alice", a.Token, b.Token))

	tokens, err := repos.Attachments(db).TokensForRange(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{a.Token, b.Token}, tokens[1])
}

func TestRegister_FailureRollsBack(t *testing.T) {
	r, db, repos, _ := setup(t)
	ctx := context.Background()

	a, _ := r.Stage(ctx, "alice", "a", []byte("1"))
	err := commitEntry(t, db, repos, r, 1, "alice", a.Token, "missing")
	require.ErrorIs(t, err, common.ErrValidation)

	ref, err := repos.Attachments(db).Get(ctx, a.Token)
	require.NoError(t, err)
	assert.False(t, ref.Bound())
}

func TestCollectOrphans(t *testing.T) {
	r, db, repos, _ := setup(t)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return old }
	stale, _ := r.Stage(ctx, "alice", "stale", []byte("1"))
	kept, _ := r.Stage(ctx, "alice", "kept", []byte("2"))
	require.NoError(t, commitEntry(t, db, repos, r, 1, "alice", kept.Token))

	r.now = time.Now
	fresh, _ := r.Stage(ctx, "alice", "fresh", []byte("3"))

	n, err := r.CollectOrphans(ctx, old.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = r.Resolve(ctx, stale.Token)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = r.Resolve(ctx, kept.Token)
	assert.NoError(t, err)
	_, err = r.Resolve(ctx, fresh.Token)
	assert.NoError(t, err)
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	r, _, _, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	old, _ := r.Stage(context.Background(), "alice", "a", []byte("1"))
	r.now = func() time.Time { return time.Now().Add(time.Hour) }

	done := make(chan struct{})
	go func() {
		r.RunSweeper(ctx, 5*time.Millisecond, time.Minute)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := r.Resolve(context.Background(), old.Token)
		return errors.Is(err, common.ErrorNotFound)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestPresignURL(t *testing.T) {
	r, _, _, blobs := setup(t)
	ctx := context.Background()
	ref := models.AttachmentRef{BlobKey: "k"}

	url, err := r.PresignURL(ctx, ref)
	require.NoError(t, err)
	assert.Empty(t, url)

	r.blobs = presigningBlobs{blobs}
	url, err = r.PresignURL(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "https://blobs/k", url)
}
