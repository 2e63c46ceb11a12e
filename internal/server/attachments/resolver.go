// Package attachments maps attachment tokens to blob keys. Bytes live in a
// blobstore.Store; this package only tracks who staged what and which entry
// a token was committed with.
package attachments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/blobstore"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

type Resolver struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	blobs  blobstore.Store
	logger logging.Logger
	now    func() time.Time
}

func NewResolver(db *sql.DB, repos repomanager.RepositoryManager, blobs blobstore.Store, logger logging.Logger) *Resolver {
	return &Resolver{
		db:     db,
		repos:  repos,
		blobs:  blobs,
		logger: logger.With("module", "attachments"),
		now:    time.Now,
	}
}

// Stage uploads data and records an unbound ref owned by owner. The returned
// token can be listed in exactly one later submission by the same owner.
func (r *Resolver) Stage(ctx context.Context, owner, name string, data []byte) (models.AttachmentRef, error) {
	key, err := r.blobs.Put(ctx, data)
	if err != nil {
		return models.AttachmentRef{}, fmt.Errorf("%w: store blob: %w", common.ErrStorage, err)
	}

	ref := models.AttachmentRef{
		Token:     uuid.NewString(),
		BlobKey:   key,
		Name:      name,
		Owner:     owner,
		CreatedAt: models.Stamp(r.now()),
	}
	if err := r.repos.Attachments(r.db).Create(ctx, ref); err != nil {
		return models.AttachmentRef{}, fmt.Errorf("%w: stage attachment: %w", common.ErrStorage, err)
	}

	r.logger.Debug(ctx, "Attachment staged", "token", ref.Token, "owner", owner, "size", len(data))
	return ref, nil
}

// Lookup returns the full ref, or common.ErrorNotFound.
func (r *Resolver) Lookup(ctx context.Context, token string) (models.AttachmentRef, error) {
	ref, err := r.repos.Attachments(r.db).Get(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return models.AttachmentRef{}, err
		}
		return models.AttachmentRef{}, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return ref, nil
}

// Resolve returns the blob key behind token, or common.ErrorNotFound.
func (r *Resolver) Resolve(ctx context.Context, token string) (string, error) {
	ref, err := r.Lookup(ctx, token)
	if err != nil {
		return "", err
	}
	return ref.BlobKey, nil
}

// Fetch resolves token and reads its bytes. A ref whose blob is missing is
// reported as common.ErrorNotFound; the entry that carries it is unaffected.
func (r *Resolver) Fetch(ctx context.Context, token string) ([]byte, models.AttachmentRef, error) {
	ref, err := r.Lookup(ctx, token)
	if err != nil {
		return nil, models.AttachmentRef{}, err
	}

	data, err := r.blobs.Get(ctx, ref.BlobKey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			r.logger.Warn(ctx, "Attachment blob missing", "token", token, "blob_key", ref.BlobKey)
			return nil, ref, fmt.Errorf("blob for %s: %w", token, common.ErrorNotFound)
		}
		return nil, ref, fmt.Errorf("%w: fetch blob: %w", common.ErrStorage, err)
	}
	return data, ref, nil
}

// PresignURL returns a direct download link when the blob backend supports
// it, or an empty string.
func (r *Resolver) PresignURL(ctx context.Context, ref models.AttachmentRef) (string, error) {
	p, ok := r.blobs.(blobstore.Presigner)
	if !ok {
		return "", nil
	}
	return p.PresignGet(ctx, ref.BlobKey)
}

// Validate checks that every token is staged by owner and not yet bound.
// Problems wrap common.ErrValidation.
func (r *Resolver) Validate(ctx context.Context, owner string, tokens []string) error {
	for _, token := range tokens {
		ref, err := r.Lookup(ctx, token)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			return fmt.Errorf("%w: unknown attachment token %q", common.ErrValidation, token)
		case err != nil:
			return err
		case ref.Owner != owner:
			return fmt.Errorf("%w: attachment %q belongs to another user", common.ErrValidation, token)
		case ref.Bound():
			return fmt.Errorf("%w: attachment %q is already attached to entry %d", common.ErrValidation, token, ref.EntryID)
		}
	}
	return nil
}

// Register binds a staged ref to its entry inside the log's append
// transaction. A ref that is missing, foreign or already bound wraps
// common.ErrValidation and aborts the append.
func (r *Resolver) Register(ctx context.Context, tx dbx.DBTX, ref models.AttachmentRef) error {
	err := r.repos.Attachments(tx).Bind(ctx, ref.Token, ref.Owner, ref.EntryID, ref.Position)
	if errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("%w: attachment %q cannot be bound", common.ErrValidation, ref.Token)
	}
	return err
}

// CollectOrphans deletes refs that were staged before cutoff and never
// committed. Bound refs are never touched. Blob bytes are left to the
// backend's own lifecycle rules.
func (r *Resolver) CollectOrphans(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := r.repos.Attachments(r.db).DeleteStagedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: collect orphans: %w", common.ErrStorage, err)
	}
	if n > 0 {
		r.logger.Info(ctx, "Orphan attachments collected", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// RunSweeper calls CollectOrphans every interval for refs older than ttl
// until ctx is done.
func (r *Resolver) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.CollectOrphans(ctx, r.now().Add(-ttl)); err != nil {
				r.logger.Error(ctx, "Orphan sweep failed", "error", err)
			}
		}
	}
}
