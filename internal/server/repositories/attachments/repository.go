// Package attachments declares storage for attachment token references.
package attachments

import (
	"context"
	"time"

	"github.com/dmitrijs2005/notesync/internal/server/models"
)

// Repository persists token → blob key references.
type Repository interface {
	// Create records a staged (unbound) reference.
	Create(ctx context.Context, ref models.AttachmentRef) error

	// Get returns common.ErrorNotFound for an unknown token.
	Get(ctx context.Context, token string) (models.AttachmentRef, error)

	// Bind attaches a staged ref owned by owner to an entry. It returns
	// common.ErrorNotFound when no such staged ref exists, including when the
	// token is already bound.
	Bind(ctx context.Context, token, owner string, entryID int64, position int) error

	// TokensForRange returns bound tokens keyed by entry id, each list in
	// position order.
	TokensForRange(ctx context.Context, fromID, toID int64) (map[int64][]string, error)

	// DeleteStagedBefore removes unbound refs created before cutoff.
	DeleteStagedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
