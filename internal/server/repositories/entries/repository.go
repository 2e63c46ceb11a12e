// Package entries declares storage for committed log entries.
package entries

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/server/models"
)

// Repository persists entry rows. Attachment bindings live in the
// attachments repository and are joined by callers.
type Repository interface {
	// Insert writes a new row. The id is assigned by the caller.
	Insert(ctx context.Context, e models.Entry) error

	// Range returns entries with fromID <= id <= toID in ascending order.
	Range(ctx context.Context, fromID, toID int64) ([]models.Entry, error)

	// MaxID returns the highest stored id, or 0 for an empty log.
	MaxID(ctx context.Context) (int64, error)

	// FindByIdempotencyKey returns common.ErrorNotFound when the author never
	// used the key.
	FindByIdempotencyKey(ctx context.Context, author, key string) (models.Entry, error)
}
