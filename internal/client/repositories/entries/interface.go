package entries

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/client/models"
)

// Filter selects cached entries. Zero fields do not filter; Limit 0 means
// no limit.
type Filter struct {
	AfterID int64
	Author  string
	Limit   int
}

// Repository stores received entries.
type Repository interface {
	// Upsert stores e, replacing any cached copy with the same id.
	Upsert(ctx context.Context, e models.Entry) error

	// GetByID returns common.ErrorNotFound for an id not in the cache.
	GetByID(ctx context.Context, id int64) (models.Entry, error)

	// List returns matching entries in id order.
	List(ctx context.Context, f Filter) ([]models.Entry, error)

	// MaxID is the highest cached id, or 0.
	MaxID(ctx context.Context) (int64, error)
}
