// Package cursors stores per-device acknowledgment positions so a client
// can resume its feed after reconnecting.
package cursors

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound when the device never acknowledged.
	Get(ctx context.Context, userName, device string) (models.Cursor, error)

	// Advance stores c unless the stored position is already at or beyond it.
	Advance(ctx context.Context, c models.Cursor) error
}
