package cursors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/server/models"
)

type SQLRepository struct {
	db dbx.DBTX
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Get(ctx context.Context, userName, device string) (models.Cursor, error) {
	query :=
		`SELECT last_acked_id, updated_at FROM cursors
		 WHERE username = $1 AND device = $2`

	c := models.Cursor{UserName: userName, Device: device}
	var updated int64
	err := r.db.QueryRowContext(ctx, query, userName, device).Scan(&c.LastAckedID, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Cursor{}, common.ErrorNotFound
		}
		return models.Cursor{}, fmt.Errorf("db error: %w", err)
	}
	c.UpdatedAt = time.Unix(0, updated).UTC()
	return c, nil
}

func (r *SQLRepository) Advance(ctx context.Context, c models.Cursor) error {
	query :=
		`INSERT INTO cursors (username, device, last_acked_id, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (username, device) DO UPDATE
		 SET last_acked_id = excluded.last_acked_id, updated_at = excluded.updated_at
		 WHERE cursors.last_acked_id < excluded.last_acked_id`

	_, err := r.db.ExecContext(ctx, query, c.UserName, c.Device, c.LastAckedID, c.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
