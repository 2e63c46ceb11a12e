package attachments

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

func (r *SQLRepository) Create(ctx context.Context, ref models.AttachmentRef) error {
	query :=
		`INSERT INTO attachments (token, blob_key, name, owner, created_at)
		 VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query, ref.Token, ref.BlobKey, ref.Name, ref.Owner, ref.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, token string) (models.AttachmentRef, error) {
	query :=
		`SELECT token, blob_key, name, owner, entry_id, position, created_at
		 FROM attachments
		 WHERE token = $1`

	var (
		ref     models.AttachmentRef
		entryID sql.NullInt64
		created int64
	)
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&ref.Token, &ref.BlobKey, &ref.Name, &ref.Owner, &entryID, &ref.Position, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.AttachmentRef{}, common.ErrorNotFound
		}
		return models.AttachmentRef{}, fmt.Errorf("db error: %w", err)
	}
	ref.EntryID = entryID.Int64
	ref.CreatedAt = time.Unix(0, created).UTC()
	return ref, nil
}

func (r *SQLRepository) Bind(ctx context.Context, token, owner string, entryID int64, position int) error {
	query :=
		`UPDATE attachments SET entry_id = $1, position = $2
		 WHERE token = $3 AND owner = $4 AND entry_id IS NULL`

	res, err := r.db.ExecContext(ctx, query, entryID, position, token, owner)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	switch n {
	case 0:
		return common.ErrorNotFound
	case 1:
		return nil
	default:
		return fmt.Errorf("unexpected rows affected binding %s: %d", token, n)
	}
}

func (r *SQLRepository) TokensForRange(ctx context.Context, fromID, toID int64) (map[int64][]string, error) {
	query :=
		`SELECT entry_id, token
		 FROM attachments
		 WHERE entry_id >= $1 AND entry_id <= $2
		 ORDER BY entry_id, position`

	rows, err := r.db.QueryContext(ctx, query, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]string)
	for rows.Next() {
		var (
			id    int64
			token string
		)
		if err := rows.Scan(&id, &token); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result[id] = append(result[id], token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) DeleteStagedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM attachments WHERE entry_id IS NULL AND created_at < $1`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
