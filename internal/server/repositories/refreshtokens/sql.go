package refreshtokens

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

func (r *SQLRepository) Create(ctx context.Context, userName string, token string, validity time.Duration) error {
	query :=
		`INSERT INTO refresh_tokens (username, token, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`

	now := time.Now()
	_, err := r.db.ExecContext(ctx, query, userName, token, now.Add(validity).UnixNano(), now.UnixNano())
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *SQLRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query :=
		`SELECT username, expires_at, created_at FROM refresh_tokens
		 WHERE token = $1`

	t := &models.RefreshToken{Token: token}
	var expires, created int64
	err := r.db.QueryRowContext(ctx, query, token).Scan(&t.UserName, &expires, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.Expires = time.Unix(0, expires).UTC()
	t.CreatedAt = time.Unix(0, created).UTC()

	return t, nil
}

func (r *SQLRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
