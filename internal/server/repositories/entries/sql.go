package entries

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

func (r *SQLRepository) Insert(ctx context.Context, e models.Entry) error {
	query :=
		`INSERT INTO entries (id, author, body, kind, committed_at, client_submitted_at, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.Author, e.Body, string(e.Kind), e.CommittedAt.UnixNano(),
		nullableNanos(e.ClientSubmittedAt), nullableString(e.IdempotencyKey))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Range(ctx context.Context, fromID, toID int64) ([]models.Entry, error) {
	query :=
		`SELECT id, author, body, kind, committed_at, client_submitted_at, idempotency_key
		 FROM entries
		 WHERE id >= $1 AND id <= $2
		 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, fromID, toID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) MaxID(ctx context.Context) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM entries`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *SQLRepository) FindByIdempotencyKey(ctx context.Context, author, key string) (models.Entry, error) {
	query :=
		`SELECT id, author, body, kind, committed_at, client_submitted_at, idempotency_key
		 FROM entries
		 WHERE author = $1 AND idempotency_key = $2`

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, author, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Entry{}, common.ErrorNotFound
		}
		return models.Entry{}, err
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.Entry, error) {
	var (
		e           models.Entry
		kind        string
		committed   int64
		submitted   sql.NullInt64
		idempotency sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Author, &e.Body, &kind, &committed, &submitted, &idempotency); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Entry{}, err
		}
		return models.Entry{}, fmt.Errorf("db error: %w", err)
	}
	e.Kind = models.ContentKind(kind)
	e.CommittedAt = time.Unix(0, committed).UTC()
	if submitted.Valid {
		e.ClientSubmittedAt = time.Unix(0, submitted.Int64).UTC()
	}
	e.IdempotencyKey = idempotency.String
	return e, nil
}

func nullableNanos(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
