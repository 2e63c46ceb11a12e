package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/dbx"
)

// Attachment tokens are stored newline-separated; tokens never contain one.
const tokenSep = "\n"

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func (r *SQLiteRepository) Upsert(ctx context.Context, e models.Entry) error {
	query := `
		INSERT INTO entries (id, author, body, kind, attachments, committed_at, client_submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			author = excluded.author,
			body = excluded.body,
			kind = excluded.kind,
			attachments = excluded.attachments,
			committed_at = excluded.committed_at,
			client_submitted_at = excluded.client_submitted_at
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.Author, e.Body, e.Kind, strings.Join(e.Attachments, tokenSep),
		nanos(e.CommittedAt), nanos(e.ClientSubmittedAt))
	if err != nil {
		return fmt.Errorf("failed to store entry %d: %w", e.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, author, body, kind, attachments, committed_at, client_submitted_at FROM entries`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.Entry, error) {
	var (
		e                    models.Entry
		attachments          string
		committed, submitted int64
	)
	if err := s.Scan(&e.ID, &e.Author, &e.Body, &e.Kind, &attachments, &committed, &submitted); err != nil {
		return models.Entry{}, err
	}
	if attachments != "" {
		e.Attachments = strings.Split(attachments, tokenSep)
	}
	e.CommittedAt = fromNanos(committed)
	e.ClientSubmittedAt = fromNanos(submitted)
	return e, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (models.Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, fmt.Errorf("entry %d: %w", id, common.ErrorNotFound)
	}
	if err != nil {
		return models.Entry{}, fmt.Errorf("failed to get entry %d: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]models.Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.AfterID > 0 {
		where = append(where, "id > ?")
		args = append(args, f.AfterID)
	}
	if f.Author != "" {
		where = append(where, "author = ?")
		args = append(args, f.Author)
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
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
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) MaxID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM entries`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read max id: %w", err)
	}
	return id, nil
}
