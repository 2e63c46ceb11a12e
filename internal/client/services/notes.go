package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/client"
	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/entries"
	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/netx"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// PostRequest is a new entry. Files are staged before the submission;
// Attachments are tokens staged earlier.
type PostRequest struct {
	Body        string
	Kind        string
	Files       []string
	Attachments []string
}

// RetryPolicy bounds how a submission is retried while the server is
// unavailable.
type RetryPolicy struct {
	Attempts uint64
	MinDelay time.Duration
	MaxDelay time.Duration
}

func (p RetryPolicy) backoff() retry.Backoff {
	b := retry.NewExponential(p.MinDelay)
	b = retry.WithCappedDuration(p.MaxDelay, b)
	return retry.WithMaxRetries(p.Attempts, b)
}

// DefaultRetryPolicy is used when NewNoteService gets a zero policy.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, MinDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}

// NoteService posts entries, reads history and moves attachments. Every
// entry the server returns is written to the local cache.
type NoteService struct {
	client client.Client
	db     *sql.DB
	retry  RetryPolicy
	http   *http.Client
}

func NewNoteService(c client.Client, db *sql.DB, policy RetryPolicy) *NoteService {
	if policy.MinDelay <= 0 {
		policy = DefaultRetryPolicy
	}
	return &NoteService{client: c, db: db, retry: policy, http: http.DefaultClient}
}

// Attach stages the file at path and returns its attachment token.
func (s *NoteService) Attach(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	token, err := s.client.StageAttachment(ctx, filepath.Base(path), data)
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", path, err)
	}
	return token, nil
}

// Post stages req's files and commits the entry. The submission carries a
// fresh idempotency key, so retrying after a lost response cannot commit it
// twice.
func (s *NoteService) Post(ctx context.Context, req PostRequest) (models.Entry, error) {
	tokens := make([]string, 0, len(req.Attachments)+len(req.Files))
	tokens = append(tokens, req.Attachments...)
	for _, f := range req.Files {
		t, err := s.Attach(ctx, f)
		if err != nil {
			return models.Entry{}, err
		}
		tokens = append(tokens, t)
	}

	sub := models.Submission{
		Body:              req.Body,
		Kind:              req.Kind,
		Attachments:       tokens,
		ClientSubmittedAt: time.Now().UTC(),
		IdempotencyKey:    uuid.NewString(),
	}

	var e models.Entry
	err := retry.Do(ctx, s.retry.backoff(), func(ctx context.Context) error {
		var err error
		e, err = s.client.Submit(ctx, sub)
		if errors.Is(err, client.ErrUnavailable) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return models.Entry{}, err
	}

	if err := entries.NewSQLiteRepository(s.db).Upsert(ctx, e); err != nil {
		return e, fmt.Errorf("cache entry %d: %w", e.ID, err)
	}
	return e, nil
}

// History queries the server and caches the result. When the server is
// unreachable it answers from the cache instead, honoring only the id,
// author and limit filters, and reports fromCache.
func (s *NoteService) History(ctx context.Context, q client.Query) (list []models.Entry, fromCache bool, err error) {
	list, err = s.client.Query(ctx, q)
	switch {
	case errors.Is(err, client.ErrUnavailable):
		list, err = entries.NewSQLiteRepository(s.db).List(ctx, entries.Filter{
			AfterID: q.AfterID,
			Author:  q.Author,
			Limit:   q.Limit,
		})
		return list, true, err
	case err != nil:
		return nil, false, err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := entries.NewSQLiteRepository(tx)
		for _, e := range list {
			if err := repo.Upsert(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return list, false, fmt.Errorf("cache history: %w", err)
	}
	return list, false, nil
}

// FetchOptions controls Fetch. With Direct set the bytes are downloaded from
// the blob backend's URL when the server hands one out.
type FetchOptions struct {
	Direct bool
}

func (s *NoteService) Fetch(ctx context.Context, token string, opts FetchOptions) (*models.Attachment, error) {
	a, err := s.client.FetchAttachment(ctx, token, opts.Direct)
	if err != nil {
		return nil, err
	}
	if !opts.Direct || a.URL == "" || len(a.Data) > 0 {
		return a, nil
	}

	data, err := netx.DownloadPresignedURL(ctx, s.http, a.URL)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", a.Name, err)
	}
	a.Data = data
	return a, nil
}
