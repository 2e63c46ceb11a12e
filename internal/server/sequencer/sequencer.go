// Package sequencer is the single serialization point for commits. It
// assigns ids and committed_at, appends to the durable log, updates the
// entry index and hands the entry to the dispatcher.
package sequencer

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/models"
)

const (
	DefaultMaxBodyBytes   = 1 << 20
	DefaultMaxAttachments = 16
)

type Log interface {
	MaxID() int64
	LastCommittedAt() time.Time
	// Sync brings MaxID up to date after an append with an unknown outcome.
	Sync(ctx context.Context) error
	Append(ctx context.Context, e models.Entry) error
	ReadRange(ctx context.Context, fromID, toID int64) ([]models.Entry, error)
}

type Index interface {
	MaxID() int64
	Apply(e models.Entry) error
	FindByIdempotencyKey(author, key string) (models.Entry, bool)
}

// AttachmentValidator reports unknown, foreign or already bound tokens as
// common.ErrValidation.
type AttachmentValidator interface {
	Validate(ctx context.Context, owner string, tokens []string) error
}

type Notifier interface {
	Notify(e models.Entry)
}

// Submission is a client's request to commit an entry.
type Submission struct {
	Author            string
	Body              string
	Kind              models.ContentKind
	Attachments       []string
	ClientSubmittedAt time.Time
	// IdempotencyKey, when set, makes retries of the same submission return
	// the entry committed by the first attempt.
	IdempotencyKey string
}

type Options struct {
	MaxBodyBytes   int
	MaxAttachments int
	Now            func() time.Time
}

type Sequencer struct {
	log         Log
	index       Index
	attachments AttachmentValidator
	notifier    Notifier
	opts        Options
	logger      logging.Logger

	// ticket has one slot; holding it is holding the commit point.
	ticket chan struct{}
}

func New(log Log, index Index, attachments AttachmentValidator, notifier Notifier, opts Options, logger logging.Logger) *Sequencer {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.MaxAttachments <= 0 {
		opts.MaxAttachments = DefaultMaxAttachments
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sequencer{
		log:         log,
		index:       index,
		attachments: attachments,
		notifier:    notifier,
		opts:        opts,
		logger:      logger.With("module", "sequencer"),
		ticket:      make(chan struct{}, 1),
	}
}

// Submit validates sub, commits it as the next entry and returns it.
//
// Validation problems wrap common.ErrValidation and leave no trace. A failed
// append wraps common.ErrStorage; no id is consumed and the caller may retry
// with the same input. When the append outcome was unknown, the next Submit
// recovers the log first and publishes any entry that did land, so a retry
// under the same idempotency key returns that entry.
func (s *Sequencer) Submit(ctx context.Context, sub Submission) (models.Entry, error) {
	if err := s.validate(sub); err != nil {
		return models.Entry{}, err
	}
	if err := s.attachments.Validate(ctx, sub.Author, sub.Attachments); err != nil {
		return models.Entry{}, err
	}

	select {
	case s.ticket <- struct{}{}:
	case <-ctx.Done():
		return models.Entry{}, ctx.Err()
	}
	defer func() { <-s.ticket }()

	if err := s.log.Sync(ctx); err != nil {
		s.logger.Error(ctx, "Log sync failed", "error", err)
		return models.Entry{}, err
	}
	if err := s.publish(ctx); err != nil {
		return models.Entry{}, err
	}

	if sub.IdempotencyKey != "" {
		if prev, ok := s.index.FindByIdempotencyKey(sub.Author, sub.IdempotencyKey); ok {
			s.logger.Debug(ctx, "Duplicate submission", "id", prev.ID, "author", sub.Author, "key", sub.IdempotencyKey)
			return prev, nil
		}
	}

	e := models.Entry{
		ID:                s.log.MaxID() + 1,
		Author:            sub.Author,
		Body:              sub.Body,
		Kind:              sub.Kind,
		CommittedAt:       s.stamp(),
		ClientSubmittedAt: models.Stamp(sub.ClientSubmittedAt),
		IdempotencyKey:    sub.IdempotencyKey,
	}
	if e.Kind == "" {
		e.Kind = models.KindPlain
	}
	if len(sub.Attachments) > 0 {
		e.Attachments = append([]string(nil), sub.Attachments...)
	}

	if err := s.log.Append(ctx, e); err != nil {
		s.logger.Error(ctx, "Append failed", "id", e.ID, "author", e.Author, "error", err)
		return models.Entry{}, err
	}

	if s.index.MaxID()+1 == e.ID && s.index.Apply(e) == nil {
		s.notifier.Notify(e)
	} else if err := s.publish(ctx); err != nil {
		// The entry is durable; the next submission retries the catch-up.
		s.logger.Error(ctx, "Index behind the log after commit", "id", e.ID, "error", err)
	}

	s.logger.Info(ctx, "Entry committed", "id", e.ID, "author", e.Author, "attachments", len(e.Attachments))
	return e, nil
}

// publish applies and notifies every durable entry the index has not seen,
// in id order. It must be called while holding the ticket.
func (s *Sequencer) publish(ctx context.Context) error {
	from, to := s.index.MaxID()+1, s.log.MaxID()
	if from > to {
		return nil
	}

	missing, err := s.log.ReadRange(ctx, from, to)
	if err != nil {
		return err
	}
	for _, e := range missing {
		if err := s.index.Apply(e); err != nil {
			return err
		}
		s.notifier.Notify(e)
	}
	s.logger.Warn(ctx, "Index caught up with the log", "from", from, "to", to)
	return nil
}

// stamp returns the commit time, never earlier than the previous commit.
func (s *Sequencer) stamp() time.Time {
	now := models.Stamp(s.opts.Now())
	if last := s.log.LastCommittedAt(); now.Before(last) {
		return last
	}
	return now
}

func (s *Sequencer) validate(sub Submission) error {
	switch {
	case strings.TrimSpace(sub.Author) == "":
		return fmt.Errorf("%w: author is required", common.ErrValidation)
	case len(sub.Body) > s.opts.MaxBodyBytes:
		return fmt.Errorf("%w: body is %d bytes, limit is %d", common.ErrValidation, len(sub.Body), s.opts.MaxBodyBytes)
	case !utf8.ValidString(sub.Body):
		return fmt.Errorf("%w: body is not valid UTF-8", common.ErrValidation)
	case sub.Kind != "" && !sub.Kind.Valid():
		return fmt.Errorf("%w: unknown content kind %q", common.ErrValidation, sub.Kind)
	case strings.TrimSpace(sub.Body) == "" && len(sub.Attachments) == 0:
		return fmt.Errorf("%w: entry is empty", common.ErrValidation)
	case len(sub.Attachments) > s.opts.MaxAttachments:
		return fmt.Errorf("%w: %d attachments, limit is %d", common.ErrValidation, len(sub.Attachments), s.opts.MaxAttachments)
	}

	seen := make(map[string]struct{}, len(sub.Attachments))
	for _, t := range sub.Attachments {
		if t == "" {
			return fmt.Errorf("%w: empty attachment token", common.ErrValidation)
		}
		if _, dup := seen[t]; dup {
			return fmt.Errorf("%w: attachment %q listed twice", common.ErrValidation, t)
		}
		seen[t] = struct{}{}
	}
	return nil
}
