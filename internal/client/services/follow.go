package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/client"
	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/entries"
	"github.com/dmitrijs2005/notesync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/sethvargo/go-retry"
)

// FollowOptions configures Follow.
//
// Fields:
//   - Device: the name the server keeps the durable cursor under.
//   - AfterID: where to start on first connect; 0 resumes the stored cursor.
//   - Count: stop after this many entries; 0 follows until ctx ends.
//   - MinDelay / MaxDelay: reconnect backoff bounds.
//   - Handler: called once per entry, in id order, before it is acked.
//   - OnReconnect: optional, told about every reconnect and its delay.
type FollowOptions struct {
	Device      string
	AfterID     int64
	Count       int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Handler     func(models.Entry) error
	OnReconnect func(delay time.Duration, cause error)
}

var errFollowDone = errors.New("follow done")

func cursorKey(device string) string {
	return "last_acked_id:" + device
}

// LastAcked returns the id this device last acknowledged, or 0.
func (s *NoteService) LastAcked(ctx context.Context, device string) (int64, error) {
	id, err := metadata.NewSQLiteRepository(s.db).GetInt(ctx, cursorKey(device))
	if errors.Is(err, common.ErrorNotFound) {
		return 0, nil
	}
	return id, err
}

type follower struct {
	svc       *NoteService
	opts      FollowOptions
	last      int64
	delivered int
}

func (o FollowOptions) backoff() retry.Backoff {
	b := retry.NewExponential(o.MinDelay)
	b = retry.WithJitterPercent(10, b)
	return retry.WithCappedDuration(o.MaxDelay, b)
}

// Follow streams live entries to opts.Handler, caching and acknowledging
// each one. A dropped connection is reopened with exponential backoff from
// the last handled id; the backoff starts over once a connection has made
// progress. Follow returns nil when Count entries were handled, ctx's error
// when it ends, and any error that is not ErrUnavailable as is.
func (s *NoteService) Follow(ctx context.Context, opts FollowOptions) error {
	if opts.Handler == nil {
		return fmt.Errorf("%w: follow handler is required", client.ErrInvalidInput)
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}

	f := &follower{svc: s, opts: opts}
	b := opts.backoff()
	for {
		n, err := f.once(ctx)
		switch {
		case errors.Is(err, errFollowDone):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case !errors.Is(err, client.ErrUnavailable):
			return err
		}

		if n > 0 {
			b = opts.backoff()
		}
		delay, _ := b.Next()
		if opts.OnReconnect != nil {
			opts.OnReconnect(delay, err)
		}

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

func (f *follower) request() client.SubscribeRequest {
	req := client.SubscribeRequest{Device: f.opts.Device}
	switch {
	case f.last > 0:
		req.AfterID = f.last
	case f.opts.AfterID > 0:
		req.AfterID = f.opts.AfterID
	default:
		req.Resume = true
	}
	return req
}

// once runs one connection and returns how many entries it handled.
func (f *follower) once(ctx context.Context) (int, error) {
	feed, err := f.svc.client.Subscribe(ctx, f.request())
	if err != nil {
		return 0, err
	}
	defer feed.Close()

	cache := entries.NewSQLiteRepository(f.svc.db)
	meta := metadata.NewSQLiteRepository(f.svc.db)

	n := 0
	for {
		e, err := feed.Recv()
		if err != nil {
			return n, err
		}
		// Redelivery after an ack that never reached the server.
		if e.ID <= f.last {
			continue
		}

		if err := cache.Upsert(ctx, e); err != nil {
			return n, fmt.Errorf("cache entry %d: %w", e.ID, err)
		}
		if err := f.opts.Handler(e); err != nil {
			return n, err
		}
		f.last = e.ID
		f.delivered++
		n++

		if err := f.svc.client.Ack(ctx, feed.SessionID(), e.ID); err != nil {
			return n, err
		}
		if err := meta.SetInt(ctx, cursorKey(f.opts.Device), e.ID); err != nil {
			return n, fmt.Errorf("save cursor: %w", err)
		}

		if f.opts.Count > 0 && f.delivered >= f.opts.Count {
			return n, errFollowDone
		}
	}
}
