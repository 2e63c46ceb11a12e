// Package dispatcher fans committed entries out to subscribed sessions.
//
// Every subscription owns a bounded queue. Notify never blocks: when a
// queue is full the subscription is marked degraded, live pushes to it stop,
// and its next read replays from the entry store instead. Memory per session
// is capped at one queue plus one catch-up page.
package dispatcher

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/entrystore"
	"github.com/dmitrijs2005/notesync/internal/server/models"
)

const (
	DefaultQueueCapacity = 256
	DefaultPageSize      = 256
)

// Source serves catch-up reads.
type Source interface {
	MaxID() int64
	Query(f entrystore.Filter) ([]models.Entry, error)
}

type Options struct {
	QueueCapacity int
	PageSize      int
	// OnDegraded and OnRecovered are called when a subscription's live
	// queue overflows and when it has caught up again. They must not call
	// back into the Dispatcher.
	OnDegraded  func(sessionID string)
	OnRecovered func(sessionID string)
}

type Dispatcher struct {
	source Source
	opts   Options
	logger logging.Logger

	mu   sync.RWMutex
	subs map[string]*Subscription
}

func New(source Source, opts Options, logger logging.Logger) *Dispatcher {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Dispatcher{
		source: source,
		opts:   opts,
		logger: logger.With("module", "dispatcher"),
		subs:   make(map[string]*Subscription),
	}
}

// Attach subscribes sessionID to entries after afterID. The first reads
// replay history from the store, then the subscription switches to live
// pushes. Attaching an id that is already subscribed replaces the old
// subscription.
func (d *Dispatcher) Attach(sessionID string, afterID int64) *Subscription {
	s := &Subscription{
		d:           d,
		sessionID:   sessionID,
		queue:       make(chan models.Entry, d.opts.QueueCapacity),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		cursor:      afterID,
		needCatchUp: true,
	}

	d.mu.Lock()
	old := d.subs[sessionID]
	d.subs[sessionID] = s
	d.mu.Unlock()

	if old != nil {
		old.close()
	}
	return s
}

// Detach stops delivery to sessionID and releases its queue.
func (d *Dispatcher) Detach(sessionID string) {
	d.mu.Lock()
	s := d.subs[sessionID]
	delete(d.subs, sessionID)
	d.mu.Unlock()

	if s != nil {
		s.close()
	}
}

func (d *Dispatcher) detach(s *Subscription) {
	d.mu.Lock()
	if d.subs[s.sessionID] == s {
		delete(d.subs, s.sessionID)
	}
	d.mu.Unlock()
	s.close()
}

// Notify offers a committed entry to every subscription. It must be called
// in commit order and never blocks on a slow session.
func (d *Dispatcher) Notify(e models.Entry) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.subs {
		s.offer(e)
	}
}

// Len returns the number of live subscriptions.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Close detaches every subscription.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	subs := d.subs
	d.subs = make(map[string]*Subscription)
	d.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}

// CatchUp streams the entries in (afterID, max] where max is the last id
// committed when CatchUp was called. The sequence reads the store one page
// at a time and can be restarted from any yielded id.
func (d *Dispatcher) CatchUp(ctx context.Context, afterID int64) iter.Seq2[models.Entry, error] {
	upTo := d.source.MaxID()
	return func(yield func(models.Entry, error) bool) {
		cursor := afterID
		for cursor < upTo {
			if err := ctx.Err(); err != nil {
				yield(models.Entry{}, err)
				return
			}
			page, err := d.source.Query(entrystore.Filter{AfterID: cursor, UpToID: upTo, Limit: d.opts.PageSize})
			if err != nil {
				yield(models.Entry{}, err)
				return
			}
			if len(page) == 0 {
				yield(models.Entry{}, fmt.Errorf("%w: catch-up stalled after %d of %d", common.ErrStorage, cursor, upTo))
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
				cursor = e.ID
			}
		}
	}
}

// Subscription is one session's delivery path. Next must be called from a
// single goroutine.
type Subscription struct {
	d         *Dispatcher
	sessionID string

	queue     chan models.Entry
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	degraded  atomic.Bool

	// Owned by the Next caller.
	cursor      int64
	backlog     []models.Entry
	needCatchUp bool
	recovering  bool
}

func (s *Subscription) SessionID() string { return s.sessionID }

// Cursor is the id of the last entry returned by Next.
func (s *Subscription) Cursor() int64 { return s.cursor }

// Degraded reports whether live delivery is currently suspended.
func (s *Subscription) Degraded() bool { return s.degraded.Load() }

func (s *Subscription) offer(e models.Entry) {
	if s.degraded.Load() {
		return
	}
	select {
	case s.queue <- e:
		return
	default:
	}

	if s.degraded.CompareAndSwap(false, true) {
		s.d.logger.Warn(context.Background(), "Session queue overflow, switching to catch-up",
			"session", s.sessionID, "entry", e.ID, "capacity", cap(s.queue), "error", common.ErrBackpressureDegraded)
		if s.d.opts.OnDegraded != nil {
			s.d.opts.OnDegraded(s.sessionID)
		}
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Next returns the next entry after Cursor, blocking until one is committed.
// Entries are returned in id order, each exactly once. It returns
// common.ErrSessionClosed once the subscription is detached.
func (s *Subscription) Next(ctx context.Context) (models.Entry, error) {
	for {
		select {
		case <-s.done:
			return models.Entry{}, common.ErrSessionClosed
		default:
		}

		if len(s.backlog) > 0 {
			e := s.backlog[0]
			s.backlog = s.backlog[1:]
			s.cursor = e.ID
			return e, nil
		}

		if s.needCatchUp || s.degraded.Load() {
			if err := s.refill(ctx); err != nil {
				return models.Entry{}, err
			}
			continue
		}

		select {
		case e := <-s.queue:
			switch {
			case e.ID <= s.cursor:
				continue
			case e.ID > s.cursor+1:
				// Committed before this subscription saw the boundary; the
				// store has it.
				s.needCatchUp = true
				continue
			}
			s.cursor = e.ID
			return e, nil
		case <-s.wake:
		case <-s.done:
			return models.Entry{}, common.ErrSessionClosed
		case <-ctx.Done():
			return models.Entry{}, ctx.Err()
		}
	}
}

// refill loads one page after the cursor from the store. Clearing the
// degraded flag before reading MaxID guarantees that anything committed
// past the page boundary lands in the queue.
func (s *Subscription) refill(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.degraded.Swap(false) {
		s.recovering = true
	}
	for drained := false; !drained; {
		select {
		case <-s.queue:
		case <-s.wake:
		default:
			drained = true
		}
	}

	upTo := s.d.source.MaxID()
	if s.cursor >= upTo {
		s.needCatchUp = false
		s.recovered(ctx)
		return nil
	}

	page, err := s.d.source.Query(entrystore.Filter{AfterID: s.cursor, UpToID: upTo, Limit: s.d.opts.PageSize})
	if err != nil {
		// Stay in catch-up mode so the next call retries the read.
		s.needCatchUp = true
		return err
	}

	s.backlog = page
	s.needCatchUp = len(page) == 0 || page[len(page)-1].ID < upTo
	if len(page) == 0 {
		return fmt.Errorf("%w: catch-up stalled after %d of %d", common.ErrStorage, s.cursor, upTo)
	}
	if !s.needCatchUp {
		s.recovered(ctx)
	}
	return nil
}

// recovered reports the end of a degraded episode. An overflow during the
// catch-up read keeps the episode open; one that races the callback is
// reported again so the last call reflects the current state.
func (s *Subscription) recovered(ctx context.Context) {
	if !s.recovering || s.degraded.Load() {
		return
	}
	s.recovering = false
	s.d.logger.Info(ctx, "Session caught up", "session", s.sessionID, "cursor", s.cursor)
	if s.d.opts.OnRecovered != nil {
		s.d.opts.OnRecovered(s.sessionID)
	}
	if s.degraded.Load() && s.d.opts.OnDegraded != nil {
		s.d.opts.OnDegraded(s.sessionID)
	}
}

// Close detaches the subscription.
func (s *Subscription) Close() {
	s.d.detach(s)
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() { close(s.done) })
}
