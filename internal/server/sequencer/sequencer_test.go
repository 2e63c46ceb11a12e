package sequencer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/dbx"
	"github.com/dmitrijs2005/notesync/internal/dbx/dbxtest"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/attachments"
	"github.com/dmitrijs2005/notesync/internal/server/dispatcher"
	"github.com/dmitrijs2005/notesync/internal/server/durablelog"
	"github.com/dmitrijs2005/notesync/internal/server/entrystore"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLog struct {
	mu      sync.Mutex
	entries []models.Entry
	visible int
	failN   int
	// landN appends become durable but report a storage error.
	landN   int
	stale   bool
	syncErr error
}

func (l *memLog) MaxID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(l.visible)
}

func (l *memLog) LastCommittedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.visible == 0 {
		return time.Time{}
	}
	return l.entries[l.visible-1].CommittedAt
}

func (l *memLog) Sync(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.syncErr != nil {
		return l.syncErr
	}
	if l.stale {
		l.visible = len(l.entries)
		l.stale = false
	}
	return nil
}

func (l *memLog) Append(_ context.Context, e models.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failN > 0 {
		l.failN--
		return fmt.Errorf("%w: disk full", common.ErrStorage)
	}
	if e.ID != int64(l.visible)+1 {
		return fmt.Errorf("%w: out of order", common.ErrValidation)
	}
	l.entries = append(l.entries, e)
	if l.landN > 0 {
		l.landN--
		l.stale = true
		return fmt.Errorf("%w: connection reset", common.ErrStorage)
	}
	l.visible++
	return nil
}

func (l *memLog) ReadRange(_ context.Context, fromID, toID int64) ([]models.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	toID = min(toID, int64(l.visible))
	if fromID < 1 || fromID > toID {
		return nil, nil
	}
	return append([]models.Entry(nil), l.entries[fromID-1:toID]...), nil
}

type noAttachments struct{}

func (noAttachments) Validate(_ context.Context, _ string, tokens []string) error {
	for _, t := range tokens {
		if strings.HasPrefix(t, "bad") {
			return fmt.Errorf("%w: unknown token", common.ErrValidation)
		}
	}
	return nil
}

type recorder struct {
	mu  sync.Mutex
	ids []int64
}

func (r *recorder) Notify(e models.Entry) {
	r.mu.Lock()
	r.ids = append(r.ids, e.ID)
	r.mu.Unlock()
}

type fixture struct {
	log   *memLog
	index *entrystore.Store
	rec   *recorder
	seq   *Sequencer
}

func newFixture(opts Options) *fixture {
	f := &fixture{log: &memLog{}, index: entrystore.New(), rec: &recorder{}}
	f.seq = New(f.log, f.index, noAttachments{}, f.rec, opts, logging.Nop())
	return f
}

func TestSubmit_AssignsIdAndTimestamp(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 123456789, time.FixedZone("X", 3600))
	f := newFixture(Options{Now: func() time.Time { return now }})

	client := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	e, err := f.seq.Submit(context.Background(), Submission{
		Author: "alice", Body: "hello", ClientSubmittedAt: client,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), e.ID)
	assert.Equal(t, models.KindPlain, e.Kind)
	assert.Equal(t, models.Stamp(now), e.CommittedAt)
	assert.Equal(t, time.UTC, e.CommittedAt.Location())
	assert.Equal(t, client, e.ClientSubmittedAt)
	assert.Nil(t, e.Attachments)

	assert.Equal(t, []models.Entry{e}, f.log.entries)
	got, err := f.index.Get(1)
	require.NoError(t, err)
	assert.Equal(t, e, got)
	assert.Equal(t, []int64{1}, f.rec.ids)
}

func TestSubmit_ValidationLeavesNoTrace(t *testing.T) {
	f := newFixture(Options{MaxBodyBytes: 10, MaxAttachments: 2})

	cases := map[string]Submission{
		"no author":        {Body: "x"},
		"oversized body":   {Author: "a", Body: strings.Repeat("x", 11)},
		"invalid utf8":     {Author: "a", Body: "\xff\xfe"},
		"unknown kind":     {Author: "a", Body: "x", Kind: "html"},
		"empty":            {Author: "a", Body: "   "},
		"too many tokens":  {Author: "a", Body: "x", Attachments: []string{"t1", "t2", "t3"}},
		"duplicate tokens": {Author: "a", Body: "x", Attachments: []string{"t1", "t1"}},
		"empty token":      {Author: "a", Body: "x", Attachments: []string{""}},
		"unknown token":    {Author: "a", Body: "x", Attachments: []string{"bad-1"}},
	}
	for name, sub := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.seq.Submit(context.Background(), sub)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}

	assert.Equal(t, int64(0), f.log.MaxID())
	assert.Equal(t, int64(0), f.index.MaxID())
	assert.Empty(t, f.rec.ids)
}

func TestSubmit_AttachmentsOnlyIsAllowed(t *testing.T) {
	f := newFixture(Options{})
	e, err := f.seq.Submit(context.Background(), Submission{Author: "a", Attachments: []string{"t1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, e.Attachments)
}

func TestSubmit_ClockRegressionKeepsOrder(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := []time.Time{base.Add(time.Minute), base, base.Add(-time.Hour), base.Add(2 * time.Minute)}
	i := 0
	f := newFixture(Options{Now: func() time.Time { t := clock[i]; i++; return t }})

	var stamps []time.Time
	for range clock {
		e, err := f.seq.Submit(context.Background(), Submission{Author: "a", Body: "x"})
		require.NoError(t, err)
		stamps = append(stamps, e.CommittedAt)
	}

	assert.Equal(t, []time.Time{
		base.Add(time.Minute), base.Add(time.Minute), base.Add(time.Minute), base.Add(2 * time.Minute),
	}, stamps)
}

func TestSubmit_StorageFailureConsumesNoId(t *testing.T) {
	f := newFixture(Options{})
	f.log.failN = 1
	sub := Submission{Author: "alice", Body: "retry me"}

	_, err := f.seq.Submit(context.Background(), sub)
	require.ErrorIs(t, err, common.ErrStorage)
	assert.Equal(t, int64(0), f.index.MaxID())
	assert.Empty(t, f.rec.ids)

	e, err := f.seq.Submit(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.ID)
	assert.Len(t, f.log.entries, 1)
}

func TestSubmit_IdempotencyKey(t *testing.T) {
	f := newFixture(Options{})
	sub := Submission{Author: "alice", Body: "once", IdempotencyKey: "k-1"}

	first, err := f.seq.Submit(context.Background(), sub)
	require.NoError(t, err)
	again, err := f.seq.Submit(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Len(t, f.log.entries, 1)
	assert.Equal(t, []int64{1}, f.rec.ids)

	// Keys are scoped per author.
	other, err := f.seq.Submit(context.Background(), Submission{Author: "bob", Body: "once", IdempotencyKey: "k-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), other.ID)
}

func TestSubmit_PublishesEntryFromLostCommitAck(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()
	f.log.landN = 1

	_, err := f.seq.Submit(ctx, Submission{Author: "alice", Body: "landed"})
	require.ErrorIs(t, err, common.ErrStorage)
	assert.Equal(t, int64(0), f.index.MaxID())

	e, err := f.seq.Submit(ctx, Submission{Author: "bob", Body: "next"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.ID)

	got, err := f.index.Query(entrystore.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "landed", got[0].Body)
	assert.Equal(t, "next", got[1].Body)
	assert.Equal(t, []int64{1, 2}, f.rec.ids)
}

func TestSubmit_RetryAfterLostCommitAckReturnsLandedEntry(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()
	f.log.landN = 1
	sub := Submission{Author: "alice", Body: "once", IdempotencyKey: "k-1"}

	_, err := f.seq.Submit(ctx, sub)
	require.ErrorIs(t, err, common.ErrStorage)

	e, err := f.seq.Submit(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.ID)
	assert.Len(t, f.log.entries, 1)
	assert.Equal(t, []int64{1}, f.rec.ids)
}

func TestSubmit_LogSyncFailureIsRetryable(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()
	f.log.landN = 1

	_, err := f.seq.Submit(ctx, Submission{Author: "alice", Body: "landed"})
	require.ErrorIs(t, err, common.ErrStorage)

	f.log.syncErr = fmt.Errorf("%w: database unreachable", common.ErrStorage)
	_, err = f.seq.Submit(ctx, Submission{Author: "bob", Body: "waits"})
	require.ErrorIs(t, err, common.ErrStorage)
	assert.NotErrorIs(t, err, common.ErrValidation)
	assert.Len(t, f.log.entries, 1)

	f.log.syncErr = nil
	e, err := f.seq.Submit(ctx, Submission{Author: "bob", Body: "waits"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.ID)
	assert.Equal(t, int64(2), f.index.MaxID())
}

func TestSubmit_WaitsForTicketWithContext(t *testing.T) {
	f := newFixture(Options{})
	f.seq.ticket <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.seq.Submit(ctx, Submission{Author: "a", Body: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(0), f.log.MaxID())

	<-f.seq.ticket
	_, err = f.seq.Submit(context.Background(), Submission{Author: "a", Body: "x"})
	assert.NoError(t, err)
}

func TestSubmit_ConcurrentAuthorsAreTotallyOrdered(t *testing.T) {
	f := newFixture(Options{})

	const writers, each = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				if _, err := f.seq.Submit(context.Background(), Submission{
					Author: fmt.Sprintf("user-%d", w), Body: fmt.Sprintf("%d/%d", w, i),
				}); err != nil {
					t.Error(err)
				}
			}
		}(w)
	}
	wg.Wait()

	require.Len(t, f.log.entries, writers*each)
	for i, e := range f.log.entries {
		require.Equal(t, int64(i+1), e.ID)
		if i > 0 {
			require.False(t, e.CommittedAt.Before(f.log.entries[i-1].CommittedAt))
		}
	}
	assert.Equal(t, int64(writers*each), f.index.MaxID())

	// Notify runs inside the commit point, so it sees commit order.
	for i, id := range f.rec.ids {
		require.Equal(t, int64(i+1), id)
	}
}

// End to end over sqlite: log, resolver, index and dispatcher.

type stack struct {
	db    *sql.DB
	log   *durablelog.Log
	res   *attachments.Resolver
	index *entrystore.Store
	disp  *dispatcher.Dispatcher
	seq   *Sequencer
}

type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memBlobs) Put(_ context.Context, d []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := fmt.Sprintf("k%d", len(m.data))
	m.data[k] = d
	return k, nil
}

func (m *memBlobs) Get(_ context.Context, k string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[k]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return d, nil
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	db, err := repomanager.OpenDB(ctx, dbx.DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newStackOn(t, db)
}

func newStackOn(t *testing.T, db *sql.DB) *stack {
	t.Helper()
	ctx := context.Background()
	repos := repomanager.NewRepositoryManager(dbx.DialectSQLite)
	require.NoError(t, repos.RunMigrations(ctx, db))

	var err error
	st := &stack{db: db, index: entrystore.New()}
	st.res = attachments.NewResolver(db, repos, &memBlobs{data: map[string][]byte{}}, logging.Nop())
	st.log, err = durablelog.Open(ctx, db, repos, st.res, logging.Nop())
	require.NoError(t, err)
	st.disp = dispatcher.New(st.index, dispatcher.Options{QueueCapacity: 2}, logging.Nop())
	st.seq = New(st.log, st.index, st.res, st.disp, Options{}, logging.Nop())
	return st
}

func TestSubmit_EndToEnd(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()
	sub := st.disp.Attach("watcher", 0)

	ref, err := st.res.Stage(ctx, "alice", "pic.png", []byte("png"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]models.Entry, 3)
	for i, author := range []string{"alice", "bob", "carol"} {
		wg.Add(1)
		go func(i int, author string) {
			defer wg.Done()
			s := Submission{Author: author, Body: "# note from " + author, Kind: models.KindMarkdown}
			if author == "alice" {
				s.Attachments = []string{ref.Token}
			}
			e, err := st.seq.Submit(ctx, s)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = e
		}(i, author)
	}
	wg.Wait()

	assert.Equal(t, int64(3), st.log.MaxID())

	stored, err := st.log.ReadRange(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i, e := range stored {
		assert.Equal(t, int64(i+1), e.ID)
		if i > 0 {
			assert.False(t, e.CommittedAt.Before(stored[i-1].CommittedAt))
		}
		assert.Equal(t, results[indexOf(results, e.ID)], e, "log round-trip must be identical")
	}

	for want := int64(1); want <= 3; want++ {
		e, err := sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, e.ID)
	}

	// The token is now bound and cannot be reused.
	_, err = st.seq.Submit(ctx, Submission{Author: "alice", Body: "again", Attachments: []string{ref.Token}})
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, int64(3), st.log.MaxID())
}

func TestSubmit_RaceOnSameTokenCommitsOnce(t *testing.T) {
	st := newStack(t)
	ctx := context.Background()

	ref, err := st.res.Stage(ctx, "alice", "a", []byte("x"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = st.seq.Submit(ctx, Submission{Author: "alice", Body: "x", Attachments: []string{ref.Token}})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, common.ErrValidation), "unexpected error %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(1), st.log.MaxID())
}

func indexOf(es []models.Entry, id int64) int {
	for i, e := range es {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func TestSubmit_LostCommitAckStaysVisibleAndOrdered(t *testing.T) {
	db, faults, err := dbxtest.Open(dbx.DialectSQLite.DriverName(), filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := newStackOn(t, db)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	watcher := st.disp.Attach("watcher", 0)

	first := Submission{Author: "alice", Body: "landed", IdempotencyKey: "k-a"}
	faults.FailNextCommit(dbxtest.FaultCommitLands, true)
	_, err = st.seq.Submit(ctx, first)
	require.ErrorIs(t, err, common.ErrStorage)
	faults.SetDown(false)

	next, err := st.seq.Submit(ctx, Submission{Author: "bob", Body: "next"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.ID)

	again, err := st.seq.Submit(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.ID)
	assert.Equal(t, int64(2), st.log.MaxID())

	got, err := st.index.Query(entrystore.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "landed", got[0].Body)

	for want := int64(1); want <= 2; want++ {
		e, err := watcher.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, want, e.ID)
	}
}
