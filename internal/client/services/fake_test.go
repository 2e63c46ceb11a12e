package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/dmitrijs2005/notesync/internal/client/client"
	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.OpenDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeClient implements client.Client for service tests.
type fakeClient struct {
	mu sync.Mutex

	onTokens client.TokenSink
	access   string
	refresh  string

	registerErr  error
	loginErr     error
	lastRegister string
	lastPassword string

	pingOut models.Status

	submitErrs []error
	submitOut  models.Entry
	submits    []models.Submission

	queryOut []models.Entry
	queryErr error
	lastQ    client.Query

	staged   map[string][]byte
	fetchOut *models.Attachment
	lastURL  bool

	feeds      []*fakeFeed
	subErrs    []error
	subscribed []client.SubscribeRequest
	acks       []int64
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) Register(ctx context.Context, u, p string) error {
	f.lastRegister, f.lastPassword = u, p
	return f.registerErr
}

func (f *fakeClient) Login(ctx context.Context, u, p string) error {
	f.lastPassword = p
	if f.loginErr != nil {
		return f.loginErr
	}
	f.SetTokens("acc-"+u, "ref-"+u)
	if f.onTokens != nil {
		f.onTokens("acc-"+u, "ref-"+u)
	}
	return nil
}

func (f *fakeClient) SetTokens(a, r string) { f.access, f.refresh = a, r }

func (f *fakeClient) Ping(ctx context.Context) (models.Status, error) { return f.pingOut, nil }

func (f *fakeClient) Submit(ctx context.Context, sub models.Submission) (models.Entry, error) {
	f.submits = append(f.submits, sub)
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return models.Entry{}, err
		}
	}
	e := f.submitOut
	e.Body, e.Attachments = sub.Body, sub.Attachments
	return e, nil
}

func (f *fakeClient) Query(ctx context.Context, q client.Query) ([]models.Entry, error) {
	f.lastQ = q
	return f.queryOut, f.queryErr
}

func (f *fakeClient) StageAttachment(ctx context.Context, name string, data []byte) (string, error) {
	if f.staged == nil {
		f.staged = map[string][]byte{}
	}
	f.staged[name] = data
	return "tok-" + name, nil
}

func (f *fakeClient) FetchAttachment(ctx context.Context, token string, urlOnly bool) (*models.Attachment, error) {
	f.lastURL = urlOnly
	a := *f.fetchOut
	return &a, nil
}

func (f *fakeClient) Subscribe(ctx context.Context, req client.SubscribeRequest) (client.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, req)
	if len(f.subErrs) > 0 {
		err := f.subErrs[0]
		f.subErrs = f.subErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.feeds) == 0 {
		return nil, client.ErrUnauthorized
	}
	feed := f.feeds[0]
	f.feeds = f.feeds[1:]
	return feed, nil
}

func (f *fakeClient) Ack(ctx context.Context, sessionID string, entryID int64) error {
	f.acks = append(f.acks, entryID)
	return nil
}

// fakeFeed replays entries, then fails with end.
type fakeFeed struct {
	id      string
	entries []models.Entry
	end     error
	closed  bool
}

func (f *fakeFeed) SessionID() string { return f.id }
func (f *fakeFeed) StartID() int64    { return 0 }
func (f *fakeFeed) Close()            { f.closed = true }

func (f *fakeFeed) Recv() (models.Entry, error) {
	if len(f.entries) == 0 {
		return models.Entry{}, f.end
	}
	e := f.entries[0]
	f.entries = f.entries[1:]
	return e, nil
}
