package client

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/client/models"
)

// Query selects server-side history. Zero fields do not filter.
type Query struct {
	AfterID int64
	UpToID  int64
	Author  string
	Since   int64
	Until   int64
	Text    string
	Limit   int
}

// SubscribeRequest opens a live feed. With Resume set the server starts after
// the device's stored cursor and AfterID is ignored.
type SubscribeRequest struct {
	Device  string
	AfterID int64
	Resume  bool
}

// Feed is an open live feed.
type Feed interface {
	SessionID() string
	StartID() int64
	// Recv blocks for the next entry.
	Recv() (models.Entry, error)
	Close()
}

type Client interface {
	Close() error
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) error
	SetTokens(access, refresh string)
	Ping(ctx context.Context) (models.Status, error)
	Submit(ctx context.Context, sub models.Submission) (models.Entry, error)
	Query(ctx context.Context, q Query) ([]models.Entry, error)
	StageAttachment(ctx context.Context, name string, data []byte) (string, error)
	// FetchAttachment downloads an attachment. With urlOnly set the server
	// omits the bytes when it can hand out a direct URL instead.
	FetchAttachment(ctx context.Context, token string, urlOnly bool) (*models.Attachment, error)
	Subscribe(ctx context.Context, req SubscribeRequest) (Feed, error)
	Ack(ctx context.Context, sessionID string, entryID int64) error
}
