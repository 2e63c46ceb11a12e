package services

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
	"github.com/dmitrijs2005/notesync/internal/server/attachments"
	"github.com/dmitrijs2005/notesync/internal/server/auth"
	"github.com/dmitrijs2005/notesync/internal/server/dispatcher"
	"github.com/dmitrijs2005/notesync/internal/server/entrystore"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/dmitrijs2005/notesync/internal/server/render"
	"github.com/dmitrijs2005/notesync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/notesync/internal/server/sequencer"
	"github.com/dmitrijs2005/notesync/internal/server/sessions"
)

// CSVHeader is the first row written by ExportCSV.
var CSVHeader = []string{"Creation Date", "Text", "User", "Last Modified", "Attachments"}

// LogStatus reports the durable log's high-water mark.
type LogStatus interface {
	MaxID() int64
	LastCommittedAt() time.Time
}

// Components are the core parts the NoteService drives.
type Components struct {
	Log        LogStatus
	Store      *entrystore.Store
	Sequencer  *sequencer.Sequencer
	Resolver   *attachments.Resolver
	Sessions   *sessions.Registry
	Dispatcher *dispatcher.Dispatcher
}

// NoteService is what the transports call: submitting and querying entries,
// staging and fetching attachments, and live feeds with acknowledgments.
type NoteService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	c      Components
	logger logging.Logger
	now    func() time.Time
}

func NewNoteService(db *sql.DB, m repomanager.RepositoryManager, c Components, logger logging.Logger) *NoteService {
	return &NoteService{
		db:     db,
		repos:  m,
		c:      c,
		logger: logger.With("module", "notes"),
		now:    time.Now,
	}
}

// Status is the last-update probe.
type Status struct {
	MaxID           int64
	LastCommittedAt time.Time
	LiveSessions    int
}

func (s *NoteService) Status() Status {
	return Status{
		MaxID:           s.c.Log.MaxID(),
		LastCommittedAt: s.c.Log.LastCommittedAt(),
		LiveSessions:    len(s.c.Sessions.Live()),
	}
}

// Submit commits sub on behalf of author. The author always comes from the
// authenticated caller, never from the request body.
func (s *NoteService) Submit(ctx context.Context, author string, sub sequencer.Submission) (models.Entry, error) {
	sub.Author = author
	return s.c.Sequencer.Submit(ctx, sub)
}

func (s *NoteService) Get(ctx context.Context, id int64) (models.Entry, error) {
	return s.c.Store.Get(id)
}

func (s *NoteService) Query(ctx context.Context, f entrystore.Filter) ([]models.Entry, error) {
	return s.c.Store.Query(f)
}

// Render returns the HTML form of entry id.
func (s *NoteService) Render(ctx context.Context, id int64) (string, error) {
	e, err := s.c.Store.Get(id)
	if err != nil {
		return "", err
	}
	return render.Entry(e)
}

func (s *NoteService) StageAttachment(ctx context.Context, owner, name string, data []byte) (models.AttachmentRef, error) {
	if strings.TrimSpace(name) == "" {
		return models.AttachmentRef{}, fmt.Errorf("%w: attachment name is required", common.ErrValidation)
	}
	return s.c.Resolver.Stage(ctx, owner, name, data)
}

// Attachment is a fetched attachment. URL is a direct download link when the
// blob backend can presign one.
type Attachment struct {
	Ref  models.AttachmentRef
	Data []byte
	URL  string
}

// FetchAttachment returns the bytes behind token. Committed attachments are
// readable by every user; staged ones only by their owner.
func (s *NoteService) FetchAttachment(ctx context.Context, user, token string) (*Attachment, error) {
	ref, err := s.c.Resolver.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ref.Bound() && ref.Owner != user {
		return nil, fmt.Errorf("attachment %s: %w", token, common.ErrorNotFound)
	}

	data, ref, err := s.c.Resolver.Fetch(ctx, token)
	if err != nil {
		return nil, err
	}
	url, err := s.c.Resolver.PresignURL(ctx, ref)
	if err != nil {
		s.logger.Warn(ctx, "Presign failed", "token", token, "error", err)
		url = ""
	}
	return &Attachment{Ref: ref, Data: data, URL: url}, nil
}

// FeedRequest opens a live feed. With Resume set the feed starts after the
// device's stored cursor and AfterID is ignored.
type FeedRequest struct {
	User       string
	Device     string
	Credential auth.Credential
	AfterID    int64
	Resume     bool
}

// Feed is one session's ordered stream of committed entries.
type Feed struct {
	svc     *NoteService
	session models.Session
	sub     *dispatcher.Subscription
}

// OpenFeed registers and authenticates a session and subscribes it. The
// session is unregistered again if any step fails.
func (s *NoteService) OpenFeed(ctx context.Context, req FeedRequest) (*Feed, error) {
	start := req.AfterID
	if req.Resume {
		c, err := s.repos.Cursors(s.db).Get(ctx, req.User, req.Device)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			start = 0
		case err != nil:
			return nil, fmt.Errorf("%w: load cursor: %w", common.ErrStorage, err)
		default:
			start = c.LastAckedID
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: negative start id", common.ErrValidation)
	}
	if maxID := s.c.Log.MaxID(); start > maxID {
		start = maxID
	}

	session, err := s.c.Sessions.Register(models.Session{User: req.User, Device: req.Device, LastAckedID: start})
	if err != nil {
		return nil, err
	}
	if err := s.c.Sessions.Authenticate(ctx, session.ID, req.User, req.Credential); err != nil {
		s.c.Sessions.Unregister(session.ID)
		return nil, err
	}
	session.State = models.SessionAuthenticated

	sub := s.c.Dispatcher.Attach(session.ID, start)
	s.logger.Info(ctx, "Feed opened", "session", session.ID, "user", req.User, "device", req.Device, "after_id", start)
	return &Feed{svc: s, session: session, sub: sub}, nil
}

func (f *Feed) SessionID() string { return f.session.ID }

// StartID is the id the feed was opened after.
func (f *Feed) StartID() int64 { return f.session.LastAckedID }

// Next blocks until the next entry is available.
func (f *Feed) Next(ctx context.Context) (models.Entry, error) {
	return f.sub.Next(ctx)
}

func (f *Feed) Ack(ctx context.Context, entryID int64) error {
	return f.svc.Ack(ctx, f.session.User, f.session.ID, entryID)
}

// Close detaches the subscription and forgets the session.
func (f *Feed) Close() {
	f.sub.Close()
	f.svc.c.Sessions.Unregister(f.session.ID)
}

// Ack records that user's session has processed everything up to entryID
// and persists the device cursor.
func (s *NoteService) Ack(ctx context.Context, user, sessionID string, entryID int64) error {
	if maxID := s.c.Log.MaxID(); entryID > maxID {
		return fmt.Errorf("%w: ack %d is beyond the last committed entry %d", common.ErrValidation, entryID, maxID)
	}
	session, err := s.c.Sessions.Get(sessionID)
	if err != nil {
		return err
	}
	if session.User != user {
		return fmt.Errorf("session %s: %w", sessionID, common.ErrorUnauthorized)
	}
	if _, err := s.c.Sessions.Ack(sessionID, entryID); err != nil {
		return err
	}

	c := models.Cursor{
		UserName:    session.User,
		Device:      session.Device,
		LastAckedID: entryID,
		UpdatedAt:   models.Stamp(s.now()),
	}
	if err := s.repos.Cursors(s.db).Advance(ctx, c); err != nil {
		return fmt.Errorf("%w: persist cursor: %w", common.ErrStorage, err)
	}
	return nil
}

// ExportCSV writes the entries matching f as CSV. Attachments are listed by
// name, one per line inside the cell.
func (s *NoteService) ExportCSV(ctx context.Context, w io.Writer, f entrystore.Filter) error {
	entries, err := s.c.Store.Query(f)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, e := range entries {
		names, err := s.attachmentNames(ctx, e.Attachments)
		if err != nil {
			return err
		}
		committed := e.CommittedAt.Format(time.RFC3339Nano)
		row := []string{committed, e.Body, e.Author, committed, strings.Join(names, "\n")}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *NoteService) attachmentNames(ctx context.Context, tokens []string) ([]string, error) {
	names := make([]string, 0, len(tokens))
	for _, t := range tokens {
		ref, err := s.c.Resolver.Lookup(ctx, t)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				names = append(names, t)
				continue
			}
			return nil, err
		}
		name := ref.Name
		if name == "" {
			name = "attachment-" + strconv.Itoa(ref.Position+1)
		}
		names = append(names, name)
	}
	return names, nil
}
