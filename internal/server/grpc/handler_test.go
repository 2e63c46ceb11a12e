package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
	pb "github.com/dmitrijs2005/notesync/internal/proto"
	"github.com/dmitrijs2005/notesync/internal/server/entrystore"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/dmitrijs2005/notesync/internal/server/sequencer"
	"github.com/dmitrijs2005/notesync/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ---- fakes ----

type fakeUser struct {
	refreshResp *services.TokenPair
	refreshErr  error

	regResp *models.User
	regErr  error

	loginResp *services.TokenPair
	loginErr  error
}

func (f *fakeUser) RefreshToken(ctx context.Context, refresh string) (*services.TokenPair, error) {
	return f.refreshResp, f.refreshErr
}
func (f *fakeUser) Register(ctx context.Context, username, password string) (*models.User, error) {
	return f.regResp, f.regErr
}
func (f *fakeUser) Login(ctx context.Context, username, password string) (*services.TokenPair, error) {
	return f.loginResp, f.loginErr
}

type fakeNotes struct {
	status services.Status

	submitted sequencer.Submission
	author    string
	submitOut models.Entry
	submitErr error

	filter   entrystore.Filter
	queryOut []models.Entry
	queryErr error

	stageOut models.AttachmentRef
	stageErr error

	fetchOut *services.Attachment
	fetchErr error

	ackUser    string
	ackSession string
	ackID      int64
	ackErr     error
}

func (f *fakeNotes) Status() services.Status { return f.status }
func (f *fakeNotes) Submit(ctx context.Context, author string, sub sequencer.Submission) (models.Entry, error) {
	f.author, f.submitted = author, sub
	return f.submitOut, f.submitErr
}
func (f *fakeNotes) Query(ctx context.Context, flt entrystore.Filter) ([]models.Entry, error) {
	f.filter = flt
	return f.queryOut, f.queryErr
}
func (f *fakeNotes) StageAttachment(ctx context.Context, owner, name string, data []byte) (models.AttachmentRef, error) {
	return f.stageOut, f.stageErr
}
func (f *fakeNotes) FetchAttachment(ctx context.Context, user, token string) (*services.Attachment, error) {
	return f.fetchOut, f.fetchErr
}
func (f *fakeNotes) OpenFeed(ctx context.Context, req services.FeedRequest) (*services.Feed, error) {
	return nil, common.ErrorUnauthorized
}
func (f *fakeNotes) Ack(ctx context.Context, user, sessionID string, entryID int64) error {
	f.ackUser, f.ackSession, f.ackID = user, sessionID, entryID
	return f.ackErr
}

// ---- helpers ----

func newServer(u userSvc, n noteSvc) *GRPCServer {
	return &GRPCServer{
		address:   "127.0.0.1:0",
		users:     u,
		notes:     n,
		logger:    logging.Nop(),
		jwtSecret: []byte("k"),
	}
}

func asUser(name string) context.Context {
	return context.WithValue(context.Background(), userNameKey, name)
}

// ---- tests ----

func TestPing_ReportsStatus(t *testing.T) {
	at := time.Unix(0, 12345).UTC()
	s := newServer(&fakeUser{}, &fakeNotes{status: services.Status{MaxID: 7, LastCommittedAt: at, LiveSessions: 2}})
	resp, err := s.Ping(context.Background(), &pb.PingRequest{})
	if err != nil {
		t.Fatalf("Ping error: %v", err)
	}
	if resp.GetStatus() != "OK" || resp.GetMaxId() != 7 || resp.GetLastCommittedAtUnixNano() != 12345 || resp.GetLiveSessions() != 2 {
		t.Fatalf("unexpected ping: %+v", resp)
	}
}

func TestRefreshToken_OK(t *testing.T) {
	u := &fakeUser{
		refreshResp: &services.TokenPair{AccessToken: "a", RefreshToken: "r"},
	}
	s := newServer(u, &fakeNotes{})
	resp, err := s.RefreshToken(context.Background(), &pb.RefreshTokenRequest{RefreshToken: "r0"})
	if err != nil {
		t.Fatalf("RefreshToken error: %v", err)
	}
	if resp.GetAccessToken() != "a" || resp.GetRefreshToken() != "r" {
		t.Fatalf("unexpected tokens: %+v", resp)
	}
}

func TestRefreshToken_ErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{errors.New("oops"), codes.Internal},
		{common.ErrRefreshTokenExpired, codes.Unauthenticated},
		{common.ErrorUnauthorized, codes.Unauthenticated},
	}
	for _, c := range cases {
		s := newServer(&fakeUser{refreshErr: c.err}, &fakeNotes{})
		_, err := s.RefreshToken(context.Background(), &pb.RefreshTokenRequest{RefreshToken: "r0"})
		if status.Code(err) != c.want {
			t.Fatalf("%v: want %v, got %v", c.err, c.want, status.Code(err))
		}
	}
}

func TestRegisterUser_OK(t *testing.T) {
	u := &fakeUser{regResp: &models.User{UserName: "alice"}}
	s := newServer(u, &fakeNotes{})
	resp, err := s.RegisterUser(context.Background(), &pb.RegisterUserRequest{Username: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}
	if resp.GetUsername() != "alice" {
		t.Fatalf("unexpected username %q", resp.GetUsername())
	}
}

func TestRegisterUser_Errors(t *testing.T) {
	s := newServer(&fakeUser{regErr: common.ErrorAlreadyExists}, &fakeNotes{})
	_, err := s.RegisterUser(context.Background(), &pb.RegisterUserRequest{Username: "u", Password: "p"})
	if status.Code(err) != codes.AlreadyExists {
		t.Fatalf("want AlreadyExists, got %v", status.Code(err))
	}

	s = newServer(&fakeUser{regErr: common.ErrValidation}, &fakeNotes{})
	_, err = s.RegisterUser(context.Background(), &pb.RegisterUserRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("want InvalidArgument, got %v", status.Code(err))
	}
}

func TestLogin_Mapping(t *testing.T) {
	s := newServer(&fakeUser{loginResp: &services.TokenPair{AccessToken: "A", RefreshToken: "R"}}, &fakeNotes{})
	resp, err := s.Login(context.Background(), &pb.LoginRequest{Username: "u", Password: "p"})
	if err != nil || resp.GetAccessToken() != "A" || resp.GetRefreshToken() != "R" {
		t.Fatalf("Login OK path: resp=%+v err=%v", resp, err)
	}

	s = newServer(&fakeUser{loginErr: common.ErrorUnauthorized}, &fakeNotes{})
	_, err = s.Login(context.Background(), &pb.LoginRequest{})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", status.Code(err))
	}

	s = newServer(&fakeUser{loginErr: errors.New("db down")}, &fakeNotes{})
	_, err = s.Login(context.Background(), &pb.LoginRequest{})
	if status.Code(err) != codes.Internal {
		t.Fatalf("want Internal, got %v", status.Code(err))
	}
}

func TestSubmit_UsesAuthenticatedUser(t *testing.T) {
	committed := time.Unix(0, 500).UTC()
	n := &fakeNotes{submitOut: models.Entry{ID: 3, Author: "alice", Body: "hi", Kind: models.KindMarkdown, CommittedAt: committed}}
	s := newServer(&fakeUser{}, n)

	resp, err := s.Submit(asUser("alice"), &pb.SubmitRequest{
		Body: "hi", Kind: "markdown", Attachments: []string{"t"}, ClientSubmittedAtUnixNano: 400, IdempotencyKey: "k",
	})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if n.author != "alice" {
		t.Fatalf("author = %q", n.author)
	}
	if n.submitted.Kind != models.KindMarkdown || n.submitted.IdempotencyKey != "k" || !n.submitted.ClientSubmittedAt.Equal(time.Unix(0, 400)) {
		t.Fatalf("submission not mapped: %+v", n.submitted)
	}
	if resp.GetEntry().GetId() != 3 || resp.GetEntry().GetCommittedAtUnixNano() != 500 {
		t.Fatalf("unexpected entry: %+v", resp.GetEntry())
	}
}

func TestSubmit_Errors(t *testing.T) {
	s := newServer(&fakeUser{}, &fakeNotes{})
	if _, err := s.Submit(context.Background(), &pb.SubmitRequest{Body: "x"}); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("no user: want Unauthenticated, got %v", status.Code(err))
	}

	cases := []struct {
		err  error
		want codes.Code
	}{
		{common.ErrValidation, codes.InvalidArgument},
		{common.ErrStorage, codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
	}
	for _, c := range cases {
		s := newServer(&fakeUser{}, &fakeNotes{submitErr: c.err})
		_, err := s.Submit(asUser("u"), &pb.SubmitRequest{Body: "x"})
		if status.Code(err) != c.want {
			t.Fatalf("%v: want %v, got %v", c.err, c.want, status.Code(err))
		}
	}
}

func TestQuery_MapsFilter(t *testing.T) {
	n := &fakeNotes{queryOut: []models.Entry{{ID: 1}, {ID: 2}}}
	s := newServer(&fakeUser{}, n)

	resp, err := s.Query(asUser("u"), &pb.QueryRequest{AfterId: 1, Author: "bob", SinceUnixNano: 10, Text: "a*", Limit: 5})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(resp.GetEntries()) != 2 {
		t.Fatalf("want 2 entries, got %d", len(resp.GetEntries()))
	}
	want := entrystore.Filter{AfterID: 1, Author: "bob", Since: time.Unix(0, 10).UTC(), Text: "a*", Limit: 5}
	if n.filter != want {
		t.Fatalf("filter = %+v, want %+v", n.filter, want)
	}
}

func TestAttachments_Handlers(t *testing.T) {
	n := &fakeNotes{
		stageOut: models.AttachmentRef{Token: "tok"},
		fetchOut: &services.Attachment{Ref: models.AttachmentRef{Name: "a.txt", EntryID: 4}, Data: []byte("x"), URL: "https://u"},
	}
	s := newServer(&fakeUser{}, n)

	st, err := s.StageAttachment(asUser("u"), &pb.StageAttachmentRequest{Name: "a.txt", Data: []byte("x")})
	if err != nil || st.GetToken() != "tok" {
		t.Fatalf("StageAttachment: %+v %v", st, err)
	}
	f, err := s.FetchAttachment(asUser("u"), &pb.FetchAttachmentRequest{Token: "tok"})
	if err != nil || f.GetName() != "a.txt" || f.GetEntryId() != 4 || f.GetUrl() != "https://u" {
		t.Fatalf("FetchAttachment: %+v %v", f, err)
	}
	if string(f.GetData()) != "x" {
		t.Fatalf("data = %q", f.GetData())
	}
	f, err = s.FetchAttachment(asUser("u"), &pb.FetchAttachmentRequest{Token: "tok", UrlOnly: true})
	if err != nil || f.GetUrl() != "https://u" || len(f.GetData()) != 0 {
		t.Fatalf("FetchAttachment url only: %+v %v", f, err)
	}

	s = newServer(&fakeUser{}, &fakeNotes{fetchErr: common.ErrorNotFound})
	if _, err := s.FetchAttachment(asUser("u"), &pb.FetchAttachmentRequest{Token: "x"}); status.Code(err) != codes.NotFound {
		t.Fatalf("want NotFound, got %v", status.Code(err))
	}
}

func TestAck_Handler(t *testing.T) {
	n := &fakeNotes{}
	s := newServer(&fakeUser{}, n)

	resp, err := s.Ack(asUser("bob"), &pb.AckRequest{SessionId: "s1", EntryId: 9})
	if err != nil || resp.GetLastAckedId() != 9 {
		t.Fatalf("Ack: %+v %v", resp, err)
	}
	if n.ackUser != "bob" || n.ackSession != "s1" || n.ackID != 9 {
		t.Fatalf("ack not forwarded: %+v", n)
	}

	s = newServer(&fakeUser{}, &fakeNotes{ackErr: common.ErrAckRegression})
	if _, err := s.Ack(asUser("bob"), &pb.AckRequest{SessionId: "s1", EntryId: 1}); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("want FailedPrecondition, got %v", status.Code(err))
	}
}
