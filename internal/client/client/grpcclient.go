package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/dmitrijs2005/notesync/internal/common"
	pb "github.com/dmitrijs2005/notesync/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TokenSink is told about every new token pair, from Login or a refresh.
type TokenSink func(access, refresh string)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.NoteSyncClient
	onTokens    TokenSink

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.refreshToken
}

// SetTokens installs a token pair, e.g. one restored from the local cache.
func (s *GRPCClient) SetTokens(access, refresh string) {
	s.mu.Lock()
	s.accessToken, s.refreshToken = access, refresh
	s.mu.Unlock()
}

func (s *GRPCClient) storeTokens(access, refresh string) {
	s.SetTokens(access, refresh)
	if s.onTokens != nil {
		s.onTokens(access, refresh)
	}
}

// refresh rotates the token pair. used is the access token the failed call
// carried; if another caller already rotated it, the new one is reused.
func (s *GRPCClient) refresh(ctx context.Context, used string) error {
	access, refreshToken := s.tokens()
	if access != used {
		return nil
	}
	if refreshToken == "" {
		return ErrUnauthorized
	}

	resp, err := s.client.RefreshToken(ctx, &pb.RefreshTokenRequest{RefreshToken: refreshToken})
	if err != nil {
		return s.mapError(err)
	}
	s.storeTokens(resp.GetAccessToken(), resp.GetRefreshToken())
	return nil
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	access, _ := s.tokens()
	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)

	if err == nil || method == pb.FullMethod("RefreshToken") || !isTokenExpired(err) {
		return err
	}

	if rerr := s.refresh(ctx, access); rerr != nil {
		return err
	}

	// Tokens refreshed, retry once with the new access token.
	access, _ = s.tokens()
	return invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
}

func (s *GRPCClient) streamAccessTokenInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	access, _ := s.tokens()
	return streamer(withAccessToken(ctx, access), desc, cc, method, opts...)
}

// NewNoteSyncClientService connects to endpointURL. extra options are
// appended to the defaults (insecure transport and the token interceptors).
func NewNoteSyncClientService(endpointURL string, onTokens TokenSink, extra ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, onTokens: onTokens}
	if err := c.InitGRPCClient(extra...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(extra ...grpc.DialOption) error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithStreamInterceptor(s.streamAccessTokenInterceptor),
	}, extra...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewNoteSyncClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) Register(ctx context.Context, userName, password string) error {
	_, err := s.client.RegisterUser(ctx, &pb.RegisterUserRequest{Username: userName, Password: password})
	return s.mapError(err)
}

func (s *GRPCClient) Login(ctx context.Context, userName, password string) error {
	resp, err := s.client.Login(ctx, &pb.LoginRequest{Username: userName, Password: password})
	if err != nil {
		return s.mapError(err)
	}
	s.storeTokens(resp.GetAccessToken(), resp.GetRefreshToken())
	return nil
}

func (s *GRPCClient) Ping(ctx context.Context) (models.Status, error) {
	resp, err := s.client.Ping(ctx, &pb.PingRequest{})
	if err != nil {
		return models.Status{}, s.mapError(err)
	}
	if resp.GetStatus() != "OK" {
		return models.Status{}, ErrUnavailable
	}
	return models.Status{
		MaxID:           resp.GetMaxId(),
		LastCommittedAt: fromUnixNano(resp.GetLastCommittedAtUnixNano()),
		LiveSessions:    resp.GetLiveSessions(),
	}, nil
}

func (s *GRPCClient) Submit(ctx context.Context, sub models.Submission) (models.Entry, error) {
	resp, err := s.client.Submit(ctx, &pb.SubmitRequest{
		Body:                      sub.Body,
		Kind:                      sub.Kind,
		Attachments:               sub.Attachments,
		ClientSubmittedAtUnixNano: unixNano(sub.ClientSubmittedAt),
		IdempotencyKey:            sub.IdempotencyKey,
	})
	if err != nil {
		return models.Entry{}, s.mapError(err)
	}
	return entryFromPB(resp.GetEntry()), nil
}

func (s *GRPCClient) Query(ctx context.Context, q Query) ([]models.Entry, error) {
	resp, err := s.client.Query(ctx, &pb.QueryRequest{
		AfterId:       q.AfterID,
		UpToId:        q.UpToID,
		Author:        q.Author,
		SinceUnixNano: q.Since,
		UntilUnixNano: q.Until,
		Text:          q.Text,
		Limit:         int64(q.Limit),
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	out := make([]models.Entry, 0, len(resp.GetEntries()))
	for _, e := range resp.GetEntries() {
		out = append(out, entryFromPB(e))
	}
	return out, nil
}

func (s *GRPCClient) StageAttachment(ctx context.Context, name string, data []byte) (string, error) {
	resp, err := s.client.StageAttachment(ctx, &pb.StageAttachmentRequest{Name: name, Data: data})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.GetToken(), nil
}

func (s *GRPCClient) FetchAttachment(ctx context.Context, token string, urlOnly bool) (*models.Attachment, error) {
	resp, err := s.client.FetchAttachment(ctx, &pb.FetchAttachmentRequest{Token: token, UrlOnly: urlOnly})
	if err != nil {
		return nil, s.mapError(err)
	}
	return &models.Attachment{
		Name:    resp.GetName(),
		Data:    resp.GetData(),
		URL:     resp.GetUrl(),
		EntryID: resp.GetEntryId(),
	}, nil
}

func (s *GRPCClient) Ack(ctx context.Context, sessionID string, entryID int64) error {
	_, err := s.client.Ack(ctx, &pb.AckRequest{SessionId: sessionID, EntryId: entryID})
	return s.mapError(err)
}

type grpcFeed struct {
	stream    pb.NoteSync_SubscribeClient
	cancel    context.CancelFunc
	sessionID string
	startID   int64
	mapError  func(error) error
}

func (f *grpcFeed) SessionID() string { return f.sessionID }
func (f *grpcFeed) StartID() int64    { return f.startID }
func (f *grpcFeed) Close()            { f.cancel() }

func (f *grpcFeed) Recv() (models.Entry, error) {
	for {
		ev, err := f.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return models.Entry{}, ErrUnavailable
			}
			return models.Entry{}, f.mapError(err)
		}
		if ev.GetEntry() != nil {
			return entryFromPB(ev.GetEntry()), nil
		}
	}
}

// Subscribe opens the feed and waits for the server's hello. The server
// authenticates the stream lazily, so an expired token shows up here rather
// than in the interceptor; it is refreshed once and the stream reopened.
func (s *GRPCClient) Subscribe(ctx context.Context, req SubscribeRequest) (Feed, error) {
	feed, used, err := s.openFeed(ctx, req)
	if err != nil && isTokenExpired(err) {
		if rerr := s.refresh(ctx, used); rerr != nil {
			return nil, rerr
		}
		feed, _, err = s.openFeed(ctx, req)
	}
	if err != nil {
		return nil, s.mapError(err)
	}
	return feed, nil
}

func (s *GRPCClient) openFeed(ctx context.Context, req SubscribeRequest) (*grpcFeed, string, error) {
	used, _ := s.tokens()
	ctx, cancel := context.WithCancel(ctx)
	ctx = metadata.AppendToOutgoingContext(ctx, common.DeviceHeaderName, req.Device)

	stream, err := s.client.Subscribe(ctx, &pb.SubscribeRequest{Device: req.Device, AfterId: req.AfterID, Resume: req.Resume})
	if err != nil {
		cancel()
		return nil, used, err
	}
	hello, err := stream.Recv()
	if err != nil {
		cancel()
		if errors.Is(err, io.EOF) {
			err = ErrUnavailable
		}
		return nil, used, err
	}
	return &grpcFeed{
		stream:    stream,
		cancel:    cancel,
		sessionID: hello.GetSessionId(),
		startID:   hello.GetStartId(),
		mapError:  s.mapError,
	}, used, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.InvalidArgument, codes.FailedPrecondition, codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrInvalidInput, st.Message())
	case codes.NotFound:
		return ErrNotFound
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func entryFromPB(e *pb.Entry) models.Entry {
	return models.Entry{
		ID:                e.GetId(),
		Author:            e.GetAuthor(),
		Body:              e.GetBody(),
		Kind:              e.GetKind(),
		Attachments:       e.GetAttachments(),
		CommittedAt:       fromUnixNano(e.GetCommittedAtUnixNano()),
		ClientSubmittedAt: fromUnixNano(e.GetClientSubmittedAtUnixNano()),
	}
}
