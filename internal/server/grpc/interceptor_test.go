package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
	pb "github.com/dmitrijs2005/notesync/internal/proto"
	"github.com/dmitrijs2005/notesync/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newTestServer(secret string) *GRPCServer {
	s := newServer(&fakeUser{}, &fakeNotes{})
	s.jwtSecret = []byte(secret)
	return s
}

func withToken(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, token))
}

func TestInterceptor_PublicMethod_AllowsWithoutToken(t *testing.T) {
	s := newTestServer("secret")

	info := &grpc.UnaryServerInfo{FullMethod: pb.FullMethod("Login")}
	handlerCalled := false

	h := func(ctx context.Context, req any) (any, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: pb.FullMethod("Submit")}

	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	}

	_, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", status.Code(err))
	}
}

func TestInterceptor_InvalidAndExpiredTokens(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: pb.FullMethod("Submit")}
	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called")
		return nil, nil
	}

	if _, err := s.accessTokenInterceptor(withToken("garbage"), nil, info, h); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("garbage: want Unauthenticated, got %v", status.Code(err))
	}

	expired, err := auth.GenerateToken("alice", []byte("secret"), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	_, err = s.accessTokenInterceptor(withToken(expired), nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expired: want Unauthenticated, got %v", status.Code(err))
	}
	if st, _ := status.FromError(err); st.Message() != "token expired" {
		t.Fatalf("expired: message %q", st.Message())
	}
}

func TestInterceptor_ValidToken_PutsUserInContext(t *testing.T) {
	s := newTestServer("secret")
	token, err := auth.GenerateToken("alice", []byte("secret"), time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	info := &grpc.UnaryServerInfo{FullMethod: pb.FullMethod("Query")}
	var gotUser, gotToken string
	h := func(ctx context.Context, req any) (any, error) {
		gotUser, _ = userFromContext(ctx)
		gotToken = accessTokenFromContext(ctx)
		return nil, nil
	}

	if _, err := s.accessTokenInterceptor(withToken(token), nil, info, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUser != "alice" || gotToken != token {
		t.Fatalf("context user=%q token=%q", gotUser, gotToken)
	}
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeServerStream) Context() context.Context { return f.ctx }

func TestStreamInterceptor(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.StreamServerInfo{FullMethod: pb.FullMethod("Subscribe"), IsServerStream: true}

	err := s.streamAccessTokenInterceptor(nil, &fakeServerStream{ctx: context.Background()}, info, func(any, grpc.ServerStream) error {
		t.Fatal("handler should not be called")
		return nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", status.Code(err))
	}

	token, _ := auth.GenerateToken("bob", []byte("secret"), time.Minute)
	var gotUser string
	err = s.streamAccessTokenInterceptor(nil, &fakeServerStream{ctx: withToken(token)}, info, func(_ any, ss grpc.ServerStream) error {
		gotUser, _ = userFromContext(ss.Context())
		return nil
	})
	if err != nil || gotUser != "bob" {
		t.Fatalf("user=%q err=%v", gotUser, err)
	}
}
