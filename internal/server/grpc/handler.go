package grpc

import (
	"context"

	"github.com/dmitrijs2005/notesync/internal/common"
	pb "github.com/dmitrijs2005/notesync/internal/proto"
	"github.com/dmitrijs2005/notesync/internal/server/auth"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/dmitrijs2005/notesync/internal/server/sequencer"
	"github.com/dmitrijs2005/notesync/internal/server/services"
)

// defaultDevice names sessions of clients that did not identify a device.
const defaultDevice = "default"

func (s *GRPCServer) RegisterUser(ctx context.Context, req *pb.RegisterUserRequest) (*pb.RegisterUserResponse, error) {

	s.logger.Info(ctx, "Registration request")

	result, err := s.users.Register(ctx, req.GetUsername(), req.GetPassword())

	if err != nil {
		s.logger.Error(ctx, "Registration failed", "username", req.GetUsername(), "error", err)
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "Registered", "username", result.UserName)
	return &pb.RegisterUserResponse{Username: result.UserName}, nil

}

func (s *GRPCServer) Login(ctx context.Context, req *pb.LoginRequest) (*pb.LoginResponse, error) {

	tokens, err := s.users.Login(ctx, req.GetUsername(), req.GetPassword())

	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.LoginResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil

}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *pb.RefreshTokenRequest) (*pb.RefreshTokenResponse, error) {

	tokens, err := s.users.RefreshToken(ctx, req.GetRefreshToken())

	if err != nil {
		return nil, toStatus(err)
	}

	return &pb.RefreshTokenResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil

}

func (s *GRPCServer) Ping(ctx context.Context, req *pb.PingRequest) (*pb.PingResponse, error) {

	st := s.notes.Status()
	return &pb.PingResponse{
		Status:                  "OK",
		MaxId:                   st.MaxID,
		LastCommittedAtUnixNano: unixNano(st.LastCommittedAt),
		LiveSessions:            int64(st.LiveSessions),
	}, nil

}

func (s *GRPCServer) Submit(ctx context.Context, req *pb.SubmitRequest) (*pb.SubmitResponse, error) {
	user, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}

	e, err := s.notes.Submit(ctx, user, sequencer.Submission{
		Body:              req.GetBody(),
		Kind:              models.ContentKind(req.GetKind()),
		Attachments:       req.GetAttachments(),
		ClientSubmittedAt: fromUnixNano(req.GetClientSubmittedAtUnixNano()),
		IdempotencyKey:    req.GetIdempotencyKey(),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.SubmitResponse{Entry: entryToPB(e)}, nil
}

func (s *GRPCServer) StageAttachment(ctx context.Context, req *pb.StageAttachmentRequest) (*pb.StageAttachmentResponse, error) {
	user, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ref, err := s.notes.StageAttachment(ctx, user, req.GetName(), req.GetData())
	if err != nil {
		return nil, toStatus(err)
	}
	return &pb.StageAttachmentResponse{Token: ref.Token}, nil
}

func (s *GRPCServer) FetchAttachment(ctx context.Context, req *pb.FetchAttachmentRequest) (*pb.FetchAttachmentResponse, error) {
	user, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}

	a, err := s.notes.FetchAttachment(ctx, user, req.GetToken())
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &pb.FetchAttachmentResponse{Name: a.Ref.Name, Data: a.Data, Url: a.URL, EntryId: a.Ref.EntryID}
	if req.GetUrlOnly() && a.URL != "" {
		resp.Data = nil
	}
	return resp, nil
}

func (s *GRPCServer) Query(ctx context.Context, req *pb.QueryRequest) (*pb.QueryResponse, error) {
	if _, err := userFromContext(ctx); err != nil {
		return nil, err
	}

	entries, err := s.notes.Query(ctx, filterFromPB(req))
	if err != nil {
		return nil, toStatus(err)
	}
	out := &pb.QueryResponse{Entries: make([]*pb.Entry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, entryToPB(e))
	}
	return out, nil
}

// Subscribe opens a session and streams committed entries until the client
// goes away. The first event carries the session id used for Ack.
func (s *GRPCServer) Subscribe(req *pb.SubscribeRequest, stream pb.NoteSync_SubscribeServer) error {
	ctx := stream.Context()
	user, err := userFromContext(ctx)
	if err != nil {
		return err
	}

	device := req.GetDevice()
	if device == "" {
		device = metadataValue(ctx, common.DeviceHeaderName)
	}
	if device == "" {
		device = defaultDevice
	}

	feed, err := s.notes.OpenFeed(ctx, services.FeedRequest{
		User:       user,
		Device:     device,
		Credential: auth.Credential{Kind: auth.CredentialToken, Secret: accessTokenFromContext(ctx)},
		AfterID:    req.GetAfterId(),
		Resume:     req.GetResume(),
	})
	if err != nil {
		return toStatus(err)
	}
	defer feed.Close()

	s.logger.Info(ctx, "Subscriber attached", "session", feed.SessionID(), "user", user, "device", device)

	if err := stream.Send(&pb.SubscribeEvent{SessionId: feed.SessionID(), StartId: feed.StartID()}); err != nil {
		return err
	}

	for {
		e, err := feed.Next(ctx)
		if err != nil {
			s.logger.Info(ctx, "Subscriber detached", "session", feed.SessionID(), "error", err)
			return toStatus(err)
		}
		if err := stream.Send(&pb.SubscribeEvent{Entry: entryToPB(e)}); err != nil {
			return err
		}
	}
}

func (s *GRPCServer) Ack(ctx context.Context, req *pb.AckRequest) (*pb.AckResponse, error) {
	user, err := userFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.notes.Ack(ctx, user, req.GetSessionId(), req.GetEntryId()); err != nil {
		return nil, toStatus(err)
	}
	return &pb.AckResponse{LastAckedId: req.GetEntryId()}, nil
}
