package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/notesync/internal/logging"
	pb "github.com/dmitrijs2005/notesync/internal/proto"
	"github.com/dmitrijs2005/notesync/internal/server/entrystore"
	"github.com/dmitrijs2005/notesync/internal/server/models"
	"github.com/dmitrijs2005/notesync/internal/server/sequencer"
	"github.com/dmitrijs2005/notesync/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// maxMessageBytes bounds a single request; attachments travel inline.
const maxMessageBytes = 64 << 20

type userSvc interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

type noteSvc interface {
	Status() services.Status
	Submit(ctx context.Context, author string, sub sequencer.Submission) (models.Entry, error)
	Query(ctx context.Context, f entrystore.Filter) ([]models.Entry, error)
	StageAttachment(ctx context.Context, owner, name string, data []byte) (models.AttachmentRef, error)
	FetchAttachment(ctx context.Context, user, token string) (*services.Attachment, error)
	OpenFeed(ctx context.Context, req services.FeedRequest) (*services.Feed, error)
	Ack(ctx context.Context, user, sessionID string, entryID int64) error
}

type GRPCServer struct {
	pb.UnimplementedNoteSyncServer
	address   string
	users     userSvc
	notes     noteSvc
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, us userSvc, ns noteSvc, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		users:     us,
		notes:     ns,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
		grpc.MaxRecvMsgSize(maxMessageBytes),
		grpc.MaxSendMsgSize(maxMessageBytes),
		// Idle subscribers are kept alive so intermediaries do not drop them.
		grpc.KeepaliveParams(keepalive.ServerParameters{Time: time.Minute}),
	)
	pb.RegisterNoteSyncServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
