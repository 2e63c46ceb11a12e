package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "notesync.v1.NoteSync"

// FullMethod returns the gRPC method path for name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// NoteSyncServer is implemented by the server transport.
type NoteSyncServer interface {
	RegisterUser(context.Context, *RegisterUserRequest) (*RegisterUserResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	RefreshToken(context.Context, *RefreshTokenRequest) (*RefreshTokenResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	Submit(context.Context, *SubmitRequest) (*SubmitResponse, error)
	StageAttachment(context.Context, *StageAttachmentRequest) (*StageAttachmentResponse, error)
	FetchAttachment(context.Context, *FetchAttachmentRequest) (*FetchAttachmentResponse, error)
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	Subscribe(*SubscribeRequest, NoteSync_SubscribeServer) error
	Ack(context.Context, *AckRequest) (*AckResponse, error)
}

// UnimplementedNoteSyncServer answers every call with codes.Unimplemented.
type UnimplementedNoteSyncServer struct{}

func (UnimplementedNoteSyncServer) RegisterUser(context.Context, *RegisterUserRequest) (*RegisterUserResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterUser not implemented")
}
func (UnimplementedNoteSyncServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedNoteSyncServer) RefreshToken(context.Context, *RefreshTokenRequest) (*RefreshTokenResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RefreshToken not implemented")
}
func (UnimplementedNoteSyncServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedNoteSyncServer) Submit(context.Context, *SubmitRequest) (*SubmitResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Submit not implemented")
}
func (UnimplementedNoteSyncServer) StageAttachment(context.Context, *StageAttachmentRequest) (*StageAttachmentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method StageAttachment not implemented")
}
func (UnimplementedNoteSyncServer) FetchAttachment(context.Context, *FetchAttachmentRequest) (*FetchAttachmentResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FetchAttachment not implemented")
}
func (UnimplementedNoteSyncServer) Query(context.Context, *QueryRequest) (*QueryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Query not implemented")
}
func (UnimplementedNoteSyncServer) Subscribe(*SubscribeRequest, NoteSync_SubscribeServer) error {
	return status.Error(codes.Unimplemented, "method Subscribe not implemented")
}
func (UnimplementedNoteSyncServer) Ack(context.Context, *AckRequest) (*AckResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ack not implemented")
}

type NoteSync_SubscribeServer interface {
	Send(*SubscribeEvent) error
	grpc.ServerStream
}

type subscribeServer struct {
	grpc.ServerStream
}

func (x *subscribeServer) Send(m *SubscribeEvent) error {
	return x.ServerStream.SendMsg(m)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(NoteSyncServer).Subscribe(in, &subscribeServer{stream})
}

// unary builds the method descriptor for one unary call.
func unary[T any, PT interface {
	*T
	Message
}](method string, call func(NoteSyncServer, context.Context, PT) (any, error)) grpc.MethodDesc {
	full := FullMethod(method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PT(new(T))
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(NoteSyncServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(PT))
			})
		},
	}
}

// ServiceDesc describes the NoteSync service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NoteSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		unary[RegisterUserRequest]("RegisterUser", func(s NoteSyncServer, ctx context.Context, in *RegisterUserRequest) (any, error) {
			return s.RegisterUser(ctx, in)
		}),
		unary[LoginRequest]("Login", func(s NoteSyncServer, ctx context.Context, in *LoginRequest) (any, error) {
			return s.Login(ctx, in)
		}),
		unary[RefreshTokenRequest]("RefreshToken", func(s NoteSyncServer, ctx context.Context, in *RefreshTokenRequest) (any, error) {
			return s.RefreshToken(ctx, in)
		}),
		unary[PingRequest]("Ping", func(s NoteSyncServer, ctx context.Context, in *PingRequest) (any, error) {
			return s.Ping(ctx, in)
		}),
		unary[SubmitRequest]("Submit", func(s NoteSyncServer, ctx context.Context, in *SubmitRequest) (any, error) {
			return s.Submit(ctx, in)
		}),
		unary[StageAttachmentRequest]("StageAttachment", func(s NoteSyncServer, ctx context.Context, in *StageAttachmentRequest) (any, error) {
			return s.StageAttachment(ctx, in)
		}),
		unary[FetchAttachmentRequest]("FetchAttachment", func(s NoteSyncServer, ctx context.Context, in *FetchAttachmentRequest) (any, error) {
			return s.FetchAttachment(ctx, in)
		}),
		unary[QueryRequest]("Query", func(s NoteSyncServer, ctx context.Context, in *QueryRequest) (any, error) {
			return s.Query(ctx, in)
		}),
		unary[AckRequest]("Ack", func(s NoteSyncServer, ctx context.Context, in *AckRequest) (any, error) {
			return s.Ack(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
}

func RegisterNoteSyncServer(s grpc.ServiceRegistrar, srv NoteSyncServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// NoteSyncClient is the client API. Every call is sent with the notesync
// content-subtype.
type NoteSyncClient interface {
	RegisterUser(ctx context.Context, in *RegisterUserRequest, opts ...grpc.CallOption) (*RegisterUserResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*RefreshTokenResponse, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
	Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*SubmitResponse, error)
	StageAttachment(ctx context.Context, in *StageAttachmentRequest, opts ...grpc.CallOption) (*StageAttachmentResponse, error)
	FetchAttachment(ctx context.Context, in *FetchAttachmentRequest, opts ...grpc.CallOption) (*FetchAttachmentResponse, error)
	Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error)
	Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (NoteSync_SubscribeClient, error)
	Ack(ctx context.Context, in *AckRequest, opts ...grpc.CallOption) (*AckResponse, error)
}

type noteSyncClient struct {
	cc grpc.ClientConnInterface
}

func NewNoteSyncClient(cc grpc.ClientConnInterface) NoteSyncClient {
	return &noteSyncClient{cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[T any](ctx context.Context, cc grpc.ClientConnInterface, method string, in Message, out *T, opts []grpc.CallOption) (*T, error) {
	if err := cc.Invoke(ctx, FullMethod(method), in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *noteSyncClient) RegisterUser(ctx context.Context, in *RegisterUserRequest, opts ...grpc.CallOption) (*RegisterUserResponse, error) {
	return invoke(ctx, c.cc, "RegisterUser", in, new(RegisterUserResponse), opts)
}

func (c *noteSyncClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke(ctx, c.cc, "Login", in, new(LoginResponse), opts)
}

func (c *noteSyncClient) RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*RefreshTokenResponse, error) {
	return invoke(ctx, c.cc, "RefreshToken", in, new(RefreshTokenResponse), opts)
}

func (c *noteSyncClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke(ctx, c.cc, "Ping", in, new(PingResponse), opts)
}

func (c *noteSyncClient) Submit(ctx context.Context, in *SubmitRequest, opts ...grpc.CallOption) (*SubmitResponse, error) {
	return invoke(ctx, c.cc, "Submit", in, new(SubmitResponse), opts)
}

func (c *noteSyncClient) StageAttachment(ctx context.Context, in *StageAttachmentRequest, opts ...grpc.CallOption) (*StageAttachmentResponse, error) {
	return invoke(ctx, c.cc, "StageAttachment", in, new(StageAttachmentResponse), opts)
}

func (c *noteSyncClient) FetchAttachment(ctx context.Context, in *FetchAttachmentRequest, opts ...grpc.CallOption) (*FetchAttachmentResponse, error) {
	return invoke(ctx, c.cc, "FetchAttachment", in, new(FetchAttachmentResponse), opts)
}

func (c *noteSyncClient) Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error) {
	return invoke(ctx, c.cc, "Query", in, new(QueryResponse), opts)
}

func (c *noteSyncClient) Ack(ctx context.Context, in *AckRequest, opts ...grpc.CallOption) (*AckResponse, error) {
	return invoke(ctx, c.cc, "Ack", in, new(AckResponse), opts)
}

func (c *noteSyncClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (NoteSync_SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], FullMethod("Subscribe"), callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &subscribeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type NoteSync_SubscribeClient interface {
	Recv() (*SubscribeEvent, error)
	grpc.ClientStream
}

type subscribeClient struct {
	grpc.ClientStream
}

func (x *subscribeClient) Recv() (*SubscribeEvent, error) {
	m := new(SubscribeEvent)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
