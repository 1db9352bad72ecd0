package v1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "chat.v1.ChatService"

// FullMethod returns "/chat.v1.ChatService/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Server-streaming aliases so handlers and fakes can name the stream types.
type (
	ChatService_ListMessagesServer = grpc.ServerStreamingServer[Message]
	ChatService_GetHistoryServer   = grpc.ServerStreamingServer[Message]
	ChatService_ListChatsServer    = grpc.ServerStreamingServer[ListChatsResponse]
	ChatService_SubscribeServer    = grpc.ServerStreamingServer[ChangeEvent]
)

// ChatServiceServer is the server API for chat.v1.ChatService.
type ChatServiceServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	Me(context.Context, *MeRequest) (*Profile, error)
	GetProfiles(context.Context, *GetProfilesRequest) (*ProfileList, error)
	SearchProfiles(context.Context, *SearchProfilesRequest) (*ProfileList, error)
	SendMessage(context.Context, *SendMessageRequest) (*Message, error)
	EditMessage(context.Context, *EditMessageRequest) (*Message, error)
	DeleteMessage(context.Context, *DeleteMessageRequest) (*DeleteMessageResponse, error)
	CreateNotification(context.Context, *CreateNotificationRequest) (*Notification, error)
	ListNotifications(context.Context, *ListNotificationsRequest) (*NotificationList, error)
	MarkNotificationsRead(context.Context, *MarkNotificationsReadRequest) (*MarkNotificationsReadResponse, error)
	CreatePost(context.Context, *CreatePostRequest) (*Post, error)
	ListPosts(context.Context, *ListPostsRequest) (*PostList, error)
	GetPost(context.Context, *GetPostRequest) (*Post, error)
	UpdatePost(context.Context, *UpdatePostRequest) (*Post, error)
	DeletePost(context.Context, *DeletePostRequest) (*DeletePostResponse, error)
	CreateNote(context.Context, *CreateNoteRequest) (*Note, error)
	ListNotes(context.Context, *ListNotesRequest) (*NoteList, error)
	UpdateNote(context.Context, *UpdateNoteRequest) (*Note, error)
	DeleteNote(context.Context, *DeleteNoteRequest) (*DeleteNoteResponse, error)
	ListMessages(*ListMessagesRequest, ChatService_ListMessagesServer) error
	GetHistory(*GetHistoryRequest, ChatService_GetHistoryServer) error
	ListChats(*ListChatsRequest, ChatService_ListChatsServer) error
	Subscribe(*SubscribeRequest, ChatService_SubscribeServer) error
}

// UnimplementedChatServiceServer can be embedded to satisfy ChatServiceServer.
type UnimplementedChatServiceServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedChatServiceServer) Register(context.Context, *RegisterRequest) (*AuthResponse, error) {
	return nil, unimplemented("Register")
}
func (UnimplementedChatServiceServer) Login(context.Context, *LoginRequest) (*AuthResponse, error) {
	return nil, unimplemented("Login")
}
func (UnimplementedChatServiceServer) Me(context.Context, *MeRequest) (*Profile, error) {
	return nil, unimplemented("Me")
}
func (UnimplementedChatServiceServer) GetProfiles(context.Context, *GetProfilesRequest) (*ProfileList, error) {
	return nil, unimplemented("GetProfiles")
}
func (UnimplementedChatServiceServer) SearchProfiles(context.Context, *SearchProfilesRequest) (*ProfileList, error) {
	return nil, unimplemented("SearchProfiles")
}
func (UnimplementedChatServiceServer) SendMessage(context.Context, *SendMessageRequest) (*Message, error) {
	return nil, unimplemented("SendMessage")
}
func (UnimplementedChatServiceServer) EditMessage(context.Context, *EditMessageRequest) (*Message, error) {
	return nil, unimplemented("EditMessage")
}
func (UnimplementedChatServiceServer) DeleteMessage(context.Context, *DeleteMessageRequest) (*DeleteMessageResponse, error) {
	return nil, unimplemented("DeleteMessage")
}
func (UnimplementedChatServiceServer) CreateNotification(context.Context, *CreateNotificationRequest) (*Notification, error) {
	return nil, unimplemented("CreateNotification")
}
func (UnimplementedChatServiceServer) ListNotifications(context.Context, *ListNotificationsRequest) (*NotificationList, error) {
	return nil, unimplemented("ListNotifications")
}
func (UnimplementedChatServiceServer) MarkNotificationsRead(context.Context, *MarkNotificationsReadRequest) (*MarkNotificationsReadResponse, error) {
	return nil, unimplemented("MarkNotificationsRead")
}
func (UnimplementedChatServiceServer) CreatePost(context.Context, *CreatePostRequest) (*Post, error) {
	return nil, unimplemented("CreatePost")
}
func (UnimplementedChatServiceServer) ListPosts(context.Context, *ListPostsRequest) (*PostList, error) {
	return nil, unimplemented("ListPosts")
}
func (UnimplementedChatServiceServer) GetPost(context.Context, *GetPostRequest) (*Post, error) {
	return nil, unimplemented("GetPost")
}
func (UnimplementedChatServiceServer) UpdatePost(context.Context, *UpdatePostRequest) (*Post, error) {
	return nil, unimplemented("UpdatePost")
}
func (UnimplementedChatServiceServer) DeletePost(context.Context, *DeletePostRequest) (*DeletePostResponse, error) {
	return nil, unimplemented("DeletePost")
}
func (UnimplementedChatServiceServer) CreateNote(context.Context, *CreateNoteRequest) (*Note, error) {
	return nil, unimplemented("CreateNote")
}
func (UnimplementedChatServiceServer) ListNotes(context.Context, *ListNotesRequest) (*NoteList, error) {
	return nil, unimplemented("ListNotes")
}
func (UnimplementedChatServiceServer) UpdateNote(context.Context, *UpdateNoteRequest) (*Note, error) {
	return nil, unimplemented("UpdateNote")
}
func (UnimplementedChatServiceServer) DeleteNote(context.Context, *DeleteNoteRequest) (*DeleteNoteResponse, error) {
	return nil, unimplemented("DeleteNote")
}
func (UnimplementedChatServiceServer) ListMessages(*ListMessagesRequest, ChatService_ListMessagesServer) error {
	return unimplemented("ListMessages")
}
func (UnimplementedChatServiceServer) GetHistory(*GetHistoryRequest, ChatService_GetHistoryServer) error {
	return unimplemented("GetHistory")
}
func (UnimplementedChatServiceServer) ListChats(*ListChatsRequest, ChatService_ListChatsServer) error {
	return unimplemented("ListChats")
}
func (UnimplementedChatServiceServer) Subscribe(*SubscribeRequest, ChatService_SubscribeServer) error {
	return unimplemented("Subscribe")
}

// unaryMethod builds a MethodDesc whose handler decodes Req and dispatches to call.
func unaryMethod[Req, Resp any](name string, call func(ChatServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(ChatServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// serverStream builds a StreamDesc for a server-streaming method.
func serverStream[Req, Resp any](name string, call func(ChatServiceServer, *Req, grpc.ServerStreamingServer[Resp]) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    name,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(Req)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return call(srv.(ChatServiceServer), in, &grpc.GenericServerStream[Req, Resp]{ServerStream: stream})
		},
	}
}

// ChatService_ServiceDesc is the grpc.ServiceDesc for chat.v1.ChatService.
var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Register", ChatServiceServer.Register),
		unaryMethod("Login", ChatServiceServer.Login),
		unaryMethod("Me", ChatServiceServer.Me),
		unaryMethod("GetProfiles", ChatServiceServer.GetProfiles),
		unaryMethod("SearchProfiles", ChatServiceServer.SearchProfiles),
		unaryMethod("SendMessage", ChatServiceServer.SendMessage),
		unaryMethod("EditMessage", ChatServiceServer.EditMessage),
		unaryMethod("DeleteMessage", ChatServiceServer.DeleteMessage),
		unaryMethod("CreateNotification", ChatServiceServer.CreateNotification),
		unaryMethod("ListNotifications", ChatServiceServer.ListNotifications),
		unaryMethod("MarkNotificationsRead", ChatServiceServer.MarkNotificationsRead),
		unaryMethod("CreatePost", ChatServiceServer.CreatePost),
		unaryMethod("ListPosts", ChatServiceServer.ListPosts),
		unaryMethod("GetPost", ChatServiceServer.GetPost),
		unaryMethod("UpdatePost", ChatServiceServer.UpdatePost),
		unaryMethod("DeletePost", ChatServiceServer.DeletePost),
		unaryMethod("CreateNote", ChatServiceServer.CreateNote),
		unaryMethod("ListNotes", ChatServiceServer.ListNotes),
		unaryMethod("UpdateNote", ChatServiceServer.UpdateNote),
		unaryMethod("DeleteNote", ChatServiceServer.DeleteNote),
	},
	Streams: []grpc.StreamDesc{
		serverStream("ListMessages", ChatServiceServer.ListMessages),
		serverStream("GetHistory", ChatServiceServer.GetHistory),
		serverStream("ListChats", ChatServiceServer.ListChats),
		serverStream("Subscribe", ChatServiceServer.Subscribe),
	},
	Metadata: "chat/v1/chat.proto",
}

// RegisterChatServiceServer registers srv on s.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

// ChatServiceClient is the client API for chat.v1.ChatService.
type ChatServiceClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	Me(ctx context.Context, in *MeRequest, opts ...grpc.CallOption) (*Profile, error)
	GetProfiles(ctx context.Context, in *GetProfilesRequest, opts ...grpc.CallOption) (*ProfileList, error)
	SearchProfiles(ctx context.Context, in *SearchProfilesRequest, opts ...grpc.CallOption) (*ProfileList, error)
	SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*Message, error)
	EditMessage(ctx context.Context, in *EditMessageRequest, opts ...grpc.CallOption) (*Message, error)
	DeleteMessage(ctx context.Context, in *DeleteMessageRequest, opts ...grpc.CallOption) (*DeleteMessageResponse, error)
	CreateNotification(ctx context.Context, in *CreateNotificationRequest, opts ...grpc.CallOption) (*Notification, error)
	ListNotifications(ctx context.Context, in *ListNotificationsRequest, opts ...grpc.CallOption) (*NotificationList, error)
	MarkNotificationsRead(ctx context.Context, in *MarkNotificationsReadRequest, opts ...grpc.CallOption) (*MarkNotificationsReadResponse, error)
	CreatePost(ctx context.Context, in *CreatePostRequest, opts ...grpc.CallOption) (*Post, error)
	ListPosts(ctx context.Context, in *ListPostsRequest, opts ...grpc.CallOption) (*PostList, error)
	GetPost(ctx context.Context, in *GetPostRequest, opts ...grpc.CallOption) (*Post, error)
	UpdatePost(ctx context.Context, in *UpdatePostRequest, opts ...grpc.CallOption) (*Post, error)
	DeletePost(ctx context.Context, in *DeletePostRequest, opts ...grpc.CallOption) (*DeletePostResponse, error)
	CreateNote(ctx context.Context, in *CreateNoteRequest, opts ...grpc.CallOption) (*Note, error)
	ListNotes(ctx context.Context, in *ListNotesRequest, opts ...grpc.CallOption) (*NoteList, error)
	UpdateNote(ctx context.Context, in *UpdateNoteRequest, opts ...grpc.CallOption) (*Note, error)
	DeleteNote(ctx context.Context, in *DeleteNoteRequest, opts ...grpc.CallOption) (*DeleteNoteResponse, error)
	ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Message], error)
	GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Message], error)
	ListChats(ctx context.Context, in *ListChatsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ListChatsResponse], error)
	Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ChangeEvent], error)
}

type chatServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewChatServiceClient returns a client bound to cc. Callers must select the
// JSON codec, e.g. grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Name)).
func NewChatServiceClient(cc grpc.ClientConnInterface) ChatServiceClient {
	return &chatServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func openStream[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, idx int, in *Req, opts []grpc.CallOption) (grpc.ServerStreamingClient[Resp], error) {
	desc := &ChatService_ServiceDesc.Streams[idx]
	stream, err := cc.NewStream(ctx, desc, FullMethod(desc.StreamName), opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, Resp]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *chatServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, "Register", in, opts)
}
func (c *chatServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, "Login", in, opts)
}
func (c *chatServiceClient) Me(ctx context.Context, in *MeRequest, opts ...grpc.CallOption) (*Profile, error) {
	return invoke[Profile](ctx, c.cc, "Me", in, opts)
}
func (c *chatServiceClient) GetProfiles(ctx context.Context, in *GetProfilesRequest, opts ...grpc.CallOption) (*ProfileList, error) {
	return invoke[ProfileList](ctx, c.cc, "GetProfiles", in, opts)
}
func (c *chatServiceClient) SearchProfiles(ctx context.Context, in *SearchProfilesRequest, opts ...grpc.CallOption) (*ProfileList, error) {
	return invoke[ProfileList](ctx, c.cc, "SearchProfiles", in, opts)
}
func (c *chatServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*Message, error) {
	return invoke[Message](ctx, c.cc, "SendMessage", in, opts)
}
func (c *chatServiceClient) EditMessage(ctx context.Context, in *EditMessageRequest, opts ...grpc.CallOption) (*Message, error) {
	return invoke[Message](ctx, c.cc, "EditMessage", in, opts)
}
func (c *chatServiceClient) DeleteMessage(ctx context.Context, in *DeleteMessageRequest, opts ...grpc.CallOption) (*DeleteMessageResponse, error) {
	return invoke[DeleteMessageResponse](ctx, c.cc, "DeleteMessage", in, opts)
}
func (c *chatServiceClient) CreateNotification(ctx context.Context, in *CreateNotificationRequest, opts ...grpc.CallOption) (*Notification, error) {
	return invoke[Notification](ctx, c.cc, "CreateNotification", in, opts)
}
func (c *chatServiceClient) ListNotifications(ctx context.Context, in *ListNotificationsRequest, opts ...grpc.CallOption) (*NotificationList, error) {
	return invoke[NotificationList](ctx, c.cc, "ListNotifications", in, opts)
}
func (c *chatServiceClient) MarkNotificationsRead(ctx context.Context, in *MarkNotificationsReadRequest, opts ...grpc.CallOption) (*MarkNotificationsReadResponse, error) {
	return invoke[MarkNotificationsReadResponse](ctx, c.cc, "MarkNotificationsRead", in, opts)
}
func (c *chatServiceClient) CreatePost(ctx context.Context, in *CreatePostRequest, opts ...grpc.CallOption) (*Post, error) {
	return invoke[Post](ctx, c.cc, "CreatePost", in, opts)
}
func (c *chatServiceClient) ListPosts(ctx context.Context, in *ListPostsRequest, opts ...grpc.CallOption) (*PostList, error) {
	return invoke[PostList](ctx, c.cc, "ListPosts", in, opts)
}
func (c *chatServiceClient) GetPost(ctx context.Context, in *GetPostRequest, opts ...grpc.CallOption) (*Post, error) {
	return invoke[Post](ctx, c.cc, "GetPost", in, opts)
}
func (c *chatServiceClient) UpdatePost(ctx context.Context, in *UpdatePostRequest, opts ...grpc.CallOption) (*Post, error) {
	return invoke[Post](ctx, c.cc, "UpdatePost", in, opts)
}
func (c *chatServiceClient) DeletePost(ctx context.Context, in *DeletePostRequest, opts ...grpc.CallOption) (*DeletePostResponse, error) {
	return invoke[DeletePostResponse](ctx, c.cc, "DeletePost", in, opts)
}
func (c *chatServiceClient) CreateNote(ctx context.Context, in *CreateNoteRequest, opts ...grpc.CallOption) (*Note, error) {
	return invoke[Note](ctx, c.cc, "CreateNote", in, opts)
}
func (c *chatServiceClient) ListNotes(ctx context.Context, in *ListNotesRequest, opts ...grpc.CallOption) (*NoteList, error) {
	return invoke[NoteList](ctx, c.cc, "ListNotes", in, opts)
}
func (c *chatServiceClient) UpdateNote(ctx context.Context, in *UpdateNoteRequest, opts ...grpc.CallOption) (*Note, error) {
	return invoke[Note](ctx, c.cc, "UpdateNote", in, opts)
}
func (c *chatServiceClient) DeleteNote(ctx context.Context, in *DeleteNoteRequest, opts ...grpc.CallOption) (*DeleteNoteResponse, error) {
	return invoke[DeleteNoteResponse](ctx, c.cc, "DeleteNote", in, opts)
}
func (c *chatServiceClient) ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Message], error) {
	return openStream[ListMessagesRequest, Message](ctx, c.cc, 0, in, opts)
}
func (c *chatServiceClient) GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Message], error) {
	return openStream[GetHistoryRequest, Message](ctx, c.cc, 1, in, opts)
}
func (c *chatServiceClient) ListChats(ctx context.Context, in *ListChatsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ListChatsResponse], error) {
	return openStream[ListChatsRequest, ListChatsResponse](ctx, c.cc, 2, in, opts)
}
func (c *chatServiceClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ChangeEvent], error) {
	return openStream[SubscribeRequest, ChangeEvent](ctx, c.cc, 3, in, opts)
}
