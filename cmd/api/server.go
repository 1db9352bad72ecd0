package main

import (
	"context"

	"github.com/PaulBabatuyi/convosync/internal/auth"
	"github.com/PaulBabatuyi/convosync/internal/data"
	"github.com/PaulBabatuyi/convosync/internal/middleware"
	"github.com/PaulBabatuyi/convosync/internal/realtime"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"github.com/microcosm-cc/bluemonday"
	"google.golang.org/grpc"
)

// profileStore is the subset of data.ProfilesStore the server uses.
type profileStore interface {
	CreateProfile(ctx context.Context, email, fullName, hashedPassword string) (*data.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*data.Profile, error)
	GetProfileByID(ctx context.Context, id string) (*data.Profile, error)
	GetProfilesByIDs(ctx context.Context, ids []string) ([]*data.Profile, error)
	SearchProfiles(ctx context.Context, query, excludeID string, limit int64) ([]*data.Profile, error)
	ProfileExists(ctx context.Context, id string) (bool, error)
}

type messageStore interface {
	SaveMessage(ctx context.Context, fromID, toID, content, attachment string) (*data.Message, error)
	GetMessage(ctx context.Context, id string) (*data.Message, error)
	UpdateMessage(ctx context.Context, id, content, attachment string) (*data.Message, *data.Message, error)
	DeleteMessage(ctx context.Context, id string) (*data.Message, error)
	ListMessagesFor(ctx context.Context, userID string, limit int64) ([]*data.Message, error)
	GetMessageHistory(ctx context.Context, user1, user2 string, limit int64) ([]*data.Message, error)
	GetRecentChats(ctx context.Context, userID string, limit int64) ([]*data.ChatPartner, error)
}

type notificationStore interface {
	CreateNotification(ctx context.Context, userID, kind, payload, sourceID string) (*data.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int64) ([]*data.Notification, error)
	MarkRead(ctx context.Context, userID, kind, sourceID string) ([]*data.Notification, error)
}

type postStore interface {
	CreatePost(ctx context.Context, userID, title, content, kind, visibility string) (*data.Post, error)
	ListPublicPosts(ctx context.Context, page, size int64, kind string) ([]*data.Post, error)
	GetPost(ctx context.Context, id string) (*data.Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*data.Post, error)
	UpdatePost(ctx context.Context, id, title, content, visibility string) (*data.Post, error)
	DeletePost(ctx context.Context, id string) (*data.Post, error)
}

// noteStore holds post comments.
type noteStore interface {
	CreateNote(ctx context.Context, postID, userID, parentID, content string) (*data.Note, error)
	GetNote(ctx context.Context, id string) (*data.Note, error)
	ListNotes(ctx context.Context, postID string) ([]*data.Note, error)
	UpdateNote(ctx context.Context, id, content string) (*data.Note, error)
	DeleteNote(ctx context.Context, id string) (int64, error)
	DeleteNotesForPost(ctx context.Context, postID string) (int64, error)
}

// stores groups the row stores so main and tests can swap backends.
type stores struct {
	profiles      profileStore
	messages      messageStore
	notifications notificationStore
	posts         postStore
	comments      noteStore
}

// Server implements the chat service and contains references to stores and auth logic.
type Server struct {
	v1.UnimplementedChatServiceServer

	profiles profileStore
	msgs     messageStore
	notes    notificationStore
	posts    postStore
	comments noteStore
	auth     *auth.JWTManager
	broker   *realtime.Broker
	policy   *bluemonday.Policy
}

// newServer returns a ready-to-use Server wired with stores, auth manager and broker.
func newServer(st stores, authMgr *auth.JWTManager, broker *realtime.Broker) *Server {
	return &Server{
		profiles: st.profiles,
		msgs:     st.messages,
		notes:    st.notifications,
		posts:    st.posts,
		comments: st.comments,
		auth:     authMgr,
		broker:   broker,
		policy:   bluemonday.StrictPolicy(),
	}
}

// newGRPCServer assembles interceptors around srv: logging, rate limiting
// (unary only) and auth.
func newGRPCServer(srv *Server, rate grpc.UnaryServerInterceptor, opts ...grpc.ServerOption) *grpc.Server {
	unary := []grpc.UnaryServerInterceptor{middleware.LoggingUnaryInterceptor()}
	if rate != nil {
		unary = append(unary, rate)
	}
	unary = append(unary, authUnaryInterceptor(srv.auth))

	opts = append(opts,
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(middleware.LoggingStreamInterceptor(), authStreamInterceptor(srv.auth)),
	)
	s := grpc.NewServer(opts...)
	v1.RegisterChatServiceServer(s, srv)
	return s
}
