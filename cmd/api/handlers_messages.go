package main

import (
	"context"
	"html"
	"strings"

	"github.com/PaulBabatuyi/convosync/internal/data"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultHistoryLimit = 100
	defaultChatsLimit   = 50
	maxListLimit        = 1000
)

// sanitize strips markup and trims. The policy escapes the text it keeps;
// rows hold plain text, so entities are decoded again and clients escape on
// render.
func (s *Server) sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

// ListMessages streams every message the caller sent or received, newest first.
func (s *Server) ListMessages(req *v1.ListMessagesRequest, stream v1.ChatService_ListMessagesServer) error {
	claims, err := requireClaims(stream.Context())
	if err != nil {
		return err
	}
	if req.UserID != "" && req.UserID != claims.UserID {
		return status.Errorf(codes.PermissionDenied, "cannot list another user's messages")
	}

	msgs, err := s.msgs.ListMessagesFor(stream.Context(), claims.UserID, clampLimit(req.Limit, 0, maxListLimit))
	if err != nil {
		return storeError("list messages", err)
	}
	return sendMessages(stream, msgs)
}

// GetHistory streams conversation history with the requested user, oldest first.
func (s *Server) GetHistory(req *v1.GetHistoryRequest, stream v1.ChatService_GetHistoryServer) error {
	claims, err := requireClaims(stream.Context())
	if err != nil {
		return err
	}
	if req.WithID == "" {
		return status.Errorf(codes.InvalidArgument, "with_id is required")
	}

	msgs, err := s.msgs.GetMessageHistory(stream.Context(), claims.UserID, req.WithID, clampLimit(req.Limit, defaultHistoryLimit, maxListLimit))
	if err != nil {
		return storeError("get history", err)
	}
	return sendMessages(stream, msgs)
}

func sendMessages(stream v1.ChatService_ListMessagesServer, msgs []*data.Message) error {
	for _, m := range msgs {
		if err := stream.Send(toMessage(m)); err != nil {
			return status.Errorf(codes.Internal, "failed to send message: %v", err)
		}
	}
	return nil
}

// ListChats streams recent chat partners for the authenticated user
func (s *Server) ListChats(req *v1.ListChatsRequest, stream v1.ChatService_ListChatsServer) error {
	claims, err := requireClaims(stream.Context())
	if err != nil {
		return err
	}

	partners, err := s.msgs.GetRecentChats(stream.Context(), claims.UserID, clampLimit(req.Limit, defaultChatsLimit, maxListLimit))
	if err != nil {
		return storeError("read recent chats", err)
	}
	for _, p := range partners {
		if err := stream.Send(&v1.ListChatsResponse{
			PartnerID:     p.PartnerID,
			LastMessage:   p.LastMessage,
			LastMessageAt: p.LastMessageTime,
		}); err != nil {
			return status.Errorf(codes.Internal, "failed to send partner: %v", err)
		}
	}
	return nil
}

// SendMessage stores a message from the caller and publishes the insert.
func (s *Server) SendMessage(ctx context.Context, req *v1.SendMessageRequest) (*v1.Message, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	content := s.sanitize(req.Content)
	if content == "" {
		return nil, status.Errorf(codes.InvalidArgument, "message content is empty")
	}
	if req.ToID == "" {
		return nil, status.Errorf(codes.InvalidArgument, "to_id is required")
	}
	if req.ToID == claims.UserID {
		return nil, status.Errorf(codes.InvalidArgument, "cannot message yourself")
	}

	exists, err := s.profiles.ProfileExists(ctx, req.ToID)
	if err != nil {
		return nil, storeError("verify recipient", err)
	}
	if !exists {
		return nil, status.Errorf(codes.NotFound, "recipient not found")
	}

	saved, err := s.msgs.SaveMessage(ctx, claims.UserID, req.ToID, content, s.sanitize(req.Attachment))
	if err != nil {
		return nil, storeError("save message", err)
	}
	out := toMessage(saved)
	s.publish(v1.TableMessages, v1.OpInsert, nil, out, saved.FromID, saved.ToID)
	return out, nil
}

// ownMessage loads id and checks the caller wrote it.
func (s *Server) ownMessage(ctx context.Context, userID, id string) (*data.Message, error) {
	if id == "" {
		return nil, status.Errorf(codes.InvalidArgument, "id is required")
	}
	m, err := s.msgs.GetMessage(ctx, id)
	if err != nil {
		return nil, storeError("load message", err)
	}
	if m.FromID != userID {
		return nil, status.Errorf(codes.PermissionDenied, "only the author can change this message")
	}
	return m, nil
}

// EditMessage replaces content and attachment of the caller's own message.
func (s *Server) EditMessage(ctx context.Context, req *v1.EditMessageRequest) (*v1.Message, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	content := s.sanitize(req.Content)
	if content == "" {
		return nil, status.Errorf(codes.InvalidArgument, "message content is empty")
	}
	if _, err := s.ownMessage(ctx, claims.UserID, req.ID); err != nil {
		return nil, err
	}

	prev, cur, err := s.msgs.UpdateMessage(ctx, req.ID, content, s.sanitize(req.Attachment))
	if err != nil {
		return nil, storeError("update message", err)
	}
	out := toMessage(cur)
	s.publish(v1.TableMessages, v1.OpUpdate, toMessage(prev), out, cur.FromID, cur.ToID)
	return out, nil
}

// DeleteMessage removes the caller's own message.
func (s *Server) DeleteMessage(ctx context.Context, req *v1.DeleteMessageRequest) (*v1.DeleteMessageResponse, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownMessage(ctx, claims.UserID, req.ID); err != nil {
		return nil, err
	}

	deleted, err := s.msgs.DeleteMessage(ctx, req.ID)
	if err != nil {
		return nil, storeError("delete message", err)
	}
	s.publish(v1.TableMessages, v1.OpDelete, toMessage(deleted), nil, deleted.FromID, deleted.ToID)
	return &v1.DeleteMessageResponse{ID: deleted.ID.Hex()}, nil
}
