package main

import (
	"context"

	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultNotificationsLimit = 100

// CreateNotification inserts a notification for another user. The source is
// always the caller.
func (s *Server) CreateNotification(ctx context.Context, req *v1.CreateNotificationRequest) (*v1.Notification, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	if req.UserID == "" || req.Type == "" {
		return nil, status.Errorf(codes.InvalidArgument, "user_id and type are required")
	}
	if req.SourceID != "" && req.SourceID != claims.UserID {
		return nil, status.Errorf(codes.PermissionDenied, "source_id must be the caller")
	}
	exists, err := s.profiles.ProfileExists(ctx, req.UserID)
	if err != nil {
		return nil, storeError("verify recipient", err)
	}
	if !exists {
		return nil, status.Errorf(codes.NotFound, "recipient not found")
	}

	n, err := s.notes.CreateNotification(ctx, req.UserID, req.Type, s.sanitize(req.Payload), claims.UserID)
	if err != nil {
		return nil, storeError("create notification", err)
	}
	out := toNotification(n)
	s.publish(v1.TableNotifications, v1.OpInsert, nil, out, n.UserID)
	return out, nil
}

// ListNotifications returns the caller's notifications, newest first.
func (s *Server) ListNotifications(ctx context.Context, req *v1.ListNotificationsRequest) (*v1.NotificationList, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	ns, err := s.notes.ListNotifications(ctx, claims.UserID, req.UnreadOnly, clampLimit(req.Limit, defaultNotificationsLimit, maxListLimit))
	if err != nil {
		return nil, storeError("list notifications", err)
	}
	out := &v1.NotificationList{Notifications: make([]*v1.Notification, 0, len(ns))}
	for _, n := range ns {
		out.Notifications = append(out.Notifications, toNotification(n))
	}
	return out, nil
}

// MarkNotificationsRead flips the caller's matching unread notifications and
// publishes one update per row.
func (s *Server) MarkNotificationsRead(ctx context.Context, req *v1.MarkNotificationsReadRequest) (*v1.MarkNotificationsReadResponse, error) {
	claims, err := requireClaims(ctx)
	if err != nil {
		return nil, err
	}
	changed, err := s.notes.MarkRead(ctx, claims.UserID, req.Type, req.SourceID)
	if err != nil {
		return nil, storeError("mark notifications read", err)
	}
	for _, prev := range changed {
		before := toNotification(prev)
		after := *before
		after.Read = true
		s.publish(v1.TableNotifications, v1.OpUpdate, before, &after, prev.UserID)
	}
	return &v1.MarkNotificationsReadResponse{Updated: int32(len(changed))}, nil
}
