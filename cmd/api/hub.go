package main

import (
	"github.com/PaulBabatuyi/convosync/internal/realtime"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// subscribedHeader is sent once the broker subscription is live, so clients
// can wait for it before issuing writes they expect to see echoed.
const subscribedHeader = "x-subscription-id"

// publish hands a committed change to the broker. Delivery is best effort: a
// marshal failure is logged and the write still succeeds.
func (s *Server) publish(table, op string, prev, cur any, audience ...string) {
	if s.broker == nil {
		return
	}
	c, err := realtime.NewChange(table, op, prev, cur, audience...)
	if err != nil {
		log.Errorf("publish %s %s: %v", table, op, err)
		return
	}
	s.broker.Publish(c)
}

func validTable(table string) bool {
	return table == v1.TableMessages || table == v1.TableNotifications
}

func toChangeEvent(c realtime.Change) *v1.ChangeEvent {
	return &v1.ChangeEvent{
		Table:      c.Table,
		Op:         c.Op,
		Previous:   c.Previous,
		Current:    c.Current,
		CommitTime: c.CommitTime,
	}
}

// Subscribe streams the caller's changes on one table until the client goes
// away or falls too far behind.
func (s *Server) Subscribe(req *v1.SubscribeRequest, stream v1.ChatService_SubscribeServer) error {
	claims, err := requireClaims(stream.Context())
	if err != nil {
		return err
	}
	if !validTable(req.Table) {
		return status.Errorf(codes.InvalidArgument, "unknown table %q", req.Table)
	}
	if s.broker == nil {
		return status.Errorf(codes.Unavailable, "realtime is disabled")
	}

	sub := s.broker.Subscribe(claims.UserID, req.Table)
	defer sub.Close()

	if err := stream.SendHeader(metadata.Pairs(subscribedHeader, sub.ID)); err != nil {
		return status.Errorf(codes.Internal, "failed to send header: %v", err)
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-sub.Events:
			if !ok {
				if sub.Evicted() {
					return status.Errorf(codes.ResourceExhausted, "subscriber fell behind; resubscribe")
				}
				return nil
			}
			if err := stream.Send(toChangeEvent(c)); err != nil {
				return status.Errorf(codes.Internal, "failed to send change: %v", err)
			}
		}
	}
}
