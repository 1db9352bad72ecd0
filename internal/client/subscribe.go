package client

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/PaulBabatuyi/convosync/internal/messaging"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"google.golang.org/grpc"
)

var errFeedClosed = errors.New("feed closed by server")

// Subscribe opens the caller's change feed for table. It returns once the
// server has registered the subscription, so later writes are seen.
func (c *Client) Subscribe(ctx context.Context, table string) (messaging.Subscription, error) {
	sctx, cancel := context.WithCancel(ctx)
	stream, err := c.api.Subscribe(sctx, &v1.SubscribeRequest{Table: table})
	if err != nil {
		cancel()
		return nil, mapErr(err)
	}
	// the header arrives after the server-side subscription is live
	if _, err := stream.Header(); err != nil {
		cancel()
		return nil, mapErr(err)
	}

	s := &subscription{
		ctx:    sctx,
		cancel: cancel,
		events: make(chan messaging.RawEvent, 16),
	}
	go s.run(stream)
	return s, nil
}

type subscription struct {
	ctx    context.Context
	cancel context.CancelFunc
	events chan messaging.RawEvent

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *subscription) Events() <-chan messaging.RawEvent { return s.events }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	return nil
}

func (s *subscription) run(stream grpc.ServerStreamingClient[v1.ChangeEvent]) {
	defer close(s.events)
	defer s.cancel()

	for {
		ev, err := stream.Recv()
		if err != nil {
			s.finish(err)
			return
		}
		raw := messaging.RawEvent{
			Table:    ev.Table,
			Op:       ev.Op,
			Previous: ev.Previous,
			Current:  ev.Current,
		}
		select {
		case s.events <- raw:
		case <-s.ctx.Done():
			s.finish(s.ctx.Err())
			return
		}
	}
}

func (s *subscription) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		s.err = ctxErr
		return
	}
	if errors.Is(err, io.EOF) {
		err = errFeedClosed
	}
	s.err = mapErr(err)
}
