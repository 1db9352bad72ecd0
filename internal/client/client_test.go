package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/PaulBabatuyi/convosync/internal/messaging"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// fakeService answers just enough of the API to exercise the client.
type fakeService struct {
	v1.UnimplementedChatServiceServer

	mu          sync.Mutex
	historyReq  *v1.GetHistoryRequest
	events      chan *v1.ChangeEvent
	subErr      error
	subscribers int
}

func (f *fakeService) Login(ctx context.Context, req *v1.LoginRequest) (*v1.AuthResponse, error) {
	if req.Password != "pw" {
		return nil, status.Error(codes.Unauthenticated, "invalid credentials")
	}
	return &v1.AuthResponse{Token: "tok", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeService) Me(ctx context.Context, _ *v1.MeRequest) (*v1.Profile, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	if got := md.Get("authorization"); len(got) != 1 || got[0] != "Bearer tok" {
		return nil, status.Error(codes.Unauthenticated, "token expired")
	}
	return &v1.Profile{ID: "u1", FullName: "Alice", Email: "alice@example.com"}, nil
}

func (f *fakeService) SearchProfiles(ctx context.Context, req *v1.SearchProfilesRequest) (*v1.ProfileList, error) {
	return &v1.ProfileList{Profiles: []*v1.Profile{{ID: "u1"}, {ID: "u2", FullName: "Bob"}}}, nil
}

func (f *fakeService) GetHistory(req *v1.GetHistoryRequest, stream v1.ChatService_GetHistoryServer) error {
	f.mu.Lock()
	f.historyReq = req
	f.mu.Unlock()
	for _, id := range []string{"m1", "m2"} {
		if err := stream.Send(&v1.Message{ID: id, FromID: "u1", ToID: req.WithID}); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeService) Subscribe(req *v1.SubscribeRequest, stream v1.ChatService_SubscribeServer) error {
	f.mu.Lock()
	f.subscribers++
	f.mu.Unlock()
	if err := stream.SendHeader(metadata.Pairs("x-subscription-id", "s1")); err != nil {
		return err
	}
	for {
		select {
		case ev, ok := <-f.events:
			if !ok {
				return f.subErr
			}
			if err := stream.Send(ev); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func newTestClient(t *testing.T, svc *fakeService) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	v1.RegisterChatServiceServer(s, svc)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	c, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCurrentUser_NoToken(t *testing.T) {
	c := newTestClient(t, &fakeService{})
	if _, err := c.CurrentUser(context.Background()); !errors.Is(err, messaging.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestLoginAttachesToken(t *testing.T) {
	c := newTestClient(t, &fakeService{})
	ctx := context.Background()

	if _, err := c.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, messaging.ErrAuthRequired) {
		t.Fatalf("bad password should map to ErrAuthRequired, got %v", err)
	}
	id, err := c.Login(ctx, "alice@example.com", "pw")
	if err != nil || id != "u1" || c.UserID() != "u1" {
		t.Fatalf("Login: id=%q err=%v", id, err)
	}
	p, err := c.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if p.DisplayName() != "Alice" {
		t.Fatalf("unexpected profile %+v", p)
	}

	// an expired session surfaces as ErrAuthRequired too
	c.SetToken("stale")
	if _, err := c.CurrentUser(ctx); !errors.Is(err, messaging.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

func TestMapErr(t *testing.T) {
	if mapErr(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	other := status.Error(codes.Internal, "boom")
	if got := mapErr(other); got != other {
		t.Fatalf("non-auth errors should pass through, got %v", got)
	}
	if got := mapErr(status.Error(codes.Unauthenticated, "expired")); !errors.Is(got, messaging.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", got)
	}
}

func TestSearchProfilesExcludesCaller(t *testing.T) {
	c := newTestClient(t, &fakeService{})
	ps, err := c.SearchProfiles(context.Background(), "b", "u1", 10)
	if err != nil {
		t.Fatalf("SearchProfiles: %v", err)
	}
	if len(ps) != 1 || ps[0].ID != "u2" {
		t.Fatalf("unexpected results %+v", ps)
	}
}

func TestHistoryDrainsStream(t *testing.T) {
	svc := &fakeService{}
	c := newTestClient(t, svc)
	ms, err := c.History(context.Background(), "u2")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(ms) != 2 || ms[0].ID != "m1" || ms[1].ToID != "u2" {
		t.Fatalf("unexpected history %+v", ms)
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.historyReq.Limit != historyLimit {
		t.Fatalf("expected limit %d, got %d", historyLimit, svc.historyReq.Limit)
	}
}

func TestSubscribe_DeliversEvents(t *testing.T) {
	svc := &fakeService{events: make(chan *v1.ChangeEvent, 1)}
	c := newTestClient(t, svc)

	sub, err := c.Subscribe(context.Background(), v1.TableMessages)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	svc.mu.Lock()
	n := svc.subscribers
	svc.mu.Unlock()
	if n != 1 {
		t.Fatalf("Subscribe returned before the server registered it")
	}

	cur := json.RawMessage(`{"id":"m1"}`)
	svc.events <- &v1.ChangeEvent{Table: v1.TableMessages, Op: v1.OpInsert, Current: cur}
	select {
	case ev := <-sub.Events():
		if ev.Table != v1.TableMessages || ev.Op != v1.OpInsert || string(ev.Current) != string(cur) {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event delivered")
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for range sub.Events() {
	}
	if sub.Err() != nil {
		t.Fatalf("closed subscription should not report an error, got %v", sub.Err())
	}
}

func TestSubscribe_ServerEndReported(t *testing.T) {
	svc := &fakeService{events: make(chan *v1.ChangeEvent), subErr: status.Error(codes.Unauthenticated, "expired")}
	c := newTestClient(t, svc)

	sub, err := c.Subscribe(context.Background(), v1.TableNotifications)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	close(svc.events)

	for range sub.Events() {
	}
	if !errors.Is(sub.Err(), messaging.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", sub.Err())
	}
}

func TestSubscribe_CleanEndIsAnError(t *testing.T) {
	svc := &fakeService{events: make(chan *v1.ChangeEvent)}
	c := newTestClient(t, svc)

	sub, err := c.Subscribe(context.Background(), v1.TableMessages)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	close(svc.events)

	for range sub.Events() {
	}
	if !errors.Is(sub.Err(), errFeedClosed) {
		t.Fatalf("expected errFeedClosed, got %v", sub.Err())
	}
}
