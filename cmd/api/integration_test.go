package main

import (
	"context"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/PaulBabatuyi/convosync/internal/auth"
	"github.com/PaulBabatuyi/convosync/internal/data"
	"github.com/PaulBabatuyi/convosync/internal/data/memory"
	"github.com/PaulBabatuyi/convosync/internal/db"
	"github.com/PaulBabatuyi/convosync/internal/middleware"
	"github.com/PaulBabatuyi/convosync/internal/realtime"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

// startBufListener serves st over bufconn with the production interceptor
// chain and returns a dialer for it.
func startBufListener(t *testing.T, st stores, rpm int) func(context.Context, string) (net.Conn, error) {
	t.Helper()
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	limiter := middleware.NewLimiterStore(rpm, rpm, time.Minute)
	t.Cleanup(limiter.Stop)

	rate := middleware.RateLimitUnaryInterceptor(limiter, map[string]bool{v1.FullMethod("Login"): true}, rateLimitKey(jwtMgr))
	s := newGRPCServer(newServer(st, jwtMgr, realtime.NewBroker(16)), rate)

	lis := bufconn.Listen(bufSize)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	return func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
}

// startBufServer is startBufListener plus a JSON-codec client.
func startBufServer(t *testing.T, st stores, rpm int) v1.ChatServiceClient {
	t.Helper()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(startBufListener(t, st, rpm)),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(v1.Name)),
	)
	if err != nil {
		t.Fatalf("failed to dial bufnet: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return v1.NewChatServiceClient(conn)
}

func memStores() stores {
	mem := memory.New()
	return stores{profiles: mem.Profiles(), messages: mem.Messages(), notifications: mem.Notifications(), posts: mem.Posts(), comments: mem.Notes()}
}

func bearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func TestEndToEnd_SendIsEchoedToBothParties(t *testing.T) {
	client := startBufServer(t, memStores(), 100)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := client.Register(ctx, &v1.RegisterRequest{Email: "a@example.com", Password: "pw", FullName: "A"})
	if err != nil {
		t.Fatalf("Register RPC failed: %v", err)
	}
	b, err := client.Register(ctx, &v1.RegisterRequest{Email: "b@example.com", Password: "pw", FullName: "B"})
	if err != nil {
		t.Fatalf("Register RPC failed: %v", err)
	}

	// no token
	if _, err := client.Me(ctx, &v1.MeRequest{}); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}

	subA, err := client.Subscribe(bearer(ctx, a.Token), &v1.SubscribeRequest{Table: v1.TableMessages})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := subA.Header(); err != nil {
		t.Fatalf("Subscribe header: %v", err)
	}
	subB, err := client.Subscribe(bearer(ctx, b.Token), &v1.SubscribeRequest{Table: v1.TableNotifications})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := subB.Header(); err != nil {
		t.Fatalf("Subscribe header: %v", err)
	}

	sent, err := client.SendMessage(bearer(ctx, a.Token), &v1.SendMessageRequest{ToID: b.UserID, Content: "hello"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if sent.FromID != a.UserID || sent.ToID != b.UserID {
		t.Fatalf("unexpected row %+v", sent)
	}
	if _, err := client.CreateNotification(bearer(ctx, a.Token), &v1.CreateNotificationRequest{
		UserID: b.UserID, Type: "message", Payload: "New message from A",
	}); err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}

	echo, err := subA.Recv()
	if err != nil {
		t.Fatalf("Recv echo: %v", err)
	}
	if echo.Op != v1.OpInsert || len(echo.Current) == 0 {
		t.Fatalf("unexpected echo %+v", echo)
	}
	note, err := subB.Recv()
	if err != nil || note.Table != v1.TableNotifications {
		t.Fatalf("notification event = %+v, %v", note, err)
	}

	hist, err := client.GetHistory(bearer(ctx, b.Token), &v1.GetHistoryRequest{WithID: a.UserID})
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	var got []*v1.Message
	for {
		m, err := hist.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("history Recv: %v", err)
		}
		got = append(got, m)
	}
	if len(got) != 1 || got[0].ID != sent.ID {
		t.Fatalf("unexpected history %+v", got)
	}
}

func TestEndToEnd_LoginRateLimited(t *testing.T) {
	client := startBufServer(t, memStores(), 2)
	ctx := context.Background()

	if _, err := client.Register(ctx, &v1.RegisterRequest{Email: "r@example.com", Password: "pw"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := client.Login(ctx, &v1.LoginRequest{Email: "r@example.com", Password: "pw"}); err != nil {
			t.Fatalf("Login %d: %v", i, err)
		}
	}
	_, err := client.Login(ctx, &v1.LoginRequest{Email: "r@example.com", Password: "pw"})
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", err)
	}
}

func TestRegisterAndLogin_Mongo(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	dbClient, err := db.New(ctx, uri, "convosync_api_test")
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	defer func() {
		_ = dbClient.Drop(context.Background())
		_ = dbClient.Close(context.Background())
	}()
	if err := dbClient.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes: %v", err)
	}

	client := startBufServer(t, stores{
		profiles:      data.NewProfilesStore(dbClient.ProfilesCollection()),
		messages:      data.NewMessagesStore(dbClient.MessagesCollection()),
		notifications: data.NewNotificationsStore(dbClient.NotificationsCollection()),
		posts:         data.NewPostsStore(dbClient.PostsCollection()),
		comments:      data.NewNotesStore(dbClient.NotesCollection()),
	}, 100)

	email := time.Now().UTC().Format("20060102-150405") + "-it@example.com"
	pwd := "testPass123"

	regResp, err := client.Register(ctx, &v1.RegisterRequest{Email: email, Password: pwd})
	if err != nil {
		t.Fatalf("Register RPC failed: %v", err)
	}
	if regResp.Token == "" || regResp.UserID == "" {
		t.Fatalf("Register response missing token or user_id")
	}

	loginResp, err := client.Login(ctx, &v1.LoginRequest{Email: email, Password: pwd})
	if err != nil {
		t.Fatalf("Login RPC failed: %v", err)
	}
	me, err := client.Me(bearer(ctx, loginResp.Token), &v1.MeRequest{})
	if err != nil || me.ID != regResp.UserID {
		t.Fatalf("Me = %+v, %v", me, err)
	}
}
