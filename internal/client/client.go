// Package client talks to the chat.v1.ChatService over gRPC. A Client is the
// messaging.Backend and feed.Source used by front ends.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/PaulBabatuyi/convosync/internal/feed"
	"github.com/PaulBabatuyi/convosync/internal/messaging"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"github.com/op/go-logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var log = logging.MustGetLogger("client")

// historyLimit asks for the whole conversation; the server caps it.
const historyLimit = 1000

// tokenCreds attaches the current bearer token to every call.
type tokenCreds struct {
	mu     sync.RWMutex
	token  string
	secure bool
}

func (t *tokenCreds) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.token == "" {
		return nil, nil
	}
	return map[string]string{"authorization": "Bearer " + t.token}, nil
}

func (t *tokenCreds) RequireTransportSecurity() bool { return t.secure }

func (t *tokenCreds) set(token string) {
	t.mu.Lock()
	t.token = token
	t.mu.Unlock()
}

func (t *tokenCreds) get() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// Client is a signed-in (or not yet signed-in) connection to the service.
type Client struct {
	conn  *grpc.ClientConn
	api   v1.ChatServiceClient
	creds *tokenCreds

	mu     sync.Mutex
	userID string
}

var (
	_ messaging.Backend = (*Client)(nil)
	_ feed.Source       = (*Client)(nil)
)

// Dial connects to target over a connection that may be plaintext. opts must
// include transport credentials.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	return dial(target, false, opts...)
}

// DialTLS is Dial for TLS transports; tokens are then refused on a
// plaintext connection.
func DialTLS(target string, opts ...grpc.DialOption) (*Client, error) {
	return dial(target, true, opts...)
}

func dial(target string, secure bool, opts ...grpc.DialOption) (*Client, error) {
	creds := &tokenCreds{secure: secure}
	all := append([]grpc.DialOption{
		grpc.WithPerRPCCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(v1.Name)),
	}, opts...)

	conn, err := grpc.NewClient(target, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", target, err)
	}
	return &Client{conn: conn, api: v1.NewChatServiceClient(conn), creds: creds}, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SetToken installs a token obtained elsewhere.
func (c *Client) SetToken(token string) {
	c.creds.set(token)
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	return c.creds.get()
}

// UserID returns the id from the last Register or Login.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Register creates an account and signs in as it.
func (c *Client) Register(ctx context.Context, email, password, fullName string) (string, error) {
	resp, err := c.api.Register(ctx, &v1.RegisterRequest{Email: email, Password: password, FullName: fullName})
	if err != nil {
		return "", mapErr(err)
	}
	c.signedIn(resp)
	return resp.UserID, nil
}

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	resp, err := c.api.Login(ctx, &v1.LoginRequest{Email: email, Password: password})
	if err != nil {
		return "", mapErr(err)
	}
	c.signedIn(resp)
	return resp.UserID, nil
}

func (c *Client) signedIn(resp *v1.AuthResponse) {
	c.creds.set(resp.Token)
	c.mu.Lock()
	c.userID = resp.UserID
	c.mu.Unlock()
	log.Debugf("signed in as %s until %s", resp.UserID, resp.ExpiresAt)
}

// mapErr turns Unauthenticated into messaging.ErrAuthRequired and leaves
// everything else alone.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.Unauthenticated {
		return fmt.Errorf("%w: %s", messaging.ErrAuthRequired, status.Convert(err).Message())
	}
	return err
}

// collect drains a server stream.
func collect[T any](stream grpc.ServerStreamingClient[T]) ([]*T, error) {
	var out []*T
	for {
		item, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, item)
	}
}
