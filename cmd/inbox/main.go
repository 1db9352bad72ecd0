// Command inbox is a terminal front end for the chat service: it watches the
// signed-in user's conversations, sends and deletes messages, searches
// profiles, pages through the public feed and reads or answers posts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/PaulBabatuyi/convosync/internal/client"
	"github.com/PaulBabatuyi/convosync/internal/config"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/op/go-logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

var log = logging.MustGetLogger("inbox")

// Options are shared by every command.
type Options struct {
	Addr     string `short:"a" long:"addr" env:"INBOX_ADDR" default:"localhost:50051" description:"chat service address"`
	Email    string `short:"e" long:"email" env:"INBOX_EMAIL" description:"account email"`
	Password string `long:"password" env:"INBOX_PASSWORD" description:"account password"`
	Token    string `long:"token" env:"INBOX_TOKEN" description:"bearer token to use instead of email and password"`

	TLS    bool   `long:"tls" env:"INBOX_TLS" description:"connect over TLS"`
	CAFile string `long:"ca-file" env:"INBOX_CA_FILE" description:"CA bundle for the server certificate"`

	LogLevel string `short:"l" long:"loglevel" env:"LOG_LEVEL" default:"warning" description:"set the logging level [debug, info, notice, warning, error, critical]"`
}

var (
	opts   Options
	appCtx = context.Background()
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "could not load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	appCtx = ctx

	parser := flags.NewParser(&opts, flags.Default)
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		lvl, err := logging.LogLevel(opts.LogLevel)
		if err != nil {
			lvl = logging.WARNING
		}
		config.SetupLogging(lvl, "", os.Stderr)
		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}

	mustAdd(parser.AddCommand("watch", "Follow conversations live", "Print the inbox and every change to it until interrupted.", &watchCmd{}))
	mustAdd(parser.AddCommand("send", "Send a message", "Send a message to the profile matching the given email.", &sendCmd{}))
	mustAdd(parser.AddCommand("delete", "Delete one of your messages", "Delete a message after confirming.", &deleteCmd{}))
	mustAdd(parser.AddCommand("search", "Search profiles", "Find people by name or email.", &searchCmd{}))
	mustAdd(parser.AddCommand("feed", "Page through public posts", "List posts from the explore feed.", &feedCmd{}))
	mustAdd(parser.AddCommand("read", "Read a post and its responses", "Print a post by slug with its threaded notes.", &readCmd{}))
	mustAdd(parser.AddCommand("comment", "Respond to a post", "Add, edit or delete a note on a post.", &commentCmd{}))

	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func mustAdd(_ *flags.Command, err error) {
	if err != nil {
		panic(err)
	}
}

// connect dials the service and signs in with a token or email/password.
func connect(ctx context.Context) (*client.Client, error) {
	var (
		cl  *client.Client
		err error
	)
	if opts.TLS || opts.CAFile != "" {
		creds := credentials.NewClientTLSFromCert(nil, "")
		if opts.CAFile != "" {
			creds, err = credentials.NewClientTLSFromFile(opts.CAFile, "")
			if err != nil {
				return nil, fmt.Errorf("failed to load CA file: %w", err)
			}
		}
		cl, err = client.DialTLS(opts.Addr, grpc.WithTransportCredentials(creds))
	} else {
		cl, err = client.Dial(opts.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	if err != nil {
		return nil, err
	}

	switch {
	case opts.Token != "":
		cl.SetToken(opts.Token)
	case opts.Email != "" && opts.Password != "":
		if _, err := cl.Login(ctx, opts.Email, opts.Password); err != nil {
			_ = cl.Close()
			return nil, fmt.Errorf("login failed: %w", err)
		}
	default:
		log.Warning("no credentials given; most commands need --email and --password or --token")
	}
	return cl, nil
}
