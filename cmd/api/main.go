package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulBabatuyi/convosync/internal/auth"
	"github.com/PaulBabatuyi/convosync/internal/config"
	"github.com/PaulBabatuyi/convosync/internal/data"
	"github.com/PaulBabatuyi/convosync/internal/data/memory"
	"github.com/PaulBabatuyi/convosync/internal/db"
	"github.com/PaulBabatuyi/convosync/internal/middleware"
	"github.com/PaulBabatuyi/convosync/internal/realtime"
	v1 "github.com/PaulBabatuyi/convosync/proto/chat/v1"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logFile := config.SetupLogging(cfg.Level(), cfg.LogFile, nil)
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Criticalf("server exit: %v", err)
		os.Exit(1)
	}
}

// openStores connects the configured backend. The returned pinger backs
// /healthz; closeFn releases the connection.
func openStores(ctx context.Context, cfg *config.Config) (stores, pinger, func(), error) {
	if cfg.Store == config.StoreMemory {
		log.Warning("using in-memory store; data is lost on exit")
		mem := memory.New()
		return stores{
			profiles:      mem.Profiles(),
			messages:      mem.Messages(),
			notifications: mem.Notifications(),
			posts:         mem.Posts(),
			comments:      mem.Notes(),
		}, mem, func() {}, nil
	}

	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return stores{}, nil, nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	closeFn := func() { _ = dbClient.Close(context.Background()) }
	if err := dbClient.CreateIndexes(ctx); err != nil {
		closeFn()
		return stores{}, nil, nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return stores{
		profiles:      data.NewProfilesStore(dbClient.ProfilesCollection()),
		messages:      data.NewMessagesStore(dbClient.MessagesCollection()),
		notifications: data.NewNotificationsStore(dbClient.NotificationsCollection()),
		posts:         data.NewPostsStore(dbClient.PostsCollection()),
		comments:      data.NewNotesStore(dbClient.NotesCollection()),
	}, dbClient, closeFn, nil
}

func newJWTManager(cfg *config.Config) (*auth.JWTManager, error) {
	if cfg.JWTKeys == "" {
		return auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL), nil
	}
	keys, err := cfg.SigningKeys()
	if err != nil {
		return nil, err
	}
	return auth.NewJWTManagerFromKeys(keys, cfg.JWTActiveKid, cfg.TokenTTL), nil
}

func run(ctx context.Context, cfg *config.Config) error {
	st, pingDB, closeStores, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	jwtMgr, err := newJWTManager(cfg)
	if err != nil {
		return err
	}

	broker := realtime.NewBroker(realtime.DefaultBuffer)
	g, ctx := errgroup.WithContext(ctx)

	if cfg.ValkeyAddr != "" {
		relay, err := realtime.NewValkeyRelay(cfg.ValkeyAddr, cfg.ValkeyChannel, broker)
		if err != nil {
			return err
		}
		defer relay.Close()
		g.Go(func() error { return relay.Run(ctx) })
		log.Infof("relaying changes via valkey %s (%s)", cfg.ValkeyAddr, cfg.ValkeyChannel)
	}

	// small burst allows a couple of quick retries
	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, time.Minute)
	defer limiterStore.Stop()
	limited := map[string]bool{
		v1.FullMethod("Register"):       true,
		v1.FullMethod("Login"):          true,
		v1.FullMethod("SearchProfiles"): true,
	}
	rate := middleware.RateLimitUnaryInterceptor(limiterStore, limited, rateLimitKey(jwtMgr))

	var serverOpts []grpc.ServerOption
	if cfg.TLSEnabled() {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("failed to load TLS certs: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	srv := newServer(st, jwtMgr, broker)
	grpcServer := newGRPCServer(srv, rate, serverOpts...)

	hs := health.NewServer()
	hs.SetServingStatus(v1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           newGateway(pingDB, jwtMgr, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Infof("gRPC server listening on %s", lis.Addr())
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Infof("HTTP gateway listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		hs.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}
