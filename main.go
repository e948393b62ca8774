package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/config"
	grpcserver "github.com/Billy-Davies-2/pokemon-teams-ui/internal/grpc"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/handlers"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/logger"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/mutation"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/pubsub"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/query"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/remote"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/roster"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/views"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger first
	logger.Init(cfg.LogLevel)

	logger.Info("Starting Pokemon Teams UI", "environment", cfg.Environment, "backend", cfg.RemoteBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := newServices(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize remote services", "error", err)
		log.Fatalf("Failed to initialize remote services: %v", err)
	}

	// Initialize pub/sub (NATS JetStream or Embedded NATS for local development)
	upstream, closeBus, err := newUpstream(cfg)
	if err != nil {
		logger.Error("Failed to initialize NATS", "error", err)
		log.Fatalf("Failed to initialize NATS: %v", err)
	}
	defer closeBus()
	bus := pubsub.NewWithUpstream(upstream)

	// Query cache shared by every session, kept coherent across instances by the relay
	cache := query.NewCache()
	relay := mutation.NewRelay(cache, bus)
	relayDone := relay.Start(ctx)
	logger.Info("Invalidation relay started", "origin", relay.Origin())

	svc := roster.NewService(cache, services, roster.Options{
		Concurrency: cfg.FetchConcurrency,
		Notifier:    relay,
	})
	sessions := views.NewSessions(svc, cfg.SessionIdle())

	probe := func(ctx context.Context) error {
		_, err := services.Pokemon.List(ctx)
		return err
	}

	h, err := handlers.New(svc, sessions, bus, handlers.Options{
		DefaultCoachID: cfg.DefaultCoachID,
		Probe:          probe,
	})
	if err != nil {
		logger.Error("Failed to parse templates", "error", err)
		log.Fatalf("Failed to parse templates: %v", err)
	}
	logger.Info("Templates loaded successfully")

	mux := http.NewServeMux()
	h.Register(mux)

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	healthServer := grpcserver.NewServer(grpcserver.Probe(probe), grpcserver.Options{})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sessions.Run(gctx, time.Minute)
		return nil
	})

	g.Go(func() error {
		<-healthServer.Watch(gctx)
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", "0.0.0.0:"+cfg.GRPCPort)
		if err != nil {
			logger.Error("Failed to listen for gRPC", "error", err, "port", cfg.GRPCPort)
			return err
		}
		return healthServer.Serve(lis)
	})

	g.Go(func() error {
		logger.Info("Server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		healthServer.Stop()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Service stopped with error", "error", err)
		os.Exit(1)
	}
	<-relayDone
	logger.Info("Service stopped")
}

// newServices picks the remote backend. The memory backend is seeded with a
// sample team for the default coach.
func newServices(ctx context.Context, cfg *config.Config) (remote.Services, error) {
	switch cfg.RemoteBackend {
	case config.BackendMemory:
		mem := remote.NewMemory()
		mem.SeedTeam(cfg.DefaultCoachID, "Equipo Kanto", 1, 4, 7)
		logger.Info("Using in-memory remote services")
		return mem.Services(), nil
	default:
		var client *http.Client
		oauth := remote.OAuthConfig{
			ClientID:     cfg.RemoteClientID,
			ClientSecret: cfg.RemoteClientSecret,
			TokenURL:     cfg.RemoteTokenURL,
			Scopes:       cfg.Scopes(),
		}
		if oauth.Enabled() {
			client = remote.NewOAuthHTTPClient(ctx, oauth)
			logger.Info("Using client credentials for remote services", "token_url", oauth.TokenURL)
		}

		httpClient, err := remote.NewHTTPClient(remote.HTTPConfig{
			TeamCoachURL: cfg.TeamCoachURL,
			TeamsURL:     cfg.TeamsURL,
			PokemonURL:   cfg.PokemonURL,
			Client:       client,
		})
		if err != nil {
			return remote.Services{}, err
		}
		logger.Info("Using HTTP remote services", "teams_url", cfg.TeamsURL)
		return httpClient.Services(), nil
	}
}

// newUpstream uses embedded NATS in development mode, real NATS in production
func newUpstream(cfg *config.Config) (pubsub.Bus, func(), error) {
	if cfg.IsDevelopment() {
		logger.Info("Starting embedded NATS server for local development")
		embedded, err := pubsub.NewEmbeddedNATSPubSub(pubsub.EmbeddedNATSOptions{
			Port:    -1,
			Subject: cfg.NATSSubject,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Embedded NATS server ready", "url", embedded.ServerURL())
		return embedded, embedded.Close, nil
	}

	logger.Info("Using real NATS JetStream for production")
	nats, err := pubsub.NewNATSPubSub(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Connected to NATS", "url", cfg.NATSURL)
	return nats, nats.Close, nil
}
