package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/birimbahub/marketplace/internal/api"
	"github.com/birimbahub/marketplace/internal/api/handler"
	"github.com/birimbahub/marketplace/internal/core/ports"
	"github.com/birimbahub/marketplace/internal/core/service"
	"github.com/birimbahub/marketplace/internal/infrastructure/backend"
	"github.com/birimbahub/marketplace/internal/infrastructure/config"
	mongodb "github.com/birimbahub/marketplace/internal/infrastructure/db/mongo"
	redisdb "github.com/birimbahub/marketplace/internal/infrastructure/db/redis"
	"github.com/birimbahub/marketplace/internal/infrastructure/presentation"
	"github.com/birimbahub/marketplace/internal/infrastructure/queue"
	"github.com/birimbahub/marketplace/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
	cfg := config.Load(boot)

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "marketplace-session",
		Env:     cfg.Env,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Check{}

	// --- Session persistence ---
	var store backend.SessionStore = backend.NewMemoryStore()
	if cfg.Session.Store == config.SessionStoreRedis {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect failed")
		}
		defer rdb.Close()
		store = redisdb.NewSessionStore(rdb, cfg.Session.Key)
		checks["redis"] = func(ctx context.Context) error { return redisdb.Ping(ctx, rdb) }
	}

	// --- Backend client ---
	events := queue.NewDispatcher(logger.Component(log, "auth-events"))
	defer events.Close()

	client := backend.New(backend.Config{
		URL:     cfg.Backend.URL,
		AnonKey: cfg.Backend.AnonKey,
		SiteURL: cfg.Backend.SiteURL,
		Timeout: cfg.Backend.Timeout,
	}, store, events, logger.Component(log, "backend"))
	checks["backend"] = client.Ping

	// --- Audit trail ---
	opts := []service.Option{
		service.WithRetryPolicy(service.RetryPolicy{
			Interval:    cfg.Session.PollInterval,
			MaxDuration: cfg.Session.PollBudget,
		}),
		service.WithPhoneRegion(cfg.PhoneRegion),
	}
	if cfg.Audit.Enabled {
		mclient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			log.Fatal().Err(err).Msg("mongo connect failed")
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = mclient.Disconnect(dctx)
		}()

		audit := mongodb.NewAuditRepository(db)
		if err := audit.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("audit index creation failed")
		}
		opts = append(opts, service.WithAudit(audit))
		checks["mongodb"] = func(ctx context.Context) error { return mongodb.Ping(ctx, mclient) }
	}

	// --- Session core ---
	sessionLog := logger.Component(log, "session")
	root := presentation.NewRoot(sessionLog)
	// The stream needs the session service, so it joins the fanout afterwards.
	notifiers := presentation.Fanout{presentation.NewLogNotifier(sessionLog)}

	var sessions ports.SessionService = service.NewSessionService(
		client,
		service.NewRoleResolver(client, sessionLog),
		service.NewSelfProfileResolver(client, sessionLog),
		root,
		&notifiers,
		sessionLog,
		opts...,
	)
	stream := handler.NewStateStream(sessions, root, logger.Component(log, "state-stream"))
	notifiers = append(notifiers, stream)

	sessions.Initialize(ctx)
	defer sessions.Close()

	// --- HTTP ---
	e := api.NewRouter(api.Dependencies{
		Sessions: sessions,
		Profiles: service.NewRequesterProfileFetcher(client, sessionLog),
		Theme:    root,
		Stream:   stream,
		Checks:   checks,
	}, log)

	if cfg.DebugBanner {
		e.HideBanner = false
		log.Debug().
			Str("env", cfg.Env).
			Str("backend_url", cfg.Backend.URL).
			Str("session_store", cfg.Session.Store).
			Bool("audit", cfg.Audit.Enabled).
			Dur("poll_interval", cfg.Session.PollInterval).
			Dur("poll_budget", cfg.Session.PollBudget).
			Msg("debug banner")
	}

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Str("port", cfg.Port).Msg("marketplace session service started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown failed")
	}
}
