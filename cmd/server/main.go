package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"keyauth/internal/api"
	"keyauth/internal/api/handlers"
	"keyauth/internal/api/middleware"
	"keyauth/internal/engine/blacklist"
	"keyauth/internal/engine/credentials"
	"keyauth/internal/engine/licenses"
	"keyauth/internal/engine/notify"
	"keyauth/internal/engine/pipeline"
	"keyauth/internal/engine/sessions"
	"keyauth/internal/engine/webhooks"
	"keyauth/internal/pkg/logger"
	"keyauth/internal/platform/audit"
	"keyauth/internal/platform/auth"
	"keyauth/internal/platform/cache"
	"keyauth/internal/platform/config"
	"keyauth/internal/platform/database"
	"keyauth/internal/platform/metrics"
	"keyauth/internal/platform/repositories"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging, "server")

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	m := metrics.New()

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	appRepo := repositories.NewApplicationRepository(db)
	licenseRepo := repositories.NewLicenseKeyRepository(db)
	userRepo := repositories.NewAppUserRepository(db)
	blacklistRepo := repositories.NewBlacklistRepository(db)
	activityRepo := repositories.NewActivityLogRepository(db)
	webhookRepo := repositories.NewWebhookRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	hasher := credentials.NewHasher(cfg.Security.BcryptCost)
	registry := licenses.NewRegistry(licenseRepo)
	appCache := cache.NewApplicationCache(cfg.Cache.ApplicationTTL)

	dispatcher := webhooks.NewDispatcher(webhookRepo, cfg.Webhooks, m)
	notifier := notify.NewNotifier(audit.NewRecorder(activityRepo), dispatcher,
		notify.WithWorkers(cfg.Webhooks.Workers),
		notify.WithQueueSize(cfg.Webhooks.QueueSize),
	)

	authPipeline := pipeline.New(pipeline.Deps{
		Users:       userRepo,
		Blacklist:   blacklist.NewChecker(blacklistRepo),
		Credentials: hasher,
		Licenses:    registry,
		Notifier:    notifier,
		Metrics:     m,
	})
	tracker := sessions.NewTracker(sessionRepo, userRepo, notifier, m, cfg.Sessions.IdleTimeout)

	// Rate limiting is shared across replicas when redis is configured
	var limiter middleware.Limiter
	if cfg.RateLimit.RedisURL != "" {
		client, err := cache.Connect(context.Background(), cfg.RateLimit.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		limiter = middleware.NewRedisLimiter(client, "keyauth:ratelimit")
		log.Info().Msg("using redis rate limiter")
	} else {
		memLimiter := middleware.NewMemoryLimiter()
		defer memLimiter.Close()
		limiter = memLimiter
	}

	proxyTrust, err := middleware.NewProxyTrust(cfg.Server.TrustedProxies)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid server.trusted_proxies")
	}

	deps := &api.Dependencies{
		ClientHandler:         handlers.NewClientHandler(authPipeline, tracker),
		AuthHandler:           handlers.NewAuthHandler(accountRepo, hasher, tokenSvc),
		ApplicationHandler:    handlers.NewApplicationHandler(appRepo, appCache),
		LicenseHandler:        handlers.NewLicenseHandler(appRepo, registry),
		UserHandler:           handlers.NewUserHandler(appRepo, userRepo, registry, hasher),
		BlacklistHandler:      handlers.NewBlacklistHandler(appRepo, blacklistRepo),
		WebhookHandler:        handlers.NewWebhookHandler(webhookRepo, webhooks.NewProber(cfg.Webhooks.ProbeTimeout)),
		ActivityHandler:       handlers.NewActivityHandler(appRepo, activityRepo),
		HealthHandler:         handlers.NewHealthHandler(db),
		MetricsHandler:        m.Handler(),
		AuthMiddleware:        middleware.NewAuthMiddleware(tokenSvc),
		ApplicationMiddleware: middleware.NewApplicationMiddleware(appRepo, appCache),
		RateLimitMiddleware:   middleware.NewRateLimitMiddleware(limiter, cfg.RateLimit),
		ProxyTrust:            proxyTrust,
	}
	router := api.NewRouter(deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      middleware.Instrument(m, router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	// Let queued activity logs and webhooks finish before the database closes
	if err := notifier.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("pending notifications dropped")
	}
	log.Info().Msg("server stopped")
}
