package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"keyauth/internal/engine/notify"
	"keyauth/internal/engine/sessions"
	"keyauth/internal/engine/webhooks"
	"keyauth/internal/pkg/logger"
	"keyauth/internal/platform/audit"
	"keyauth/internal/platform/config"
	"keyauth/internal/platform/database"
	"keyauth/internal/platform/repositories"
	"keyauth/internal/workers"
)

const licenseSweepInterval = time.Hour

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging, "worker")
	log.Info().Msg("starting background workers")

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	userRepo := repositories.NewAppUserRepository(db)
	licenseRepo := repositories.NewLicenseKeyRepository(db)

	notifier := notify.NewNotifier(
		audit.NewRecorder(repositories.NewActivityLogRepository(db)),
		webhooks.NewDispatcher(repositories.NewWebhookRepository(db), cfg.Webhooks, nil),
	)
	tracker := sessions.NewTracker(repositories.NewSessionRepository(db), userRepo, notifier, nil, cfg.Sessions.IdleTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	run := func(name string, interval time.Duration, job func(time.Time) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			workers.Every(ctx, name, interval, job)
		}()
	}

	if cfg.Sessions.IdleTimeout > 0 {
		run("session_reaper", cfg.Sessions.ReapInterval, func(now time.Time) error {
			return workers.ReapSessions(tracker, now)
		})
	} else {
		log.Info().Msg("session idle timeout disabled, reaper not started")
	}
	run("license_sweep", licenseSweepInterval, func(now time.Time) error {
		return workers.ExpireLicenses(licenseRepo, now)
	})

	<-ctx.Done()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := notifier.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("pending notifications cancelled")
	}
	log.Info().Msg("workers stopped")
}
