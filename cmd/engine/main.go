package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tutorbase/engine/internal/app"
	"github.com/tutorbase/engine/internal/config"
	"github.com/tutorbase/engine/internal/metrics"
	"github.com/tutorbase/engine/internal/notify"
	"github.com/tutorbase/engine/internal/repository"
	"github.com/tutorbase/engine/internal/repository/memory"
	"github.com/tutorbase/engine/internal/service"
	enginehttp "github.com/tutorbase/engine/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Engine exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store service.Store
	switch cfg.StoreKind {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DBDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
		if err != nil {
			return err
		}
		if err := migrator.Run(ctx); err != nil {
			return err
		}
		migrator.Close()

		store = repository.NewStore(pool)
	case "memory":
		logger.Warn("Running with the in-memory store, all state is lost on exit")
		store = memory.NewStore()
	}

	var notifier service.Notifier = service.NopNotifier{}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramToken, logger)
		if err != nil {
			return err
		}
		notifier = tg
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	clock := service.SystemClock()

	ledgerSvc := service.NewLedgerService(store, logger)
	scheduleSvc := service.NewScheduleService(store, clock, cfg.MinNotice, logger)
	sessionSvc := service.NewSessionService(store, ledgerSvc, scheduleSvc, notifier, m, clock, logger)
	contractSvc := service.NewContractService(store, ledgerSvc, scheduleSvc, sessionSvc, notifier, m, logger)
	availabilitySvc := service.NewAvailabilityService(store, sessionSvc, notifier, m, clock, logger)

	sweeper := app.NewSweeper(availabilitySvc, cfg.SweepInterval, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	server := enginehttp.NewServer(availabilitySvc, ledgerSvc, scheduleSvc, sessionSvc, contractSvc, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Engine API listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
