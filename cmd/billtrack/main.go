package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"billtrack/internal/amqp"
	"billtrack/internal/cli"
	apphttp "billtrack/internal/http"
	"billtrack/internal/log"
	"billtrack/internal/schedule"
	"billtrack/internal/services"
	"billtrack/internal/state"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	result := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	// A configured email seeds the profile so sync works out of the box;
	// the profile endpoint can still change it later.
	if cfg.UserEmail != "" {
		if err := result.Store.SetUserEmail(ctx, cfg.UserEmail); err != nil {
			logger.Error("Failed to store user email", log.FieldError, err)
			os.Exit(1)
		}
	}

	bills := services.NewBillService(result.Store,
		schedule.NewExpander(cfg.ExpansionHorizonYear),
		logger.WithComponent(log.ComponentBills))
	transfer := services.NewTransferService(result.Store,
		logger.WithComponent(log.ComponentTransfer))

	var publisher services.SyncPublisher
	if result.Relay != nil {
		publisher = result.Relay
	}
	syncSvc := services.NewSyncService(result.Store, transfer, result.Cloud, publisher,
		logger.WithComponent(log.ComponentCloud))

	scheduler := state.NewSyncScheduler(cfg.SyncDebounce, func(ctx context.Context) error {
		return syncSvc.RequestSync(ctx, amqp.ReasonMutation)
	}, logger.WithComponent(log.ComponentState))
	coordinator := state.NewCoordinator(result.Store, scheduler,
		logger.WithComponent(log.ComponentState))
	bills.SetListener(coordinator)
	transfer.SetListener(coordinator)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:           ":" + cfg.Port,
		Bills:          bills,
		Transfer:       transfer,
		Sync:           syncSvc,
		Coordinator:    coordinator,
		Store:          result.Store,
		Logger:         logger.WithComponent(log.ComponentHTTP),
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to build server", log.FieldError, err)
		os.Exit(1)
	}

	// Graceful shutdown handling
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("Sync scheduler stop failed", log.FieldError, err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting billtrack server",
		"port", cfg.Port,
		"backend", cfg.StorageBackend,
		"relay_enabled", result.Relay != nil,
		"cloud_enabled", result.Cloud != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}
