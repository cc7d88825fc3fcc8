package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"billtrack/internal/cli"
	"billtrack/internal/log"
	"billtrack/internal/schedule"
	"billtrack/internal/services"
	"billtrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext()
	defer stop()

	result := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

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
	// The worker is the consuming side of the relay, so no publisher here.
	syncSvc := services.NewSyncService(result.Store, transfer, result.Cloud, nil,
		logger.WithComponent(log.ComponentCloud))

	w := worker.NewSyncWorker(bills, syncSvc, result.Relay, worker.Schedules{
		Expand:        cfg.ExpandCron,
		Regenerate:    cfg.RegenCron,
		Backup:        cfg.BackupCron,
		SweepInterval: cfg.SyncInterval,
	}, logger)

	if syncSvc.CloudConfigured() {
		if err := w.Startup(ctx); err != nil {
			// Keep going: the sweep loop retries anything still pending.
			logger.Error("Startup sync check failed", log.FieldError, err)
		}
	} else {
		logger.Info("Cloud sync disabled, no snapshot store configured")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.RunSchedules(gctx) })
	if syncSvc.CloudConfigured() {
		if result.Relay != nil {
			g.Go(func() error { return w.Consume(gctx) })
		}
		g.Go(func() error { return w.SweepLoop(gctx) })
	}

	logger.Info("Worker started",
		"backend", cfg.StorageBackend,
		"relay_enabled", result.Relay != nil,
		"cloud_enabled", result.Cloud != nil)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker failed", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
