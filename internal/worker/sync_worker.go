// Package worker runs the background half of cloud sync: the relay
// consumer, the maintenance schedules and the pending sweep that covers
// requests lost to relay downtime.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"billtrack/internal/amqp"
	"billtrack/internal/log"
	"billtrack/internal/services"
)

// Schedules carries the cron specs and the sweep interval, normally
// straight from configuration.
type Schedules struct {
	Expand        string
	Regenerate    string
	Backup        string
	SweepInterval time.Duration
}

// SyncWorker consumes relay messages and runs the scheduled maintenance:
// daily expansion, weekly regeneration, daily snapshot backup and the
// periodic pending sweep.
type SyncWorker struct {
	bills     *services.BillService
	sync      *services.SyncService
	relay     *amqp.Client
	schedules Schedules
	logger    *log.Logger
}

// NewSyncWorker wires the worker. A nil relay disables the consumer loop;
// the sweep ticker still drains pending changes.
func NewSyncWorker(bills *services.BillService, syncSvc *services.SyncService, relay *amqp.Client, schedules Schedules, logger *log.Logger) *SyncWorker {
	return &SyncWorker{
		bills:     bills,
		sync:      syncSvc,
		relay:     relay,
		schedules: schedules,
		logger:    logger,
	}
}

// Startup runs the reconcile handshake and then drains anything still
// pending, recovering from messages lost while the worker was down.
func (w *SyncWorker) Startup(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Running startup reconcile",
		log.FieldOperation, log.OpStartup)
	if err := w.sync.Reconcile(ctx); err != nil {
		return fmt.Errorf("startup reconcile: %w", err)
	}
	pushed, err := w.sync.SweepPending(ctx)
	if err != nil {
		return fmt.Errorf("startup sweep: %w", err)
	}
	if pushed {
		w.logger.InfoContext(ctx, "Startup sweep pushed pending changes",
			log.FieldOperation, log.OpStartup)
	}
	return nil
}

// Consume blocks on the relay consumer loop until ctx is cancelled.
func (w *SyncWorker) Consume(ctx context.Context) error {
	if w.relay == nil {
		return fmt.Errorf("no relay configured")
	}
	w.logger.InfoContext(ctx, "Consuming sync requests")
	return w.relay.Consume(ctx, w.HandleSyncRequest)
}

// HandleSyncRequest processes one relay message. Errors bubble up to the
// consumer loop, which nacks and requeues the delivery.
func (w *SyncWorker) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	w.logger.InfoContext(ctx, "Processing sync request",
		log.FieldUserEmail, msg.UserEmail,
		log.FieldDataVersion, msg.DataVersion,
		"reason", msg.Reason)

	if err := w.sync.HandleSyncRequest(ctx, msg); err != nil {
		return fmt.Errorf("handle sync request: %w", err)
	}
	return nil
}

// RunSchedules registers the cron jobs and blocks until ctx is cancelled,
// then waits for a running job to finish.
func (w *SyncWorker) RunSchedules(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))

	type job struct {
		name string
		spec string
		run  func(context.Context)
	}
	jobs := []job{
		{"expansion", w.schedules.Expand, w.runExpansion},
		{"regeneration", w.schedules.Regenerate, w.runRegeneration},
	}
	if w.sync.CloudConfigured() {
		jobs = append(jobs, job{"backup", w.schedules.Backup, w.runBackup})
	} else {
		w.logger.Info("Backup schedule disabled, no cloud store configured")
	}

	for _, j := range jobs {
		if _, err := c.AddFunc(j.spec, func() { j.run(ctx) }); err != nil {
			return fmt.Errorf("register %s schedule: %w", j.name, err)
		}
		w.logger.Info("Registered schedule", "job", j.name, "spec", j.spec)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// SweepLoop periodically pushes when local changes have outrun the last
// sync. With a relay this covers lost messages; without one it is the
// only transport.
func (w *SyncWorker) SweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.schedules.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.sync.SweepPending(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Pending sweep failed", log.FieldError, err)
			}
		}
	}
}

func (w *SyncWorker) runExpansion(ctx context.Context) {
	minted, err := w.bills.ExpandNow(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Expansion sweep failed",
			log.FieldError, err,
			log.FieldOperation, log.OpExpand)
		return
	}
	if minted > 0 {
		w.logger.InfoContext(ctx, "Expansion sweep minted instances",
			log.FieldCount, minted,
			log.FieldOperation, log.OpExpand)
	}
}

func (w *SyncWorker) runRegeneration(ctx context.Context) {
	total, err := w.bills.Regenerate(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Regeneration failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRegenerate)
		return
	}
	w.logger.InfoContext(ctx, "Regeneration rebuilt recurring instances",
		log.FieldCount, total,
		log.FieldOperation, log.OpRegenerate)
}

// runBackup writes the daily snapshot whether or not anything is pending.
func (w *SyncWorker) runBackup(ctx context.Context) {
	if err := w.sync.Push(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Snapshot backup failed",
			log.FieldError, err,
			log.FieldOperation, log.OpSnapshot)
		return
	}
	w.logger.InfoContext(ctx, "Snapshot backup written",
		log.FieldOperation, log.OpSnapshot)
}
