package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"billtrack/internal/amqp"
	"billtrack/internal/cloud"
	"billtrack/internal/core"
	"billtrack/internal/log"
	"billtrack/internal/storage"
)

// SyncPublisher hands a sync request to the relay. *amqp.Client satisfies
// it; a nil publisher means the process syncs in-process instead.
type SyncPublisher interface {
	PublishSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error
}

// SyncService keeps the per-user cloud snapshot in step with local data.
// The server side publishes relay messages (or pushes directly when no
// relay is configured); the worker side consumes them and performs the
// actual push. Snapshots are whole-envelope and last-write-wins.
type SyncService struct {
	store     storage.Store
	transfer  *TransferService
	cloud     cloud.Store
	publisher SyncPublisher
	logger    *log.Logger

	// Injectable for tests.
	Now func() time.Time
}

func NewSyncService(store storage.Store, transfer *TransferService, cloudStore cloud.Store, publisher SyncPublisher, logger *log.Logger) *SyncService {
	return &SyncService{
		store:     store,
		transfer:  transfer,
		cloud:     cloudStore,
		publisher: publisher,
		logger:    logger,
		Now:       time.Now,
	}
}

// RequestSync asks for the current state to reach the cloud. With a relay
// configured the request travels as a message and the worker pushes; when
// publishing fails, or no relay exists, the push happens in-process. With
// neither configured this is a no-op.
func (s *SyncService) RequestSync(ctx context.Context, reason string) error {
	email, err := s.store.GetUserEmail(ctx)
	if err != nil {
		return err
	}
	if email == "" {
		s.logger.DebugContext(ctx, "Sync skipped, no user email set")
		return nil
	}

	if s.publisher != nil {
		state, err := s.store.GetSyncState(ctx)
		if err != nil {
			return err
		}
		msg := amqp.NewSyncRequestMessage(email, state.DataVersion, reason)
		if err := s.publisher.PublishSyncRequest(ctx, msg); err == nil {
			return nil
		} else if s.cloud == nil {
			return fmt.Errorf("%w: publish sync request: %v", core.ErrSyncFailure, err)
		} else {
			s.logger.WarnContext(ctx, "Sync publish failed, pushing in-process",
				log.FieldError, err)
		}
	}

	if s.cloud == nil {
		s.logger.DebugContext(ctx, "Sync skipped, no cloud store configured")
		return nil
	}
	return s.Push(ctx)
}

// Push uploads the full local envelope as the user's snapshot. The
// revision is the data version read before export, so a mutation landing
// mid-push leaves the state pending and a later sweep picks it up.
func (s *SyncService) Push(ctx context.Context) error {
	if s.cloud == nil {
		return fmt.Errorf("%w: no cloud store configured", core.ErrSyncFailure)
	}
	email, err := s.store.GetUserEmail(ctx)
	if err != nil {
		return err
	}
	if email == "" {
		s.logger.DebugContext(ctx, "Push skipped, no user email set")
		return nil
	}

	state, err := s.store.GetSyncState(ctx)
	if err != nil {
		return err
	}
	envelope, err := s.transfer.ExportJSON(ctx)
	if err != nil {
		return s.fail(ctx, fmt.Errorf("export snapshot: %w", err))
	}

	now := s.Now().UTC()
	snap := cloud.Snapshot{
		Key:       email,
		Envelope:  envelope,
		Revision:  state.DataVersion,
		UpdatedAt: now,
	}
	if err := s.cloud.Upsert(ctx, snap); err != nil {
		return s.fail(ctx, fmt.Errorf("upsert snapshot: %w", err))
	}
	if err := s.store.MarkSynced(ctx, state.DataVersion, now); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Snapshot pushed",
		log.FieldUserEmail, email,
		log.FieldDataVersion, state.DataVersion,
		log.FieldOperation, log.OpSync)
	return nil
}

// Pull replaces local data with the user's cloud snapshot. The import
// bumps the data version; marking that version synced right after keeps
// the pull from looking like a pending local change.
func (s *SyncService) Pull(ctx context.Context) error {
	if s.cloud == nil {
		return fmt.Errorf("%w: no cloud store configured", core.ErrSyncFailure)
	}
	email, err := s.store.GetUserEmail(ctx)
	if err != nil {
		return err
	}
	if email == "" {
		s.logger.DebugContext(ctx, "Pull skipped, no user email set")
		return nil
	}

	snap, err := s.cloud.Fetch(ctx, email)
	if err != nil {
		if errors.Is(err, cloud.ErrNotFound) {
			return err
		}
		return s.fail(ctx, fmt.Errorf("fetch snapshot: %w", err))
	}
	summary, err := s.transfer.ImportJSON(ctx, snap.Envelope)
	if err != nil {
		return s.fail(ctx, fmt.Errorf("apply snapshot: %w", err))
	}

	state, err := s.store.GetSyncState(ctx)
	if err != nil {
		return err
	}
	now := s.Now().UTC()
	if err := s.store.MarkSynced(ctx, state.DataVersion, now); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Snapshot pulled",
		log.FieldUserEmail, email,
		log.FieldCount, summary.Imported,
		log.FieldOperation, log.OpSync)
	return nil
}

// Reconcile runs the startup handshake: a non-empty cloud snapshot wins
// and replaces local data, anything else means local is the source and
// gets pushed.
func (s *SyncService) Reconcile(ctx context.Context) error {
	if s.cloud == nil {
		s.logger.DebugContext(ctx, "Reconcile skipped, no cloud store configured")
		return nil
	}
	email, err := s.store.GetUserEmail(ctx)
	if err != nil {
		return err
	}
	if email == "" {
		s.logger.DebugContext(ctx, "Reconcile skipped, no user email set")
		return nil
	}

	snap, err := s.cloud.Fetch(ctx, email)
	switch {
	case errors.Is(err, cloud.ErrNotFound):
		return s.Push(ctx)
	case err != nil:
		return s.fail(ctx, fmt.Errorf("fetch snapshot: %w", err))
	}
	if snapshotEmpty(snap) {
		return s.Push(ctx)
	}
	return s.Pull(ctx)
}

// HandleSyncRequest is the worker's entry point for relay messages. Stale
// requests, already covered by a later push, are acknowledged without
// touching the cloud.
func (s *SyncService) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	state, err := s.store.GetSyncState(ctx)
	if err != nil {
		return err
	}
	if msg.DataVersion > 0 && msg.DataVersion <= state.SyncedVersion {
		s.logger.DebugContext(ctx, "Sync request already covered",
			log.FieldDataVersion, msg.DataVersion)
		return nil
	}
	return s.Push(ctx)
}

// SweepPending pushes when local mutations have outrun the last sync,
// covering requests lost to relay downtime. Returns whether a push ran.
func (s *SyncService) SweepPending(ctx context.Context) (bool, error) {
	state, err := s.store.GetSyncState(ctx)
	if err != nil {
		return false, err
	}
	if !state.Pending() {
		return false, nil
	}
	s.logger.InfoContext(ctx, "Pending changes found, pushing",
		log.FieldDataVersion, state.DataVersion,
		log.FieldOperation, log.OpSync)
	if err := s.Push(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Status reports the sync bookkeeping row.
func (s *SyncService) Status(ctx context.Context) (storage.SyncState, error) {
	return s.store.GetSyncState(ctx)
}

// CloudConfigured reports whether a snapshot store is attached.
func (s *SyncService) CloudConfigured() bool {
	return s.cloud != nil
}

// fail records the error in the sync state and wraps it as a sync failure.
func (s *SyncService) fail(ctx context.Context, cause error) error {
	if err := s.store.MarkSyncError(ctx, s.Now().UTC(), cause); err != nil {
		s.logger.WarnContext(ctx, "Failed to record sync error", log.FieldError, err)
	}
	if errors.Is(cause, core.ErrSyncFailure) {
		return cause
	}
	return fmt.Errorf("%w: %v", core.ErrSyncFailure, cause)
}

// snapshotEmpty reports whether the snapshot carries no bills, in which
// case local data wins the startup reconcile.
func snapshotEmpty(snap cloud.Snapshot) bool {
	if len(snap.Envelope) == 0 {
		return true
	}
	var probe struct {
		Bills []json.RawMessage `json:"bills"`
	}
	if err := json.Unmarshal(snap.Envelope, &probe); err != nil {
		return false
	}
	return len(probe.Bills) == 0
}
