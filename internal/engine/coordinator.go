// Package engine contains the sync coordinator: the orchestrator that owns
// the periodic sync timer, drives the difference and conflict resolvers
// each cycle, routes failed writes to the retry and offline queues, and
// publishes status and progress for observers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/finledger/syncengine/internal/conflict"
	"github.com/finledger/syncengine/internal/diff"
	"github.com/finledger/syncengine/internal/models"
	"github.com/finledger/syncengine/internal/offline"
	"github.com/finledger/syncengine/internal/reachability"
	"github.com/finledger/syncengine/internal/remote"
	"github.com/finledger/syncengine/internal/retry"
	"github.com/finledger/syncengine/internal/storage"
)

// ErrConflictNotFound is returned by ResolveConflict when the referenced
// conflict is no longer pending.
var ErrConflictNotFound = errors.New("conflict not found")

// Config tunes the coordinator.
type Config struct {
	// Interval between automatic sync cycles.
	Interval time.Duration

	// TieTolerance is the timestamp distance below which two versions of
	// a record cannot be ordered by recency.
	TieTolerance time.Duration

	// DefaultStrategy is applied to every conflict found during a cycle.
	// Defer parks conflicts for manual resolution instead.
	DefaultStrategy conflict.Strategy

	// RetryInterval and RetryMaxAttempts bound the retry queue replay.
	RetryInterval    time.Duration
	RetryMaxAttempts int

	// OfflineCapacity bounds the offline buffer.
	OfflineCapacity int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Interval:         5 * time.Minute,
		TieTolerance:     diff.DefaultTieTolerance,
		DefaultStrategy:  conflict.Merge,
		RetryInterval:    retry.DefaultInterval,
		RetryMaxAttempts: retry.DefaultMaxAttempts,
		OfflineCapacity:  offline.DefaultCapacity,
	}
}

// Coordinator reconciles the local store with the remote backend.
type Coordinator struct {
	store   storage.Store
	backend remote.Backend
	monitor reachability.Monitor
	cfg     Config
	logger  *slog.Logger

	retryQ   *retry.Queue
	offlineQ *offline.Queue

	syncing atomic.Bool // single-flight guard for cycles
	locks   *recordLocks

	mu        sync.Mutex
	status    Status
	progress  float64
	pending   []models.Conflict
	observers []Observer
	enabled   bool
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New wires a coordinator. The monitor's reconnect signal triggers an
// offline queue flush; offline replay failures hand off to the retry
// queue.
func New(store storage.Store, backend remote.Backend, monitor reachability.Monitor, cfg Config, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		store:   store,
		backend: backend,
		monitor: monitor,
		cfg:     cfg,
		logger:  logger,
		locks:   newRecordLocks(),
		status:  Status{State: StateIdle},
	}

	c.retryQ = retry.New(cfg.RetryInterval, logger, func(op retry.Operation, err error) {
		// Data-loss boundary: the queue already logged the drop; keep
		// the record's divergence visible until a later cycle
		// reconciles it.
		logger.Error("pending write dropped",
			"record_id", op.ID,
			"description", op.Description,
			"error", err)
	})

	c.offlineQ = offline.New(cfg.OfflineCapacity, logger, func(ctx context.Context, op offline.Operation, err error) {
		c.retryQ.Enqueue(retry.Operation{
			ID:          op.ID,
			Description: op.Description,
			MaxAttempts: c.cfg.RetryMaxAttempts,
			Do:          op.Do,
			ShouldRetry: remote.IsTransient,
		}, err)
	})

	monitor.OnChange(func(online bool) {
		if !online {
			return
		}
		go c.offlineQ.Flush(context.Background())
	})

	return c
}

// Enable validates the backend, starts the periodic timer and performs one
// immediate full cycle. Fails if the backend cannot be reached or the
// session is invalid; the cycle's own outcome is reported through Status.
func (c *Coordinator) Enable(ctx context.Context) error {
	c.mu.Lock()
	if c.enabled {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.backend.Ping(ctx); err != nil {
		return fmt.Errorf("cannot enable sync: %w", err)
	}

	c.mu.Lock()
	c.enabled = true
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	c.retryQ.Start(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ticker := time.NewTicker(c.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := c.RunCycle(ctx); err != nil {
					c.logger.Error("scheduled sync cycle failed", "error", err)
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	c.logger.Info("sync enabled", "interval", c.cfg.Interval)

	if err := c.RunCycle(ctx); err != nil {
		c.logger.Error("initial sync cycle failed", "error", err)
	}
	return nil
}

// Disable stops the periodic timer. An in-flight cycle finishes rather
// than aborting mid-write; already-stored data is untouched. Pending retry
// and offline operations stay queued.
func (c *Coordinator) Disable() {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	c.enabled = false
	close(c.stop)
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Info("sync disabled")
}

// Close disables the coordinator and stops the retry replay timer.
func (c *Coordinator) Close() {
	c.Disable()
	c.retryQ.Stop()
}

// RunCycle performs one full synchronization cycle. Concurrent triggers
// coalesce: if a cycle is already in flight the call is a no-op.
//
// Per-record write failures are isolated (routed to the retry or offline
// queue) and never abort the cycle; only a snapshot fetch failure does.
func (c *Coordinator) RunCycle(ctx context.Context) error {
	if !c.syncing.CompareAndSwap(false, true) {
		c.logger.Debug("sync cycle already in flight, trigger coalesced")
		return nil
	}
	defer c.syncing.Store(false)

	started := time.Now()
	c.setStatus(Status{State: StateSyncing})
	c.setProgress(0)

	local, err := c.store.LoadAll(ctx)
	if err != nil {
		return c.failCycle(fmt.Errorf("local snapshot failed: %w", err))
	}
	c.setProgress(0.2)

	remoteSnap, err := c.backend.FetchAll(ctx)
	if err != nil {
		return c.failCycle(fmt.Errorf("remote snapshot failed: %w", err))
	}
	c.setProgress(0.4)

	result := diff.Diff(local, remoteSnap, diff.Options{TieTolerance: c.cfg.TieTolerance})
	c.setProgress(0.6)

	deferred := make([]models.Conflict, 0)
	for _, cf := range result.Conflicts {
		wasDeferred, err := c.applyStrategy(ctx, cf, c.cfg.DefaultStrategy)
		if err != nil {
			c.logger.Error("conflict resolution failed",
				"record_id", cf.ID(),
				"kind", cf.Kind,
				"error", err)
			continue
		}
		if wasDeferred {
			deferred = append(deferred, cf)
		}
	}
	c.setPendingConflicts(deferred)

	for _, rec := range result.ToUpload {
		c.pushRecord(ctx, rec)
	}
	c.setProgress(0.8)

	for _, rec := range result.ToDownload {
		c.saveLocal(ctx, rec)
	}
	c.setProgress(1.0)

	c.setStatus(Status{State: StateSuccess, LastSuccess: time.Now()})
	c.logger.Info("sync cycle completed",
		"uploads", len(result.ToUpload),
		"downloads", len(result.ToDownload),
		"conflicts", len(result.Conflicts),
		"deferred", len(deferred),
		"duration", time.Since(started))
	return nil
}

// SubmitRecord saves a record locally and pushes it to the backend,
// routing through the offline buffer when connectivity is down. This is
// the write path for edits made between cycles.
func (c *Coordinator) SubmitRecord(ctx context.Context, rec *models.SyncableRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	if err := c.saveLocal(ctx, rec); err != nil {
		return err
	}
	c.pushRecord(ctx, rec)
	return nil
}

// ResolveConflict applies a manual decision to a previously deferred
// conflict and removes it from the pending list. Choosing Defer again
// leaves it pending.
func (c *Coordinator) ResolveConflict(ctx context.Context, recordID string, strategy conflict.Strategy) error {
	c.mu.Lock()
	idx := -1
	for i := range c.pending {
		if c.pending[i].ID() == recordID {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return ErrConflictNotFound
	}
	cf := c.pending[idx]
	c.mu.Unlock()

	wasDeferred, err := c.applyStrategy(ctx, cf, strategy)
	if err != nil {
		return err
	}
	if wasDeferred {
		return nil
	}

	c.mu.Lock()
	remaining := make([]models.Conflict, 0, len(c.pending))
	for _, p := range c.pending {
		if p.ID() != recordID {
			remaining = append(remaining, p)
		}
	}
	c.pending = remaining
	c.mu.Unlock()

	c.notifyConflicts()
	c.logger.Info("conflict resolved manually",
		"record_id", recordID,
		"strategy", strategy)
	return nil
}

// Subscribe registers an observer for status, progress and conflict
// updates.
func (c *Coordinator) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Status returns the current sync status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Progress returns the current cycle progress in [0, 1].
func (c *Coordinator) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// PendingConflicts returns the conflicts awaiting a manual decision.
func (c *Coordinator) PendingConflicts() []models.Conflict {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Conflict(nil), c.pending...)
}

// PendingRetries returns the operations queued for replay.
func (c *Coordinator) PendingRetries() []retry.Operation {
	return c.retryQ.Pending()
}

// PendingOffline returns the operations buffered while offline.
func (c *Coordinator) PendingOffline() []offline.Operation {
	return c.offlineQ.Pending()
}

// applyStrategy resolves one conflict and applies the resulting writes.
func (c *Coordinator) applyStrategy(ctx context.Context, cf models.Conflict, strategy conflict.Strategy) (deferred bool, err error) {
	res, err := conflict.Resolve(cf, strategy)
	if err != nil {
		return false, err
	}
	if res.Deferred {
		return true, nil
	}

	if res.WriteLocal {
		if err := c.saveLocal(ctx, res.Record); err != nil {
			return false, err
		}
	}
	if res.WriteRemote {
		c.pushRecord(ctx, res.Record)
	}
	return false, nil
}

// pushRecord delivers one record to the backend. Known-offline writes are
// buffered; attempted writes that fail transiently go to the retry queue;
// permanent failures are surfaced and dropped.
func (c *Coordinator) pushRecord(ctx context.Context, rec *models.SyncableRecord) {
	description := fmt.Sprintf("upload %s record %s", rec.Kind, rec.ID)

	if !c.monitor.IsOnline() {
		err := c.offlineQ.Enqueue(offline.Operation{
			ID:          rec.ID,
			Description: description,
			Do: func(ctx context.Context) error {
				return c.upsertRemote(ctx, rec)
			},
		})
		if err != nil {
			c.logger.Error("failed to buffer offline write",
				"record_id", rec.ID,
				"error", err)
		}
		return
	}

	if err := c.upsertRemote(ctx, rec); err != nil {
		c.retryQ.Enqueue(retry.Operation{
			ID:          rec.ID,
			Description: description,
			MaxAttempts: c.cfg.RetryMaxAttempts,
			Do: func(ctx context.Context) error {
				return c.upsertRemote(ctx, rec)
			},
			ShouldRetry: remote.IsTransient,
		}, err)
	}
}

// upsertRemote writes one record to the backend under its record lock.
func (c *Coordinator) upsertRemote(ctx context.Context, rec *models.SyncableRecord) error {
	unlock := c.locks.lock(rec.ID)
	defer unlock()
	return c.backend.Upsert(ctx, rec)
}

// saveLocal writes one record to the local store under its record lock.
// Failures are isolated to the record: logged and surfaced, not retried.
func (c *Coordinator) saveLocal(ctx context.Context, rec *models.SyncableRecord) error {
	unlock := c.locks.lock(rec.ID)
	defer unlock()

	if err := c.store.Save(ctx, rec); err != nil {
		c.logger.Error("local write failed",
			"record_id", rec.ID,
			"error", err)
		return err
	}
	return nil
}

func (c *Coordinator) failCycle(err error) error {
	c.setStatus(Status{State: StateError, Err: err})
	c.logger.Error("sync cycle aborted", "error", err)
	return err
}

func (c *Coordinator) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	for _, o := range observers {
		if o.OnStatus != nil {
			o.OnStatus(s)
		}
	}
}

func (c *Coordinator) setProgress(p float64) {
	c.mu.Lock()
	c.progress = p
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	for _, o := range observers {
		if o.OnProgress != nil {
			o.OnProgress(p)
		}
	}
}

func (c *Coordinator) setPendingConflicts(pending []models.Conflict) {
	c.mu.Lock()
	c.pending = pending
	c.mu.Unlock()
	c.notifyConflicts()
}

func (c *Coordinator) notifyConflicts() {
	c.mu.Lock()
	pending := append([]models.Conflict(nil), c.pending...)
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	for _, o := range observers {
		if o.OnConflicts != nil {
			o.OnConflicts(pending)
		}
	}
}
