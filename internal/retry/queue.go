// Package retry holds failed outbound operations and replays them on a
// timer with per-operation bounded attempts. Replay runs at a flat interval
// rather than exponential backoff so total queue-processing latency stays
// bounded.
package retry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Defaults applied to operations that don't specify their own bounds.
const (
	DefaultInterval    = 30 * time.Second
	DefaultMaxAttempts = 5
)

// Operation is one failed outbound write awaiting replay.
type Operation struct {
	ID          string // record id the operation targets
	Description string
	CreatedAt   time.Time
	Attempts    int
	MaxAttempts int

	// Do performs the operation once.
	Do func(ctx context.Context) error

	// ShouldRetry decides whether a failure is worth another attempt.
	// Permanent failures (auth, malformed payload) must return false.
	ShouldRetry func(err error) bool
}

// ExhaustedFunc is invoked when an operation runs out of attempts and its
// write is dropped. This is a data-loss boundary: the queue always logs it,
// and callers surface it to the user.
type ExhaustedFunc func(op Operation, err error)

// Queue replays failed operations. Operations are attempted sequentially
// within one tick so writes to the same record never race each other.
type Queue struct {
	interval    time.Duration
	logger      *slog.Logger
	onExhausted ExhaustedFunc

	mu  sync.Mutex
	ops []*Operation

	runMu   sync.Mutex // serializes ticks
	stop    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New creates a replay queue. onExhausted may be nil, in which case dropped
// writes are only logged.
func New(interval time.Duration, logger *slog.Logger, onExhausted ExhaustedFunc) *Queue {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Queue{
		interval:    interval,
		logger:      logger,
		onExhausted: onExhausted,
	}
}

// Enqueue adds a failed operation for replay. The cause is checked against
// the operation's retry predicate first: permanent failures are refused,
// reported through the exhaustion hook, and never attempted again.
// Returns true if the operation was accepted.
func (q *Queue) Enqueue(op Operation, cause error) bool {
	if op.MaxAttempts <= 0 {
		op.MaxAttempts = DefaultMaxAttempts
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}

	if op.ShouldRetry != nil && !op.ShouldRetry(cause) {
		q.logger.Error("operation failed permanently, not retrying",
			"record_id", op.ID,
			"description", op.Description,
			"error", cause)
		if q.onExhausted != nil {
			q.onExhausted(op, cause)
		}
		return false
	}

	q.mu.Lock()
	q.ops = append(q.ops, &op)
	depth := len(q.ops)
	q.mu.Unlock()

	q.logger.Info("operation queued for retry",
		"record_id", op.ID,
		"description", op.Description,
		"queue_depth", depth,
		"error", cause)
	return true
}

// Len returns the number of pending operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Pending returns a copy of the queued operations, oldest first.
func (q *Queue) Pending() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Operation, 0, len(q.ops))
	for _, op := range q.ops {
		out = append(out, *op)
	}
	return out
}

// Tick attempts every pending operation once, sequentially and in order.
// Succeeded operations leave the queue; failed ones stay with an
// incremented attempt count until they exhaust MaxAttempts.
func (q *Queue) Tick(ctx context.Context) {
	q.runMu.Lock()
	defer q.runMu.Unlock()

	q.mu.Lock()
	batch := q.ops
	q.ops = nil
	q.mu.Unlock()

	var remaining []*Operation
	for _, op := range batch {
		if ctx.Err() != nil {
			remaining = append(remaining, op)
			continue
		}

		err := op.Do(ctx)
		if err == nil {
			q.logger.Info("retried operation succeeded",
				"record_id", op.ID,
				"description", op.Description,
				"attempts", op.Attempts+1)
			continue
		}

		op.Attempts++
		retryable := op.ShouldRetry == nil || op.ShouldRetry(err)

		if !retryable || op.Attempts >= op.MaxAttempts {
			q.logger.Error("retry exhausted, dropping operation",
				"record_id", op.ID,
				"description", op.Description,
				"attempts", op.Attempts,
				"max_attempts", op.MaxAttempts,
				"error", err)
			if q.onExhausted != nil {
				q.onExhausted(*op, err)
			}
			continue
		}

		q.logger.Warn("retry attempt failed",
			"record_id", op.ID,
			"attempts", op.Attempts,
			"max_attempts", op.MaxAttempts,
			"error", err)
		remaining = append(remaining, op)
	}

	q.mu.Lock()
	// Operations enqueued during the tick follow the replayed ones.
	q.ops = append(remaining, q.ops...)
	q.mu.Unlock()
}

// Start launches the replay timer. Stop shuts it down.
func (q *Queue) Start(ctx context.Context) {
	q.runMu.Lock()
	defer q.runMu.Unlock()

	if q.started {
		return
	}
	q.started = true
	q.stop = make(chan struct{})

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		ticker := time.NewTicker(q.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				q.Tick(ctx)
			case <-q.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the replay timer. Pending operations stay queued.
func (q *Queue) Stop() {
	q.runMu.Lock()
	if !q.started {
		q.runMu.Unlock()
		return
	}
	q.started = false
	close(q.stop)
	q.runMu.Unlock()

	q.wg.Wait()
}
