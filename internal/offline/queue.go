// Package offline buffers operations created while the backend is known to
// be unreachable. Unlike the retry queue it holds operations that were never
// attempted; they are replayed once, in enqueue order, when connectivity
// returns.
package offline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultCapacity bounds the queue. A full queue refuses new operations
// rather than silently evicting buffered edits.
const DefaultCapacity = 1000

// ErrQueueFull is returned by Enqueue when the buffer is at capacity.
var ErrQueueFull = errors.New("offline queue is full")

// Operation is one buffered write awaiting connectivity.
type Operation struct {
	ID          string // record id the operation targets
	Description string
	CreatedAt   time.Time
	Do          func(ctx context.Context) error
}

// FailureFunc receives operations that failed on replay. They are handed
// off (normally to the retry queue) instead of being re-enqueued here, so
// attempt bookkeeping lives in one place.
type FailureFunc func(ctx context.Context, op Operation, err error)

// Queue is a FIFO buffer of never-attempted operations. FIFO preserves the
// causal ordering of a user's offline edits.
type Queue struct {
	capacity  int
	logger    *slog.Logger
	onFailure FailureFunc

	mu  sync.Mutex
	ops []Operation
}

// New creates an offline buffer. capacity <= 0 selects DefaultCapacity.
// onFailure may be nil, in which case replay failures are only logged.
func New(capacity int, logger *slog.Logger, onFailure FailureFunc) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		capacity:  capacity,
		logger:    logger,
		onFailure: onFailure,
	}
}

// Enqueue buffers an operation for replay on reconnect.
func (q *Queue) Enqueue(op Operation) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) >= q.capacity {
		q.logger.Error("offline queue full, rejecting operation",
			"record_id", op.ID,
			"description", op.Description,
			"capacity", q.capacity)
		return ErrQueueFull
	}

	q.ops = append(q.ops, op)
	q.logger.Info("operation buffered while offline",
		"record_id", op.ID,
		"description", op.Description,
		"queue_depth", len(q.ops))
	return nil
}

// Len returns the number of buffered operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Pending returns a copy of the buffered operations, oldest first.
func (q *Queue) Pending() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Operation(nil), q.ops...)
}

// Flush attempts every buffered operation exactly once, in enqueue order.
// Failures go to the failure hook and are not re-enqueued. Returns the
// number of operations that succeeded.
func (q *Queue) Flush(ctx context.Context) int {
	q.mu.Lock()
	batch := q.ops
	q.ops = nil
	q.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	q.logger.Info("flushing offline queue", "count", len(batch))

	succeeded := 0
	for i, op := range batch {
		if ctx.Err() != nil {
			// Shutdown mid-flush: put the untried remainder back in
			// front of anything enqueued meanwhile.
			q.mu.Lock()
			q.ops = append(append([]Operation(nil), batch[i:]...), q.ops...)
			q.mu.Unlock()
			return succeeded
		}

		if err := op.Do(ctx); err != nil {
			q.logger.Warn("offline replay failed, handing off",
				"record_id", op.ID,
				"description", op.Description,
				"error", err)
			if q.onFailure != nil {
				q.onFailure(ctx, op, err)
			}
			continue
		}
		succeeded++
	}

	q.logger.Info("offline queue flushed",
		"succeeded", succeeded,
		"failed", len(batch)-succeeded)
	return succeeded
}
