package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("connection reset")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func alwaysRetry(error) bool { return true }

func TestEnqueueAndTick_Success(t *testing.T) {
	q := New(time.Minute, discardLogger(), nil)

	var attempts int
	ok := q.Enqueue(Operation{
		ID:          "rec-1",
		Description: "upload rec-1",
		Do: func(ctx context.Context) error {
			attempts++
			return nil
		},
		ShouldRetry: alwaysRetry,
	}, errTransient)

	require.True(t, ok)
	require.Equal(t, 1, q.Len())

	q.Tick(context.Background())

	assert.Equal(t, 1, attempts)
	assert.Zero(t, q.Len())
}

// An operation with MaxAttempts = N is attempted at most N times, then
// dropped and never retried again.
func TestRetryBound(t *testing.T) {
	var dropped []Operation
	q := New(time.Minute, discardLogger(), func(op Operation, err error) {
		dropped = append(dropped, op)
	})

	var attempts int
	q.Enqueue(Operation{
		ID:          "rec-1",
		MaxAttempts: 3,
		Do: func(ctx context.Context) error {
			attempts++
			return errTransient
		},
		ShouldRetry: alwaysRetry,
	}, errTransient)

	for i := 0; i < 10; i++ {
		q.Tick(context.Background())
	}

	assert.Equal(t, 3, attempts)
	assert.Zero(t, q.Len())
	require.Len(t, dropped, 1)
	assert.Equal(t, 3, dropped[0].Attempts)
}

func TestEnqueue_RefusesPermanentFailures(t *testing.T) {
	var dropped []Operation
	q := New(time.Minute, discardLogger(), func(op Operation, err error) {
		dropped = append(dropped, op)
	})

	ok := q.Enqueue(Operation{
		ID:          "rec-1",
		Do:          func(ctx context.Context) error { return nil },
		ShouldRetry: func(error) bool { return false },
	}, errors.New("malformed payload"))

	assert.False(t, ok)
	assert.Zero(t, q.Len())
	assert.Len(t, dropped, 1, "refused writes surface through the exhaustion hook")
}

func TestTick_PermanentFailureStopsRetrying(t *testing.T) {
	errPermanent := errors.New("unauthorized")

	var dropped []Operation
	q := New(time.Minute, discardLogger(), func(op Operation, err error) {
		dropped = append(dropped, op)
	})

	var attempts int
	q.Enqueue(Operation{
		ID:          "rec-1",
		MaxAttempts: 10,
		Do: func(ctx context.Context) error {
			attempts++
			return errPermanent
		},
		ShouldRetry: func(err error) bool { return !errors.Is(err, errPermanent) },
	}, errTransient)

	q.Tick(context.Background())
	q.Tick(context.Background())

	assert.Equal(t, 1, attempts)
	assert.Zero(t, q.Len())
	assert.Len(t, dropped, 1)
}

func TestTick_SequentialInOrder(t *testing.T) {
	q := New(time.Minute, discardLogger(), nil)

	var order []string
	for _, id := range []string{"a", "b", "c"} {
		id := id
		q.Enqueue(Operation{
			ID: id,
			Do: func(ctx context.Context) error {
				order = append(order, id)
				return nil
			},
			ShouldRetry: alwaysRetry,
		}, errTransient)
	}

	q.Tick(context.Background())
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTick_FailedOperationKeepsPosition(t *testing.T) {
	q := New(time.Minute, discardLogger(), nil)

	fail := true
	q.Enqueue(Operation{
		ID:          "flaky",
		MaxAttempts: 5,
		Do: func(ctx context.Context) error {
			if fail {
				return errTransient
			}
			return nil
		},
		ShouldRetry: alwaysRetry,
	}, errTransient)

	q.Tick(context.Background())
	require.Equal(t, 1, q.Len())

	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)

	fail = false
	q.Tick(context.Background())
	assert.Zero(t, q.Len())
}

func TestStartStop(t *testing.T) {
	q := New(10*time.Millisecond, discardLogger(), nil)

	var mu sync.Mutex
	attempts := 0
	q.Enqueue(Operation{
		ID:          "rec-1",
		MaxAttempts: 1,
		Do: func(ctx context.Context) error {
			mu.Lock()
			attempts++
			mu.Unlock()
			return nil
		},
		ShouldRetry: alwaysRetry,
	}, errTransient)

	q.Start(context.Background())
	defer q.Stop()

	require.Eventually(t, func() bool {
		return q.Len() == 0
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, attempts)
}

func TestStop_Idempotent(t *testing.T) {
	q := New(time.Minute, discardLogger(), nil)
	q.Start(context.Background())
	q.Stop()
	q.Stop()
}
