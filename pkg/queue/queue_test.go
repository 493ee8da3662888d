package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialbase/trialbase/pkg/queue"
)

type testPayload struct {
	Value string `json:"value"`
}

func newTestQueue(t *testing.T) (*queue.MemoryStorage, *queue.Enqueuer) {
	t.Helper()

	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })

	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	return storage, enqueuer
}

func TestEnqueuer_DuplicateKey(t *testing.T) {
	t.Parallel()

	_, enqueuer := newTestQueue(t)
	ctx := context.Background()

	err := enqueuer.Enqueue(ctx, testPayload{Value: "first"}, queue.WithKey("dedupe-1"))
	require.NoError(t, err)

	err = enqueuer.Enqueue(ctx, testPayload{Value: "second"}, queue.WithKey("dedupe-1"))
	assert.ErrorIs(t, err, queue.ErrDuplicateTaskKey)

	// A different key is unaffected.
	err = enqueuer.Enqueue(ctx, testPayload{Value: "third"}, queue.WithKey("dedupe-2"))
	assert.NoError(t, err)
}

func TestEnqueuer_CancelByKey(t *testing.T) {
	t.Parallel()

	_, enqueuer := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, enqueuer.Enqueue(ctx, testPayload{Value: "x"}, queue.WithKey("cancel-me")))
	require.NoError(t, enqueuer.CancelByKey(ctx, "cancel-me"))

	// The key is free again after cancellation.
	assert.NoError(t, enqueuer.Enqueue(ctx, testPayload{Value: "y"}, queue.WithKey("cancel-me")))

	err := enqueuer.CancelByKey(ctx, "never-enqueued")
	assert.ErrorIs(t, err, queue.ErrTaskNotFound)
}

func TestClaimTask_ReleasesKey(t *testing.T) {
	t.Parallel()

	storage, enqueuer := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, enqueuer.Enqueue(ctx, testPayload{Value: "x"},
		queue.WithQueue("jobs"),
		queue.WithKey("rolling-key"),
	))

	task, err := storage.ClaimTask(ctx, uuid.New(), []string{"jobs"}, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, task.Key, "claimed task must not hold the idempotency key")
	assert.Equal(t, queue.TaskStatusProcessing, task.Status)

	// The running handler may schedule a successor under the same key.
	assert.NoError(t, enqueuer.Enqueue(ctx, testPayload{Value: "y"},
		queue.WithQueue("jobs"),
		queue.WithKey("rolling-key"),
	))
}

func TestClaimTask_DelayedTaskNotVisible(t *testing.T) {
	t.Parallel()

	storage, enqueuer := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, enqueuer.Enqueue(ctx, testPayload{Value: "later"},
		queue.WithQueue("jobs"),
		queue.WithDelay(time.Hour),
	))

	_, err := storage.ClaimTask(ctx, uuid.New(), []string{"jobs"}, time.Minute)
	assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
}

func TestClaimTask_PriorityOrdering(t *testing.T) {
	t.Parallel()

	storage, enqueuer := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, enqueuer.Enqueue(ctx, testPayload{Value: "low"},
		queue.WithQueue("jobs"), queue.WithPriority(queue.PriorityLow)))
	require.NoError(t, enqueuer.Enqueue(ctx, testPayload{Value: "high"},
		queue.WithQueue("jobs"), queue.WithPriority(queue.PriorityHigh)))

	first, err := storage.ClaimTask(ctx, uuid.New(), []string{"jobs"}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, queue.PriorityHigh, first.Priority)

	second, err := storage.ClaimTask(ctx, uuid.New(), []string{"jobs"}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, queue.PriorityLow, second.Priority)
}

func TestFailTask_ReschedulesWithBackoff(t *testing.T) {
	t.Parallel()

	storage, enqueuer := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, enqueuer.Enqueue(ctx, testPayload{Value: "flaky"},
		queue.WithQueue("jobs"),
		queue.WithMaxRetries(3),
	))

	task, err := storage.ClaimTask(ctx, uuid.New(), []string{"jobs"}, time.Minute)
	require.NoError(t, err)

	require.NoError(t, storage.FailTask(ctx, task.ID, "temporary failure"))

	// Rescheduled into the future, so an immediate claim finds nothing.
	_, err = storage.ClaimTask(ctx, uuid.New(), []string{"jobs"}, time.Minute)
	assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
}

func TestFailTask_ExhaustedRetriesStaysFailed(t *testing.T) {
	t.Parallel()

	storage, enqueuer := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, enqueuer.Enqueue(ctx, testPayload{Value: "doomed"},
		queue.WithQueue("jobs"),
		queue.WithMaxRetries(1),
	))

	task, err := storage.ClaimTask(ctx, uuid.New(), []string{"jobs"}, time.Minute)
	require.NoError(t, err)

	require.NoError(t, storage.FailTask(ctx, task.ID, "permanent failure"))

	// No retries remain so the task never becomes claimable again.
	_, err = storage.ClaimTask(ctx, uuid.New(), []string{"jobs"}, time.Minute)
	assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)

	// Dead lettering removes it entirely.
	require.NoError(t, storage.MoveToDLQ(ctx, task.ID))
	assert.ErrorIs(t, storage.CompleteTask(ctx, task.ID), queue.ErrTaskNotFound)
}

func TestCompleteTask(t *testing.T) {
	t.Parallel()

	storage, enqueuer := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, enqueuer.Enqueue(ctx, testPayload{Value: "ok"}, queue.WithQueue("jobs")))

	task, err := storage.ClaimTask(ctx, uuid.New(), []string{"jobs"}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, storage.CompleteTask(ctx, task.ID))

	// Completing twice is an error; the task left processing state.
	assert.Error(t, storage.CompleteTask(ctx, task.ID))
}

func TestRetryBackoff(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2*time.Second, queue.RetryBackoff(1))
	assert.Equal(t, 4*time.Second, queue.RetryBackoff(2))
	assert.Equal(t, 8*time.Second, queue.RetryBackoff(3))
	assert.Equal(t, 2*time.Second, queue.RetryBackoff(0), "counts below one clamp to the base delay")
}

func TestWorker_ProcessesTask(t *testing.T) {
	t.Parallel()

	storage, enqueuer := newTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan testPayload, 1)
	worker, err := queue.NewWorker(storage,
		queue.WithQueues("jobs"),
		queue.WithPullInterval(10*time.Millisecond),
	)
	require.NoError(t, err)
	require.NoError(t, worker.RegisterHandler(queue.NewNamedTaskHandler("test.task",
		func(ctx context.Context, p testPayload) error {
			done <- p
			return nil
		})))

	require.NoError(t, enqueuer.Enqueue(ctx, testPayload{Value: "hello"},
		queue.WithQueue("jobs"),
		queue.WithTaskName("test.task"),
	))

	require.NoError(t, worker.Start(ctx))
	t.Cleanup(func() { _ = worker.Stop() })

	select {
	case p := <-done:
		assert.Equal(t, "hello", p.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("task was not processed in time")
	}
}
