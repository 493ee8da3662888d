package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialbase/trialbase/pkg/pg"
	"github.com/trialbase/trialbase/pkg/queue"
)

// QueueStore implements queue.EnqueuerRepository and queue.WorkerRepository
// on PostgreSQL. Claiming relies on FOR UPDATE SKIP LOCKED so that multiple
// worker processes can share the same tables without double delivery.
type QueueStore struct {
	pool *pgxpool.Pool
}

// NewQueueStore creates a PostgreSQL-backed task queue repository.
func NewQueueStore(pool *pgxpool.Pool) *QueueStore {
	return &QueueStore{pool: pool}
}

const taskColumns = `id, queue, task_name, key, payload, status, priority,
	retry_count, max_retries, scheduled_at, locked_until, locked_by, processed_at,
	error, created_at`

// CreateTask implements queue.EnqueuerRepository. A partial unique index on
// key (pending tasks only) maps to ErrDuplicateTaskKey.
func (s *QueueStore) CreateTask(ctx context.Context, task *queue.Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		task.ID, task.Queue, task.TaskName, task.Key, task.Payload, task.Status,
		task.Priority, task.RetryCount, task.MaxRetries, task.ScheduledAt,
		task.LockedUntil, task.LockedBy, task.ProcessedAt, task.Error, task.CreatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return queue.ErrDuplicateTaskKey
		}
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// CancelByKey implements queue.EnqueuerRepository. Only pending tasks carry
// a key, so in-flight tasks are never cancelled.
func (s *QueueStore) CancelByKey(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM tasks
		WHERE key = $1 AND status = $2`,
		key, queue.TaskStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel task by key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrTaskNotFound
	}
	return nil
}

// ClaimTask implements queue.WorkerRepository. The claimed task's key is
// cleared so a handler may enqueue a successor under the same key while the
// current task is still processing.
func (s *QueueStore) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now()
	row := tx.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE queue = ANY($1)
		  AND status = $2
		  AND scheduled_at <= $3
		  AND (locked_until IS NULL OR locked_until <= $3)
		ORDER BY priority DESC, scheduled_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
		queues, queue.TaskStatusPending, now,
	)
	task, err := scanTask(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, queue.ErrNoTaskToClaim
		}
		return nil, err
	}

	lockedUntil := now.Add(lockDuration)
	_, err = tx.Exec(ctx, `
		UPDATE tasks
		SET status = $2, key = NULL, locked_until = $3, locked_by = $4
		WHERE id = $1`,
		task.ID, queue.TaskStatusProcessing, lockedUntil, workerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock task: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", err)
	}

	task.Status = queue.TaskStatusProcessing
	task.Key = ""
	task.LockedUntil = &lockedUntil
	task.LockedBy = &workerID
	return task, nil
}

// CompleteTask implements queue.WorkerRepository.
func (s *QueueStore) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET status = $2, processed_at = $3, locked_until = NULL, locked_by = NULL
		WHERE id = $1 AND status = $4`,
		taskID, queue.TaskStatusCompleted, time.Now(), queue.TaskStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrTaskNotFound
	}
	return nil
}

// FailTask implements queue.WorkerRepository. While retries remain the task
// is rescheduled with exponential backoff; otherwise it stays failed until
// the worker moves it to the dead letter queue.
func (s *QueueStore) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET retry_count = retry_count + 1,
		    error = $2,
		    locked_until = NULL,
		    locked_by = NULL,
		    status = CASE WHEN retry_count + 1 >= max_retries THEN $3 ELSE $4 END,
		    scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at
		        ELSE now() + make_interval(secs => $5 * power(2, retry_count)) END
		WHERE id = $1 AND status = $6`,
		taskID, errorMsg, queue.TaskStatusFailed, queue.TaskStatusPending,
		queue.RetryBaseDelay.Seconds(), queue.TaskStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to fail task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrTaskNotFound
	}
	return nil
}

// MoveToDLQ implements queue.WorkerRepository. The original row is removed
// and a dead letter entry is retained for manual inspection.
func (s *QueueStore) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin dlq transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	task, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return queue.ErrTaskNotFound
		}
		return err
	}

	errMsg := ""
	if task.Error != nil {
		errMsg = *task.Error
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO dead_tasks (id, task_id, queue, task_name, key, payload, priority, error, retry_count, failed_at, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11)`,
		uuid.New(), task.ID, task.Queue, task.TaskName, task.Key, task.Payload,
		task.Priority, errMsg, task.RetryCount, time.Now(), task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dead task: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit dlq transaction: %w", err)
	}
	return nil
}

// ExtendLock implements queue.WorkerRepository.
func (s *QueueStore) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET locked_until = $2
		WHERE id = $1 AND status = $3`,
		taskID, time.Now().Add(duration), queue.TaskStatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to extend task lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrTaskNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*queue.Task, error) {
	var (
		task queue.Task
		key  *string
	)
	err := row.Scan(
		&task.ID, &task.Queue, &task.TaskName, &key, &task.Payload, &task.Status,
		&task.Priority, &task.RetryCount, &task.MaxRetries, &task.ScheduledAt,
		&task.LockedUntil, &task.LockedBy, &task.ProcessedAt, &task.Error, &task.CreatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	if key != nil {
		task.Key = *key
	}
	return &task, nil
}
