package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/pkg/database"
)

// Task is one claimed unit of work
type Task struct {
	ID       int64
	RunID    string
	Request  contracts.RunRequest
	Attempts int
}

// maxAttempts 인프라 실패 재시도 상한. 넘으면 failed로 고정.
const maxAttempts = 3

// Queue is the Postgres-backed screener run queue
// ⭐ SSOT: 런 큐 조작은 여기서만
//
// 워커 여러 개가 같은 큐를 바라본다. Claim은 FOR UPDATE SKIP LOCKED로
// 행을 집으므로 두 워커가 같은 런을 중복 실행할 수 없다.
type Queue struct {
	db  *database.DB
	log zerolog.Logger
}

// NewQueue creates a run queue over the given database
func NewQueue(db *database.DB, log zerolog.Logger) *Queue {
	return &Queue{
		db:  db,
		log: log.With().Str("component", "worker.queue").Logger(),
	}
}

// Enqueue adds a run request to the queue
func (q *Queue) Enqueue(ctx context.Context, runID string, req contracts.RunRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal run request: %w", err)
	}

	_, err = q.db.Pool.Exec(ctx, `
		INSERT INTO screener.run_queue (run_id, request, state, attempts, created_at, updated_at)
		VALUES ($1, $2, 'queued', 0, now(), now())
	`, runID, payload)
	if err != nil {
		return fmt.Errorf("enqueue run %s: %w", runID, err)
	}

	q.log.Info().Str("run_id", runID).Msg("run enqueued")
	return nil
}

// Claim atomically takes the oldest queued run, or returns nil when idle
func (q *Queue) Claim(ctx context.Context, workerID string) (*Task, error) {
	tx, err := q.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var task Task
	var payload []byte
	err = tx.QueryRow(ctx, `
		SELECT id, run_id, request, attempts
		FROM screener.run_queue
		WHERE state = 'queued'
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&task.ID, &task.RunID, &payload, &task.Attempts)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select queued run: %w", err)
	}

	if err := json.Unmarshal(payload, &task.Request); err != nil {
		return nil, fmt.Errorf("unmarshal request for run %s: %w", task.RunID, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE screener.run_queue
		SET state = 'claimed', claimed_by = $2, claimed_at = now(), attempts = attempts + 1, updated_at = now()
		WHERE id = $1
	`, task.ID, workerID)
	if err != nil {
		return nil, fmt.Errorf("mark run %s claimed: %w", task.RunID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim for run %s: %w", task.RunID, err)
	}

	task.Attempts++
	return &task, nil
}

// Complete marks a claimed run as done
func (q *Queue) Complete(ctx context.Context, taskID int64) error {
	_, err := q.db.Pool.Exec(ctx, `
		UPDATE screener.run_queue SET state = 'done', updated_at = now() WHERE id = $1
	`, taskID)
	if err != nil {
		return fmt.Errorf("complete task %d: %w", taskID, err)
	}
	return nil
}

// Fail records a failure; infra failures below the attempt cap go back to queued
func (q *Queue) Fail(ctx context.Context, task *Task, reason string, retryable bool) error {
	state := "failed"
	if retryable && task.Attempts < maxAttempts {
		state = "queued"
	}

	_, err := q.db.Pool.Exec(ctx, `
		UPDATE screener.run_queue
		SET state = $2, last_error = $3, updated_at = now()
		WHERE id = $1
	`, task.ID, state, reason)
	if err != nil {
		return fmt.Errorf("fail task %d: %w", task.ID, err)
	}

	q.log.Warn().
		Str("run_id", task.RunID).
		Str("state", state).
		Int("attempts", task.Attempts).
		Str("reason", reason).
		Msg("run failed")
	return nil
}

// RequeueStuck returns claimed-but-dead runs to the queue
// 워커가 죽으면 claimed 행이 남는다. hard limit보다 오래 claimed인 행은
// 실행 중일 수 없으므로 다시 집어가게 한다.
func (q *Queue) RequeueStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := q.db.Pool.Exec(ctx, `
		UPDATE screener.run_queue
		SET state = 'queued', claimed_by = NULL, claimed_at = NULL, updated_at = now()
		WHERE state = 'claimed' AND claimed_at < now() - $1::interval AND attempts < $2
	`, fmt.Sprintf("%d seconds", int(olderThan.Seconds())), maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("requeue stuck runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeFinished deletes old terminal queue rows
func (q *Queue) PurgeFinished(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := q.db.Pool.Exec(ctx, `
		DELETE FROM screener.run_queue
		WHERE state IN ('done', 'failed') AND updated_at < now() - $1::interval
	`, fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("purge finished runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
