package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/argos/internal/worker"
)

// QueueMaintenance keeps the run queue healthy
//
// 워커가 죽으면서 남긴 claimed 행을 재큐하고, 오래된 종료 행을 지운다.
type QueueMaintenance struct {
	queue      *worker.Queue
	staleAfter time.Duration // claimed 행을 죽은 것으로 간주하는 시간
	purgeAfter time.Duration // 종료 행 보존 기간
	schedule   string
	log        zerolog.Logger
}

// NewQueueMaintenance creates the queue maintenance job
func NewQueueMaintenance(queue *worker.Queue, staleAfter, purgeAfter time.Duration, schedule string, log zerolog.Logger) *QueueMaintenance {
	return &QueueMaintenance{
		queue:      queue,
		staleAfter: staleAfter,
		purgeAfter: purgeAfter,
		schedule:   schedule,
		log:        log.With().Str("component", "jobs.queue_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *QueueMaintenance) Name() string {
	return "queue-maintenance"
}

// Schedule returns the cron expression
func (j *QueueMaintenance) Schedule() string {
	return j.schedule
}

// Run requeues stuck runs and purges old terminal rows
func (j *QueueMaintenance) Run(ctx context.Context) error {
	requeued, err := j.queue.RequeueStuck(ctx, j.staleAfter)
	if err != nil {
		return fmt.Errorf("requeue stuck runs: %w", err)
	}

	purged, err := j.queue.PurgeFinished(ctx, j.purgeAfter)
	if err != nil {
		return fmt.Errorf("purge finished runs: %w", err)
	}

	j.log.Info().
		Int64("requeued", requeued).
		Int64("purged", purged).
		Msg("queue maintenance finished")
	return nil
}
