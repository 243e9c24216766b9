package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wonny/argos/internal/contracts"
)

// runQueue is the claim/ack surface of the run queue
type runQueue interface {
	Claim(ctx context.Context, workerID string) (*Task, error)
	Complete(ctx context.Context, taskID int64) error
	Fail(ctx context.Context, task *Task, reason string, retryable bool) error
}

// runner executes one screener run (screener.Orchestrator)
type runner interface {
	Run(ctx context.Context, runID string, req contracts.RunRequest, asOf time.Time, sink contracts.ProgressSink) (*contracts.RunResult, error)
}

// Config worker pool settings
type Config struct {
	Concurrency int
	PollEvery   time.Duration
}

// Worker pulls screener runs from the queue and executes them
// ⭐ SSOT: 런 실행 수명주기(클레임→상태 전파→완료/실패)는 여기서만
//
// 동시성 모델: 워커 슬롯 N개가 각자 런 하나를 통째로 소유한다. 런 내부는
// 순차이고, 슬롯 간에 공유하는 건 큐와 상태 저장소뿐이다.
type Worker struct {
	queue   runQueue
	runner  runner
	status  contracts.RunStatusStore
	config  Config
	log     zerolog.Logger
	baseID  string
	wg      sync.WaitGroup
}

// New creates a worker pool
func New(queue runQueue, r runner, status contracts.RunStatusStore, cfg Config, log zerolog.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	return &Worker{
		queue:  queue,
		runner: r,
		status: status,
		config: cfg,
		log:    log.With().Str("component", "worker").Logger(),
		baseID: uuid.NewString()[:8],
	}
}

// Start launches the worker slots; blocks until ctx is cancelled and
// all in-flight runs have finished
func (w *Worker) Start(ctx context.Context) {
	w.log.Info().Int("concurrency", w.config.Concurrency).Msg("worker pool starting")

	for i := 0; i < w.config.Concurrency; i++ {
		workerID := fmt.Sprintf("%s-%d", w.baseID, i)
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.loop(ctx, workerID)
		}()
	}

	<-ctx.Done()
	w.wg.Wait()
	w.log.Info().Msg("worker pool stopped")
}

func (w *Worker) loop(ctx context.Context, workerID string) {
	ticker := time.NewTicker(w.config.PollEvery)
	defer ticker.Stop()

	for {
		task, err := w.queue.Claim(ctx, workerID)
		if err != nil {
			w.log.Error().Err(err).Str("worker_id", workerID).Msg("queue claim failed")
		}
		if task != nil {
			w.execute(ctx, workerID, task)
			// 큐에 일이 더 있을 수 있으니 바로 다음 클레임 시도
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// execute runs one claimed task through the run state machine
func (w *Worker) execute(ctx context.Context, workerID string, task *Task) {
	log := w.log.With().Str("worker_id", workerID).Str("run_id", task.RunID).Logger()
	log.Info().Int("attempt", task.Attempts).Msg("run claimed")

	w.putStatus(ctx, &contracts.RunStatus{
		RunID: task.RunID, State: contracts.RunRunning, Progress: 0,
	})

	// 진행 이벤트를 상태 저장소로 중계
	sink := contracts.ProgressFunc(func(event contracts.ProgressEvent) {
		w.putStatus(ctx, &contracts.RunStatus{
			RunID:    event.RunID,
			State:    contracts.RunRunning,
			Phase:    event.Phase,
			Progress: event.Progress,
		})
	})

	result, err := w.runner.Run(ctx, task.RunID, task.Request, time.Now().UTC(), sink)
	if err != nil {
		// 런 검증 오류는 재시도해도 똑같이 실패한다. 인프라성 오류만 재큐.
		retryable := !errors.Is(err, context.Canceled) && result == nil
		w.putStatus(ctx, &contracts.RunStatus{
			RunID: task.RunID, State: contracts.RunFailed, Result: result, Error: err.Error(),
		})
		if failErr := w.queue.Fail(ctx, task, err.Error(), retryable); failErr != nil {
			log.Error().Err(failErr).Msg("queue fail mark failed")
		}
		return
	}

	w.putStatus(ctx, &contracts.RunStatus{
		RunID: task.RunID, State: contracts.RunSucceeded, Progress: 100, Result: result,
	})
	if err := w.queue.Complete(ctx, task.ID); err != nil {
		log.Error().Err(err).Msg("queue complete mark failed")
	}

	log.Info().
		Int("opportunities", len(result.Opportunities)).
		Bool("partial", result.Partial).
		Msg("run succeeded")
}

func (w *Worker) putStatus(ctx context.Context, status *contracts.RunStatus) {
	// 셧다운으로 ctx가 죽어도 종료 상태는 남겨야 한다
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	// 상태 저장 실패로 런을 죽이지 않는다. 다음 업데이트가 덮어쓴다.
	if err := w.status.Put(ctx, status); err != nil {
		w.log.Warn().Err(err).Str("run_id", status.RunID).Msg("status put failed")
	}
}
