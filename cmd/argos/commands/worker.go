package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/argos/internal/worker"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "스크리너 런 워커",
	Long: `큐에 쌓인 스크리너 런을 실행하는 백그라운드 워커입니다.

이 워커는:
- PostgreSQL run queue에서 런 클레임 (FOR UPDATE SKIP LOCKED)
- 학습 → 예측 파이프라인 실행, 진행률을 상태 저장소로 전파
- 재시도 가능한 실패는 큐로 반환 (최대 3회)
- Graceful shutdown 지원 (진행 중인 런은 완료까지 대기)

Example:
  go run ./cmd/argos worker
  go run ./cmd/argos worker --concurrency 4`,
	RunE: runWorker,
}

var (
	// Worker flags
	workerConcurrency int
)

func init() {
	rootCmd.AddCommand(workerCmd)

	// Flags
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "워커 슬롯 수 (기본: config)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argos Run Worker ===")

	// 1. Wire the engine
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	concurrency := eng.cfg.Screener.WorkerConcurrency
	if workerConcurrency > 0 {
		concurrency = workerConcurrency
	}

	fmt.Printf("\nConcurrency: %d slots\n", concurrency)
	fmt.Println("Queue: PostgreSQL (screener.run_queue)")
	fmt.Println("\nPress Ctrl+C to stop gracefully")

	// 2. Create worker pool
	pool := worker.New(eng.queue, eng.orchestrator, eng.status, worker.Config{
		Concurrency: concurrency,
		PollEvery:   eng.cfg.Screener.WorkerPollEvery,
	}, eng.log.Zerolog())

	// 3. Run until interrupted; Start blocks and drains in-flight runs
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool.Start(ctx)

	fmt.Println("\n✅ Worker stopped gracefully")
	return nil
}
