package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/argos/internal/scheduler"
	"github.com/wonny/argos/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `주기 작업 스케줄러를 시작하거나 작업을 관리합니다.

등록되는 작업:
- validation-sweep: 매일 오후 6시 (미검증 기회 백테스트)
- model-staleness: 매일 오전 5시 30분 (디코드 안 되는 활성 모델 비활성화)
- queue-maintenance: 10분마다 (죽은 워커의 런 재큐잉, 오래된 런 정리)

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/argos scheduler start
  go run ./cmd/argos scheduler list
  go run ./cmd/argos scheduler run validation-sweep`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// initScheduler wires the scheduler with its jobs
func initScheduler() (*scheduler.Scheduler, *engine, error) {
	eng, err := newEngine()
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(eng.log.Zerolog())

	sweep := jobs.NewValidationSweep(
		eng.validator,
		eng.oppStore,
		eng.cfg.Validation.Periods,
		"0 0 18 * * *", // 매일 18:00
		eng.log.Zerolog(),
	)
	if err := sched.AddJob(sweep); err != nil {
		eng.close()
		return nil, nil, fmt.Errorf("register validation sweep: %w", err)
	}

	staleness := jobs.NewModelStaleness(
		eng.registry,
		"0 30 5 * * *", // 매일 05:30
		eng.log.Zerolog(),
	)
	if err := sched.AddJob(staleness); err != nil {
		eng.close()
		return nil, nil, fmt.Errorf("register model staleness check: %w", err)
	}

	// 하드 리밋보다 오래 claimed면 워커가 죽은 것
	maintenance := jobs.NewQueueMaintenance(
		eng.queue,
		eng.cfg.Screener.HardTimeLimit+time.Minute,
		7*24*time.Hour,
		"0 */10 * * * *", // 10분마다
		eng.log.Zerolog(),
	)
	if err := sched.AddJob(maintenance); err != nil {
		eng.close()
		return nil, nil, fmt.Errorf("register queue maintenance: %w", err)
	}

	return sched, eng, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argos Scheduler ===")

	sched, eng, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer eng.close()

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.Jobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, eng, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer eng.close()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.Jobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	sched, eng, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer eng.close()

	fmt.Printf("Running job: %s\n", jobName)
	if err := sched.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	// RunJob은 비동기라 이력에 결과가 남을 때까지 잠시 대기
	deadline := time.Now().Add(5 * time.Minute)
	for time.Now().Before(deadline) {
		history, err := sched.History(jobName)
		if err == nil {
			if last := history.Last(); last != nil {
				if last.Success {
					fmt.Printf("✅ Job finished in %s\n", last.Duration)
				} else {
					fmt.Printf("❌ Job failed: %s\n", last.Error)
				}
				return nil
			}
		}
		time.Sleep(time.Second)
	}

	fmt.Println("⚠️  Job still running, check logs")
	return nil
}
