package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/argos/internal/contracts"
)

// screenerCmd represents the screener command
var screenerCmd = &cobra.Command{
	Use:   "screener",
	Short: "기회 스크리너",
	Long: `ML 기반 기회 스크리너를 실행합니다.

Subcommands:
  run  - 스크리너 런을 동기 실행 (학습 → 예측 → 기회 저장)

Example:
  go run ./cmd/argos screener run --target-return 5 --horizon 10
  go run ./cmd/argos screener run --target-return 3 --horizon 5 --risk aggressive
  go run ./cmd/argos screener run --target-return 5 --horizon 10 --symbols AAPL,MSFT`,
}

// screenerRunCmd represents the run subcommand
var screenerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "스크리너 런 동기 실행",
	Long: `큐를 거치지 않고 스크리너 런을 현재 프로세스에서 실행합니다.

종목별로 목표 설정에 맞는 라벨을 만들고, 분류기 앙상블을 학습한 뒤,
신뢰도 임계값을 넘는 양성 예측만 기회로 저장합니다.
종목 단위 실패는 런을 중단시키지 않고 결과에 축적됩니다.`,
	RunE: runScreenerOnce,
}

var (
	// Screener flags
	screenerTargetReturn float64
	screenerHorizon      int
	screenerRisk         string
	screenerThreshold    float64
	screenerSymbols      string
)

func init() {
	rootCmd.AddCommand(screenerCmd)
	screenerCmd.AddCommand(screenerRunCmd)

	// Flags
	screenerRunCmd.Flags().Float64Var(&screenerTargetReturn, "target-return", 5.0, "목표 수익률 (%)")
	screenerRunCmd.Flags().IntVar(&screenerHorizon, "horizon", 10, "목표 보유 기간 (거래일)")
	screenerRunCmd.Flags().StringVar(&screenerRisk, "risk", "moderate", "리스크 성향 (conservative|moderate|aggressive)")
	screenerRunCmd.Flags().Float64Var(&screenerThreshold, "threshold", 0, "신뢰도 임계값 override (0이면 리스크 성향 기본값)")
	screenerRunCmd.Flags().StringVar(&screenerSymbols, "symbols", "", "쉼표 구분 종목 리스트 (비면 저장된 유니버스)")
}

func runScreenerOnce(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argos Screener Run ===")

	// 1. Wire the engine
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	// 2. Build the run request from flags
	req := contracts.RunRequest{
		TargetReturnPct:     screenerTargetReturn,
		HorizonDays:         screenerHorizon,
		RiskTolerance:       contracts.RiskTolerance(screenerRisk),
		ConfidenceThreshold: screenerThreshold,
	}
	if screenerSymbols != "" {
		for _, s := range strings.Split(screenerSymbols, ",") {
			if s = strings.TrimSpace(s); s != "" {
				req.Universe = append(req.Universe, s)
			}
		}
	}

	runID := uuid.NewString()
	fmt.Printf("\nRun ID:     %s\n", runID)
	fmt.Printf("Target:     +%.1f%% in %d trading days\n", req.TargetReturnPct, req.HorizonDays)
	fmt.Printf("Risk:       %s (threshold %.2f)\n\n", req.RiskTolerance, req.Threshold())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Execute synchronously, printing progress as it comes
	sink := contracts.ProgressFunc(func(event contracts.ProgressEvent) {
		fmt.Printf("  [%3d%%] %-18s %s\n", event.Progress, event.Phase, event.Message)
	})

	result, err := eng.orchestrator.Run(ctx, runID, req, time.Now().UTC(), sink)
	if err != nil && result == nil {
		return fmt.Errorf("screener run: %w", err)
	}

	// 4. Print the result
	fmt.Printf("\nUniverse:       %d symbols\n", result.Universe)
	fmt.Printf("Trained models: %d\n", result.TrainedModels)
	fmt.Printf("Opportunities:  %d\n", len(result.Opportunities))
	fmt.Printf("Symbol errors:  %d\n", len(result.Errors))
	if result.Partial {
		fmt.Println("⚠️  Partial result: soft time limit reached before all symbols were processed")
	}

	if len(result.Opportunities) > 0 {
		fmt.Println("\n  ID      Symbol    Conf    Composite  Rec")
		for _, opp := range result.Opportunities {
			fmt.Printf("  %-7d %-9s %.3f   %.3f      %s\n",
				opp.ID, opp.Symbol, opp.ConfidenceLevel, opp.CompositeScore, opp.Recommendation)
		}
	}

	for _, symErr := range result.Errors {
		fmt.Printf("  ⚠️  %s (%s): %s\n", symErr.Symbol, symErr.Phase, symErr.Reason)
	}

	fmt.Printf("\nDuration: %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	if err != nil {
		return fmt.Errorf("screener run: %w", err)
	}
	return nil
}
