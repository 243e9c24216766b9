package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/argos/internal/contracts"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "기회 백테스트",
	Long: `저장된 기회를 전방 수익률로 백테스트합니다.

기회 생성일 이후의 실제 가격으로 각 검증 기간의 수익률, 샤프 지수,
최대 낙폭, 변동성, 베타를 계산해 저장합니다. 전방 구간의 시세가 아직
없으면 pending으로 표시하고 넘어갑니다.

Example:
  go run ./cmd/argos validate --ids 1,2,3
  go run ./cmd/argos validate --ids 1,2,3 --periods 5,21
  go run ./cmd/argos validate --pending --periods 10`,
	RunE: runValidate,
}

var (
	// Validate flags
	validateIDs     []int64
	validatePeriods []int
	validatePending bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	// Flags
	validateCmd.Flags().Int64SliceVar(&validateIDs, "ids", nil, "검증할 기회 ID 목록")
	validateCmd.Flags().IntSliceVar(&validatePeriods, "periods", nil, "검증 기간 (거래일, 비면 config 기본값)")
	validateCmd.Flags().BoolVar(&validatePending, "pending", false, "미검증 기회 전체를 대상으로 실행")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argos Opportunity Validation ===")

	if len(validateIDs) == 0 && !validatePending {
		return fmt.Errorf("either --ids or --pending is required")
	}

	// 1. Wire the engine
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	periods := validatePeriods
	if len(periods) == 0 {
		periods = eng.cfg.Validation.Periods
	}
	for _, p := range periods {
		if p <= 0 {
			return fmt.Errorf("validation periods must be positive trading-day counts")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Resolve target opportunities
	opportunities, err := resolveValidationTargets(ctx, eng, periods)
	if err != nil {
		return err
	}
	if len(opportunities) == 0 {
		fmt.Println("\nNothing to validate")
		return nil
	}

	fmt.Printf("\nOpportunities: %d\n", len(opportunities))
	fmt.Printf("Periods:       %v trading days\n\n", periods)

	// 3. Validate the full (opportunity × period) cross-product
	outcomes := eng.validator.ValidateBatch(ctx, opportunities, periods)

	validated, pending, failed := 0, 0, 0
	for _, outcome := range outcomes {
		switch {
		case outcome.Record != nil:
			validated++
			rec := outcome.Record
			correct := "✗"
			if rec.RecommendationCorrect {
				correct = "✓"
			}
			fmt.Printf("  #%-6d %2dd  actual %+7.2f%%  predicted %+6.2f%%  %s %-10s",
				rec.OpportunityID, rec.ValidationPeriodDays,
				rec.ActualReturn*100, rec.PredictedReturn*100,
				correct, rec.PerformanceCategory)
			if rec.Risk.SharpeRatio != nil {
				fmt.Printf("  sharpe %.2f", *rec.Risk.SharpeRatio)
			}
			fmt.Println()
		case outcome.Pending:
			pending++
			fmt.Printf("  #%-6d %2dd  ⏳ pending (forward window not closed)\n",
				outcome.OpportunityID, outcome.ValidationPeriodDays)
		default:
			failed++
			fmt.Printf("  #%-6d %2dd  ❌ %s\n",
				outcome.OpportunityID, outcome.ValidationPeriodDays, outcome.Error)
		}
	}

	fmt.Printf("\n✅ Validated: %d, pending: %d, failed: %d\n", validated, pending, failed)
	return nil
}

// resolveValidationTargets loads opportunities by id or sweeps pending ones
func resolveValidationTargets(ctx context.Context, eng *engine, periods []int) ([]contracts.Opportunity, error) {
	if !validatePending {
		opportunities, err := eng.oppStore.ListOpportunities(ctx, validateIDs)
		if err != nil {
			return nil, fmt.Errorf("load opportunities: %w", err)
		}
		if len(opportunities) < len(validateIDs) {
			fmt.Printf("⚠️  %d of %d requested ids not found\n", len(validateIDs)-len(opportunities), len(validateIDs))
		}
		return opportunities, nil
	}

	// --pending: 기간별 미검증 목록의 합집합 (ID 중복 제거)
	seen := make(map[int64]bool)
	var out []contracts.Opportunity
	for _, period := range periods {
		pending, err := eng.oppStore.ListPendingValidation(ctx, period)
		if err != nil {
			return nil, fmt.Errorf("list pending validation: %w", err)
		}
		for _, opp := range pending {
			if !seen[opp.ID] {
				seen[opp.ID] = true
				out = append(out, opp)
			}
		}
	}
	return out, nil
}
