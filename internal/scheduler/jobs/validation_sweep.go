package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/internal/validation"
)

// ValidationSweep backfills validation records for matured opportunities
//
// 기회가 생성된 뒤 검증 기간이 지나면 전방 데이터가 생긴다. 이 잡이 주기마다
// 기간별 미검증 기회를 긁어 배치 검증을 돌린다. pending은 다음 스윕에서
// 다시 시도되므로 놓치는 기회는 없다.
type ValidationSweep struct {
	validator *validation.Validator
	store     contracts.OpportunityStore
	periods   []int
	schedule  string
	log       zerolog.Logger
}

// NewValidationSweep creates the validation sweep job
func NewValidationSweep(validator *validation.Validator, store contracts.OpportunityStore, periods []int, schedule string, log zerolog.Logger) *ValidationSweep {
	return &ValidationSweep{
		validator: validator,
		store:     store,
		periods:   periods,
		schedule:  schedule,
		log:       log.With().Str("component", "jobs.validation_sweep").Logger(),
	}
}

// Name returns the job name
func (j *ValidationSweep) Name() string {
	return "validation-sweep"
}

// Schedule returns the cron expression
func (j *ValidationSweep) Schedule() string {
	return j.schedule
}

// Run sweeps every configured validation period
func (j *ValidationSweep) Run(ctx context.Context) error {
	totalValidated, totalPending := 0, 0

	for _, period := range j.periods {
		pending, err := j.store.ListPendingValidation(ctx, period)
		if err != nil {
			return fmt.Errorf("list pending validation (%dd): %w", period, err)
		}
		if len(pending) == 0 {
			continue
		}

		outcomes := j.validator.ValidateBatch(ctx, pending, []int{period})
		for _, outcome := range outcomes {
			switch {
			case outcome.Record != nil:
				totalValidated++
			case outcome.Pending:
				totalPending++
			default:
				j.log.Warn().
					Int64("opportunity_id", outcome.OpportunityID).
					Int("period_days", period).
					Str("error", outcome.Error).
					Msg("validation pair errored during sweep")
			}
		}
	}

	j.log.Info().
		Int("validated", totalValidated).
		Int("still_pending", totalPending).
		Msg("validation sweep finished")
	return nil
}
