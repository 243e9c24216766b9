package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/internal/training"
)

// ModelStaleness deactivates active models whose artifacts no longer decode
//
// 알고리즘 레지스트리나 아티팩트 포맷이 바뀌면 저장된 모델이 조용히 썩는다.
// 예측 시점에 터지게 두는 대신 주기적으로 활성 모델을 전수 디코드해보고
// 깨진 것은 비활성화한다. 다음 스크리너 런이 새로 학습해서 채운다.
type ModelStaleness struct {
	registry contracts.ModelRegistry
	schedule string
	log      zerolog.Logger
}

// NewModelStaleness creates the model staleness check job
func NewModelStaleness(registry contracts.ModelRegistry, schedule string, log zerolog.Logger) *ModelStaleness {
	return &ModelStaleness{
		registry: registry,
		schedule: schedule,
		log:      log.With().Str("component", "jobs.model_staleness").Logger(),
	}
}

// Name returns the job name
func (j *ModelStaleness) Name() string {
	return "model-staleness"
}

// Schedule returns the cron expression
func (j *ModelStaleness) Schedule() string {
	return j.schedule
}

// Run decodes every active artifact and deactivates the broken ones
func (j *ModelStaleness) Run(ctx context.Context) error {
	active, err := j.registry.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active models: %w", err)
	}

	stale := 0
	for _, model := range active {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, decodeErr := training.Decode(model.Algorithm, model.Artifact)
		if decodeErr == nil {
			continue
		}

		j.log.Warn().
			Str("model_id", model.ID).
			Str("symbol", model.Symbol).
			Str("algorithm", model.Algorithm).
			Err(decodeErr).
			Msg("artifact no longer decodes, deactivating")

		if err := j.registry.Deactivate(ctx, model.ID); err != nil {
			return fmt.Errorf("deactivate stale model %s: %w", model.ID, err)
		}
		stale++
	}

	j.log.Info().
		Int("checked", len(active)).
		Int("deactivated", stale).
		Msg("model staleness check finished")
	return nil
}
