package predicting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/internal/training"
)

// Predictor produces confidence-scored class predictions from trained models
// ⭐ SSOT: 예측 생성은 여기서만
// 부수효과가 없어 서로 다른 (model, date) 쌍에 대해 동시 호출해도 안전하다.
type Predictor struct {
	registry contracts.ModelRegistry
	provider contracts.FeatureProvider
	log      zerolog.Logger
}

// NewPredictor creates a new predictor
func NewPredictor(registry contracts.ModelRegistry, provider contracts.FeatureProvider, log zerolog.Logger) *Predictor {
	return &Predictor{
		registry: registry,
		provider: provider,
		log:      log.With().Str("component", "predicting.predictor").Logger(),
	}
}

// Predict loads a model by id and predicts for a symbol at an as-of date
//
// 비활성/누락 모델은 ErrModelNotFound. 피처 스키마 버전이 학습 시점과 다르면
// SchemaMismatchError: 컬럼을 조용히 재해석하는 일은 절대 없다.
func (p *Predictor) Predict(ctx context.Context, modelID, symbol string, asOf time.Time) (*contracts.Prediction, error) {
	model, err := p.registry.Load(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if !model.IsActive {
		return nil, contracts.ErrModelNotFound
	}

	if model.FeatureSchemaVersion != contracts.FeatureSchemaVersion {
		return nil, &contracts.SchemaMismatchError{
			ModelVersion:   model.FeatureSchemaVersion,
			CurrentVersion: contracts.FeatureSchemaVersion,
		}
	}

	features, err := p.provider.FeatureVector(ctx, symbol, asOf, model.FeatureSchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("feature vector for %s at %s: %w", symbol, asOf.Format("2006-01-02"), err)
	}

	classifier, err := training.Decode(model.Algorithm, model.Artifact)
	if err != nil {
		return nil, fmt.Errorf("decode model %s: %w", modelID, err)
	}

	proba, err := classifier.PredictProba(features)
	if err != nil {
		return nil, fmt.Errorf("predict with model %s: %w", modelID, err)
	}

	predictedClass := contracts.LabelNegative
	confidence := 1 - proba
	if proba >= 0.5 {
		predictedClass = contracts.LabelPositive
		confidence = proba
	}

	prediction := &contracts.Prediction{
		ModelID:        modelID,
		Symbol:         symbol,
		AsOfDate:       asOf,
		PredictedClass: predictedClass,
		Confidence:     clamp01(confidence),
		Features:       features,
	}

	p.log.Debug().
		Str("symbol", symbol).
		Str("model_id", modelID).
		Int("class", predictedClass).
		Float64("confidence", prediction.Confidence).
		Msg("prediction generated")

	return prediction, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
