package training

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wonny/argos/internal/contracts"
)

// Config holds trainer configuration
type Config struct {
	HoldoutRatio float64  // 시간순 분할 홀드아웃 비율
	MinSkew      float64  // 양성 비율 하한 (기본 0.02)
	MaxSkew      float64  // 양성 비율 상한 (기본 0.98)
	Algorithms   []string // TrainAll이 시도할 알고리즘
}

// DefaultConfig returns default trainer configuration
func DefaultConfig() Config {
	return Config{
		HoldoutRatio: 0.2,
		MinSkew:      0.02,
		MaxSkew:      0.98,
		Algorithms:   Algorithms(),
	}
}

// Trainer fits classifiers on labeled tables and registers artifacts
// ⭐ SSOT: 모델 학습/등록 로직은 여기서만
type Trainer struct {
	registry contracts.ModelRegistry
	config   Config
	log      zerolog.Logger
}

// NewTrainer creates a new trainer
func NewTrainer(registry contracts.ModelRegistry, config Config, log zerolog.Logger) *Trainer {
	return &Trainer{
		registry: registry,
		config:   config,
		log:      log.With().Str("component", "training.trainer").Logger(),
	}
}

// Train fits one algorithm on a labeled table and registers the artifact
//
// 실패는 *contracts.TrainingFailure로 돌아온다. 성공 시 레지스트리가 같은
// (symbol, target_config, algorithm) 키의 이전 활성 모델을 비활성화하고 새
// 모델을 활성으로 넣는다 (키 단위 원자적).
func (t *Trainer) Train(ctx context.Context, symbol string, tc contracts.TargetConfiguration, algorithm string, samples []contracts.LabeledSample) (*contracts.TrainedModel, error) {
	positiveRate := contracts.PositiveRate(samples)
	if positiveRate < t.config.MinSkew || positiveRate > t.config.MaxSkew {
		return nil, &contracts.TrainingFailure{
			Symbol:    symbol,
			Algorithm: algorithm,
			Reason:    fmt.Sprintf("skewed label table: positive rate %.4f outside [%.2f, %.2f]", positiveRate, t.config.MinSkew, t.config.MaxSkew),
		}
	}

	classifier, err := New(algorithm)
	if err != nil {
		return nil, &contracts.TrainingFailure{Symbol: symbol, Algorithm: algorithm, Reason: err.Error(), Err: err}
	}

	train, holdout := splitChronological(samples, t.config.HoldoutRatio)

	features := make([][]float64, len(train))
	labels := make([]int, len(train))
	for i, s := range train {
		features[i] = s.Features
		labels[i] = s.Label
	}

	if err := t.fit(classifier, features, labels); err != nil {
		return nil, &contracts.TrainingFailure{
			Symbol:    symbol,
			Algorithm: algorithm,
			Reason:    fmt.Sprintf("fit: %v", err),
			Err:       err,
		}
	}

	accuracy, f1, err := evaluate(classifier, holdout)
	if err != nil {
		return nil, &contracts.TrainingFailure{
			Symbol:    symbol,
			Algorithm: algorithm,
			Reason:    fmt.Sprintf("holdout evaluation: %v", err),
			Err:       err,
		}
	}

	artifact, err := Encode(classifier)
	if err != nil {
		return nil, &contracts.TrainingFailure{Symbol: symbol, Algorithm: algorithm, Reason: err.Error(), Err: err}
	}

	model := &contracts.TrainedModel{
		ID:                   uuid.NewString(),
		Symbol:               symbol,
		TargetConfigID:       tc.ID,
		Algorithm:            algorithm,
		FeatureSchemaVersion: contracts.FeatureSchemaVersion,
		Metrics: contracts.TrainingMetrics{
			Accuracy:       accuracy,
			F1:             f1,
			PositiveRate:   positiveRate,
			TrainSamples:   len(train),
			HoldoutSamples: len(holdout),
		},
		Artifact:  artifact,
		IsActive:  true,
		CreatedAt: time.Now(),
	}

	if _, err := t.registry.Register(ctx, model); err != nil {
		return nil, fmt.Errorf("register model for %s/%s: %w", symbol, algorithm, err)
	}

	t.log.Info().
		Str("symbol", symbol).
		Str("algorithm", algorithm).
		Str("model_id", model.ID).
		Float64("accuracy", accuracy).
		Float64("f1", f1).
		Float64("positive_rate", positiveRate).
		Msg("model trained and registered")

	return model, nil
}

// TrainAll runs every configured algorithm with per-algorithm failure isolation
// 한 알고리즘의 실패는 기록만 하고 형제 알고리즘 시도를 막지 않는다.
func (t *Trainer) TrainAll(ctx context.Context, symbol string, tc contracts.TargetConfiguration, samples []contracts.LabeledSample) ([]*contracts.TrainedModel, []*contracts.TrainingFailure) {
	var models []*contracts.TrainedModel
	var failures []*contracts.TrainingFailure

	for _, algorithm := range t.config.Algorithms {
		select {
		case <-ctx.Done():
			failures = append(failures, &contracts.TrainingFailure{
				Symbol: symbol, Algorithm: algorithm, Reason: "cancelled", Err: ctx.Err(),
			})
			return models, failures
		default:
		}

		model, err := t.Train(ctx, symbol, tc, algorithm, samples)
		if err != nil {
			if tf, ok := err.(*contracts.TrainingFailure); ok {
				t.log.Warn().
					Str("symbol", symbol).
					Str("algorithm", algorithm).
					Str("reason", tf.Reason).
					Msg("algorithm training failed")
				failures = append(failures, tf)
				continue
			}
			// 레지스트리 등의 인프라 오류도 알고리즘 단위로 격리
			failures = append(failures, &contracts.TrainingFailure{
				Symbol: symbol, Algorithm: algorithm, Reason: err.Error(), Err: err,
			})
			continue
		}
		models = append(models, model)
	}

	return models, failures
}

// fit calls Classifier.Fit with panic isolation
// 알고리즘 구현의 panic이 런 전체를 무너뜨리면 안 된다.
func (t *Trainer) fit(c Classifier, features [][]float64, labels []int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during fit: %v", r)
		}
	}()
	return c.Fit(features, labels)
}
