package training

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/internal/registry"
)

// labeledSet builds a learnable labeled table
// 첫 번째 피처가 임계값을 넘으면 양성 라벨.
func labeledSet(n int) []contracts.LabeledSample {
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	samples := make([]contracts.LabeledSample, n)
	for i := 0; i < n; i++ {
		x := float64(i%10) / 10
		label := contracts.LabelNegative
		if x >= 0.5 {
			label = contracts.LabelPositive
		}
		samples[i] = contracts.LabeledSample{
			AsOfDate: base.AddDate(0, 0, i),
			Features: []float64{x, float64(i % 3), 1},
			Label:    label,
		}
	}
	return samples
}

func skewedSet(n int) []contracts.LabeledSample {
	samples := labeledSet(n)
	for i := range samples {
		samples[i].Label = contracts.LabelNegative
	}
	samples[0].Label = contracts.LabelPositive // 양성 비율 1/n
	return samples
}

func newTrainer(reg contracts.ModelRegistry) *Trainer {
	return NewTrainer(reg, DefaultConfig(), zerolog.Nop())
}

func TestTrain_RegistersActiveModel(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()
	trainer := newTrainer(reg)

	tc := contracts.TargetConfiguration{ID: 1, Symbol: "XYZ", ExpectedReturnPct: 5, HorizonDays: 10}
	model, err := trainer.Train(ctx, "XYZ", tc, AlgorithmGradientBoost, labeledSet(100))
	require.NoError(t, err)

	assert.NotEmpty(t, model.ID)
	assert.Equal(t, contracts.FeatureSchemaVersion, model.FeatureSchemaVersion)
	assert.Equal(t, 80, model.Metrics.TrainSamples)
	assert.Equal(t, 20, model.Metrics.HoldoutSamples)
	assert.Greater(t, model.Metrics.Accuracy, 0.8, "separable table should score high on holdout")
	assert.Equal(t, 1, reg.ActiveCount("XYZ", 1, AlgorithmGradientBoost))

	loaded, err := reg.Load(ctx, model.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsActive)
	assert.NotEmpty(t, loaded.Artifact)
}

func TestTrain_RetrainReplacesSingleActiveModel(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()
	trainer := newTrainer(reg)

	tc := contracts.TargetConfiguration{ID: 1, Symbol: "XYZ"}
	first, err := trainer.Train(ctx, "XYZ", tc, AlgorithmRandomForest, labeledSet(100))
	require.NoError(t, err)
	second, err := trainer.Train(ctx, "XYZ", tc, AlgorithmRandomForest, labeledSet(100))
	require.NoError(t, err)

	// 정확히 하나 비활성화, 정확히 하나 활성: 0도 2도 아니어야 한다
	assert.Equal(t, 1, reg.ActiveCount("XYZ", 1, AlgorithmRandomForest))

	old, err := reg.Load(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	current, err := reg.Load(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, current.IsActive)
}

func TestTrain_SkewedTableFails(t *testing.T) {
	ctx := context.Background()
	trainer := newTrainer(registry.NewMemory())

	tc := contracts.TargetConfiguration{ID: 1, Symbol: "XYZ"}
	_, err := trainer.Train(ctx, "XYZ", tc, AlgorithmRandomForest, skewedSet(100))

	var failure *contracts.TrainingFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "XYZ", failure.Symbol)
	assert.Equal(t, AlgorithmRandomForest, failure.Algorithm)
	assert.Contains(t, failure.Reason, "skewed")
}

func TestTrainAll_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()

	// 존재하지 않는 알고리즘을 끼워 넣어도 나머지는 성공해야 한다
	config := DefaultConfig()
	config.Algorithms = []string{AlgorithmRandomForest, "does-not-exist", AlgorithmGradientBoost}
	trainer := NewTrainer(reg, config, zerolog.Nop())

	tc := contracts.TargetConfiguration{ID: 1, Symbol: "XYZ"}
	models, failures := trainer.TrainAll(ctx, "XYZ", tc, labeledSet(100))

	assert.Len(t, models, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, "does-not-exist", failures[0].Algorithm)
}

func TestSplitChronological(t *testing.T) {
	samples := labeledSet(100)
	train, holdout := splitChronological(samples, 0.2)

	assert.Len(t, train, 80)
	assert.Len(t, holdout, 20)

	// 홀드아웃은 시간상 가장 늦은 접미사여야 한다
	assert.True(t, train[len(train)-1].AsOfDate.Before(holdout[0].AsOfDate))

	// 극단 비율에서도 양쪽 비어있지 않게
	train, holdout = splitChronological(samples[:2], 0.01)
	assert.Len(t, train, 1)
	assert.Len(t, holdout, 1)
}

func TestEvaluate_PerfectClassifier(t *testing.T) {
	samples := labeledSet(50)

	c, err := New(AlgorithmGradientBoost)
	require.NoError(t, err)

	features := make([][]float64, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		features[i] = s.Features
		labels[i] = s.Label
	}
	require.NoError(t, c.Fit(features, labels))

	accuracy, f1, err := evaluate(c, samples)
	require.NoError(t, err)
	assert.Greater(t, accuracy, 0.9)
	assert.Greater(t, f1, 0.9)
}
