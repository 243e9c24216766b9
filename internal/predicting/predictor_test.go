package predicting

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
	"github.com/wonny/argos/internal/training"
)

// fakeProvider serves a fixed feature vector per symbol
type fakeProvider struct {
	vectors map[string][]float64
}

func (f *fakeProvider) FeatureVector(ctx context.Context, symbol string, asOf time.Time, schemaVersion int) ([]float64, error) {
	v, ok := f.vectors[symbol]
	if !ok {
		return nil, contracts.ErrNotAvailable
	}
	return v, nil
}

func (f *fakeProvider) Price(ctx context.Context, symbol string, date time.Time) (float64, error) {
	return 0, contracts.ErrNotAvailable
}

func (f *fakeProvider) PriceSeries(ctx context.Context, symbol string, from, to time.Time) (*contracts.PriceSeries, error) {
	return nil, contracts.ErrNotAvailable
}

// trainModel fits a gradient booster on a separable table and registers it
func trainModel(t *testing.T, reg contracts.ModelRegistry, schemaVersion int) *contracts.TrainedModel {
	t.Helper()

	var features [][]float64
	var labels []int
	for i := 0; i < 100; i++ {
		x := float64(i%10) / 10
		label := 0
		if x >= 0.5 {
			label = 1
		}
		features = append(features, []float64{x, 1})
		labels = append(labels, label)
	}

	c, err := training.New(training.AlgorithmGradientBoost)
	require.NoError(t, err)
	require.NoError(t, c.Fit(features, labels))
	artifact, err := training.Encode(c)
	require.NoError(t, err)

	model := &contracts.TrainedModel{
		ID:                   "model-1",
		Symbol:               "XYZ",
		TargetConfigID:       1,
		Algorithm:            training.AlgorithmGradientBoost,
		FeatureSchemaVersion: schemaVersion,
		Artifact:             artifact,
		IsActive:             true,
		CreatedAt:            time.Now(),
	}
	_, err = reg.Register(context.Background(), model)
	require.NoError(t, err)
	return model
}

func TestPredict_PositiveAndNegative(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()
	model := trainModel(t, reg, contracts.FeatureSchemaVersion)

	asOf := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	// 양성 영역 피처
	p := NewPredictor(reg, &fakeProvider{vectors: map[string][]float64{"XYZ": {0.9, 1}}}, zerolog.Nop())
	pred, err := p.Predict(ctx, model.ID, "XYZ", asOf)
	require.NoError(t, err)
	assert.Equal(t, contracts.LabelPositive, pred.PredictedClass)
	assert.GreaterOrEqual(t, pred.Confidence, 0.5)
	assert.LessOrEqual(t, pred.Confidence, 1.0)

	// 음성 영역: confidence는 예측 클래스(음성)의 확률 질량
	p = NewPredictor(reg, &fakeProvider{vectors: map[string][]float64{"XYZ": {0.1, 1}}}, zerolog.Nop())
	pred, err = p.Predict(ctx, model.ID, "XYZ", asOf)
	require.NoError(t, err)
	assert.Equal(t, contracts.LabelNegative, pred.PredictedClass)
	assert.GreaterOrEqual(t, pred.Confidence, 0.5)
}

func TestPredict_ModelNotFound(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()
	p := NewPredictor(reg, &fakeProvider{}, zerolog.Nop())

	_, err := p.Predict(ctx, "missing", "XYZ", time.Now())
	assert.ErrorIs(t, err, contracts.ErrModelNotFound)
}

func TestPredict_InactiveModel(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()
	model := trainModel(t, reg, contracts.FeatureSchemaVersion)
	require.NoError(t, reg.Deactivate(ctx, model.ID))

	p := NewPredictor(reg, &fakeProvider{vectors: map[string][]float64{"XYZ": {0.9, 1}}}, zerolog.Nop())
	_, err := p.Predict(ctx, model.ID, "XYZ", time.Now())
	assert.ErrorIs(t, err, contracts.ErrModelNotFound)
}

func TestPredict_SchemaMismatch(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()
	model := trainModel(t, reg, contracts.FeatureSchemaVersion+1)

	p := NewPredictor(reg, &fakeProvider{vectors: map[string][]float64{"XYZ": {0.9, 1}}}, zerolog.Nop())
	_, err := p.Predict(ctx, model.ID, "XYZ", time.Now())

	var mismatch *contracts.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, contracts.FeatureSchemaVersion+1, mismatch.ModelVersion)
}

func TestPredict_FeatureUnavailable(t *testing.T) {
	ctx := context.Background()
	reg := registry.NewMemory()
	model := trainModel(t, reg, contracts.FeatureSchemaVersion)

	p := NewPredictor(reg, &fakeProvider{}, zerolog.Nop())
	_, err := p.Predict(ctx, model.ID, "XYZ", time.Now())
	assert.ErrorIs(t, err, contracts.ErrNotAvailable)
}
