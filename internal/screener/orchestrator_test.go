package screener

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/internal/registry"
	"github.com/wonny/argos/pkg/config"
)

var asOf = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

type fakeUniverse struct{ symbols []string }

func (f *fakeUniverse) Universe(ctx context.Context, minBars int) ([]string, error) {
	return f.symbols, nil
}

// fakeProvider serves a canned price series per symbol
type fakeProvider struct {
	prices map[string]float64
}

func (f *fakeProvider) FeatureVector(ctx context.Context, symbol string, t time.Time, v int) ([]float64, error) {
	return nil, contracts.ErrNotAvailable
}

func (f *fakeProvider) Price(ctx context.Context, symbol string, date time.Time) (float64, error) {
	price, ok := f.prices[symbol]
	if !ok {
		return 0, contracts.ErrNotAvailable
	}
	return price, nil
}

func (f *fakeProvider) PriceSeries(ctx context.Context, symbol string, from, to time.Time) (*contracts.PriceSeries, error) {
	series := &contracts.PriceSeries{Symbol: symbol}
	for i := 0; i < 60; i++ {
		series.Bars = append(series.Bars, contracts.PriceBar{
			Date: from.AddDate(0, 0, i), Close: 100, Volume: 1000,
		})
	}
	return series, nil
}

// fakeLabeler fails designated symbols and returns a fixed table otherwise
type fakeLabeler struct {
	failing map[string]error
}

func (f *fakeLabeler) BuildLabels(symbol string, tc contracts.TargetConfiguration, series *contracts.PriceSeries) ([]contracts.LabeledSample, error) {
	if err, ok := f.failing[symbol]; ok {
		return nil, err
	}
	samples := make([]contracts.LabeledSample, 40)
	for i := range samples {
		samples[i] = contracts.LabeledSample{
			AsOfDate: asOf.AddDate(0, 0, -60+i),
			Features: []float64{float64(i)},
			Label:    i % 2,
		}
	}
	return samples, nil
}

// fakeTrainer registers one synthetic model per symbol
type fakeTrainer struct {
	delay time.Duration
}

func (f *fakeTrainer) TrainAll(ctx context.Context, symbol string, tc contracts.TargetConfiguration, samples []contracts.LabeledSample) ([]*contracts.TrainedModel, []*contracts.TrainingFailure) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return []*contracts.TrainedModel{{
		ID: "model-" + symbol, Symbol: symbol, TargetConfigID: tc.ID,
		Algorithm: "randomforest", FeatureSchemaVersion: contracts.FeatureSchemaVersion,
		IsActive: true,
	}}, nil
}

// fakePredictor returns a fixed (class, confidence) per symbol
type fakePredictor struct {
	predictions map[string]contracts.Prediction
}

func (f *fakePredictor) Predict(ctx context.Context, modelID, symbol string, t time.Time) (*contracts.Prediction, error) {
	pred, ok := f.predictions[symbol]
	if !ok {
		return nil, contracts.ErrModelNotFound
	}
	pred.ModelID = modelID
	pred.Symbol = symbol
	return &pred, nil
}

// memoryStore assigns sequential ids
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	saved  []contracts.Opportunity
}

func (s *memoryStore) SaveOpportunity(ctx context.Context, opp *contracts.Opportunity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	opp.ID = s.nextID
	s.saved = append(s.saved, *opp)
	return s.nextID, nil
}

func (s *memoryStore) GetOpportunity(ctx context.Context, id int64) (*contracts.Opportunity, error) {
	return nil, contracts.ErrNotAvailable
}

func (s *memoryStore) ListOpportunities(ctx context.Context, ids []int64) ([]contracts.Opportunity, error) {
	return nil, nil
}

func (s *memoryStore) SaveValidationRecord(ctx context.Context, rec *contracts.ValidationRecord) error {
	return nil
}

func (s *memoryStore) ListPendingValidation(ctx context.Context, periodDays int) ([]contracts.Opportunity, error) {
	return nil, nil
}

func testConfig() config.ScreenerConfig {
	return config.ScreenerConfig{
		MinSamples:    30,
		HistoryDays:   504,
		HoldoutRatio:  0.2,
		SoftTimeLimit: time.Minute,
		HardTimeLimit: 2 * time.Minute,
	}
}

type fixture struct {
	universe  *fakeUniverse
	provider  *fakeProvider
	labeler   *fakeLabeler
	trainer   *fakeTrainer
	predictor *fakePredictor
	store     *memoryStore
	config    config.ScreenerConfig
}

func defaultFixture() *fixture {
	return &fixture{
		universe: &fakeUniverse{symbols: []string{"AAA", "BBB", "CCC"}},
		provider: &fakeProvider{prices: map[string]float64{"AAA": 100, "BBB": 50, "CCC": 80}},
		labeler:  &fakeLabeler{failing: map[string]error{}},
		trainer:  &fakeTrainer{},
		predictor: &fakePredictor{predictions: map[string]contracts.Prediction{
			"AAA": {PredictedClass: contracts.LabelPositive, Confidence: 0.90},
			"BBB": {PredictedClass: contracts.LabelPositive, Confidence: 0.80},
			"CCC": {PredictedClass: contracts.LabelPositive, Confidence: 0.71},
		}},
		store:  &memoryStore{},
		config: testConfig(),
	}
}

func (f *fixture) orchestrator() *Orchestrator {
	return NewOrchestrator(f.universe, f.provider, f.labeler, f.trainer, f.predictor,
		registry.NewMemory(), f.store, f.config, zerolog.Nop())
}

func moderateRequest() contracts.RunRequest {
	return contracts.RunRequest{
		TargetReturnPct: 5,
		HorizonDays:     10,
		RiskTolerance:   contracts.RiskModerate,
	}
}

func TestRun_SymbolFailureIsolation(t *testing.T) {
	f := defaultFixture()
	f.labeler.failing["BBB"] = &contracts.InsufficientDataError{Symbol: "BBB", Samples: 3, Minimum: 30}
	o := f.orchestrator()

	result, err := o.Run(context.Background(), "run-1", moderateRequest(), asOf, nil)
	require.NoError(t, err, "symbol-level failure must not fail the run")

	assert.Equal(t, 3, result.Universe)
	assert.Equal(t, 2, result.TrainedModels)
	assert.False(t, result.Partial)

	symbols := make([]string, len(result.Opportunities))
	for i, opp := range result.Opportunities {
		symbols[i] = opp.Symbol
	}
	assert.Equal(t, []string{"AAA", "CCC"}, symbols)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "BBB", result.Errors[0].Symbol)
	assert.Equal(t, contracts.PhaseTraining, result.Errors[0].Phase)
}

func TestRun_ConfidenceThreshold(t *testing.T) {
	f := defaultFixture()
	f.predictor.predictions = map[string]contracts.Prediction{
		"AAA": {PredictedClass: contracts.LabelPositive, Confidence: 0.65}, // 경계 아래
		"BBB": {PredictedClass: contracts.LabelPositive, Confidence: 0.71}, // 경계 위
		"CCC": {PredictedClass: contracts.LabelNegative, Confidence: 0.99}, // 음성 예측
	}
	o := f.orchestrator()

	req := moderateRequest()
	req.ConfidenceThreshold = 0.7

	result, err := o.Run(context.Background(), "run-2", req, asOf, nil)
	require.NoError(t, err)

	require.Len(t, result.Opportunities, 1)
	assert.Equal(t, "BBB", result.Opportunities[0].Symbol)
	assert.InDelta(t, 0.71, result.Opportunities[0].ConfidenceLevel, 1e-12)
}

func TestRun_RankingDeterministic(t *testing.T) {
	f := defaultFixture()
	f.predictor.predictions = map[string]contracts.Prediction{
		"AAA": {PredictedClass: contracts.LabelPositive, Confidence: 0.80},
		"BBB": {PredictedClass: contracts.LabelPositive, Confidence: 0.90},
		"CCC": {PredictedClass: contracts.LabelPositive, Confidence: 0.80}, // AAA와 동률
	}
	o := f.orchestrator()

	result, err := o.Run(context.Background(), "run-3", moderateRequest(), asOf, nil)
	require.NoError(t, err)

	require.Len(t, result.Opportunities, 3)
	assert.Equal(t, "BBB", result.Opportunities[0].Symbol, "highest confidence first")
	assert.Equal(t, "AAA", result.Opportunities[1].Symbol, "tie broken by symbol order")
	assert.Equal(t, "CCC", result.Opportunities[2].Symbol)

	// ID는 저장소가 부여
	for _, opp := range result.Opportunities {
		assert.NotZero(t, opp.ID)
		assert.Equal(t, "run-3", opp.RunID)
	}
	assert.Len(t, f.store.saved, 3)
}

func TestRun_EmptyResultIsSuccess(t *testing.T) {
	f := defaultFixture()
	f.predictor.predictions = map[string]contracts.Prediction{
		"AAA": {PredictedClass: contracts.LabelNegative, Confidence: 0.9},
		"BBB": {PredictedClass: contracts.LabelNegative, Confidence: 0.9},
		"CCC": {PredictedClass: contracts.LabelNegative, Confidence: 0.9},
	}
	o := f.orchestrator()

	result, err := o.Run(context.Background(), "run-4", moderateRequest(), asOf, nil)
	require.NoError(t, err, "zero opportunities is not a failure")
	assert.Empty(t, result.Opportunities)
	assert.Empty(t, result.Errors)
}

func TestRun_ProgressMonotonic(t *testing.T) {
	f := defaultFixture()
	o := f.orchestrator()

	var events []contracts.ProgressEvent
	sink := contracts.ProgressFunc(func(e contracts.ProgressEvent) {
		events = append(events, e)
	})

	_, err := o.Run(context.Background(), "run-5", moderateRequest(), asOf, sink)
	require.NoError(t, err)

	require.NotEmpty(t, events)
	last := -1
	for _, e := range events {
		assert.GreaterOrEqual(t, e.Progress, last, "progress must never decrease")
		last = e.Progress
	}
	assert.Equal(t, 100, events[len(events)-1].Progress)
	assert.Equal(t, "run-5", events[0].RunID)
}

func TestRun_SoftLimitYieldsPartialResult(t *testing.T) {
	f := defaultFixture()
	f.universe.symbols = []string{"AAA", "BBB", "CCC", "DDD", "EEE"}
	f.trainer.delay = 30 * time.Millisecond
	f.config.SoftTimeLimit = 50 * time.Millisecond
	o := f.orchestrator()

	result, err := o.Run(context.Background(), "run-6", moderateRequest(), asOf, nil)
	require.NoError(t, err, "soft limit degrades to partial results, not failure")
	assert.True(t, result.Partial)
	assert.Less(t, result.TrainedModels, 5)
}

func TestRun_CancellationAtSymbolBoundary(t *testing.T) {
	f := defaultFixture()
	f.universe.symbols = []string{"AAA", "BBB", "CCC"}
	f.trainer.delay = 20 * time.Millisecond
	o := f.orchestrator()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	result, err := o.Run(ctx, "run-7", moderateRequest(), asOf, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result, "partial results survive cancellation")
	assert.True(t, result.Partial)
}

func TestRun_InvalidRequest(t *testing.T) {
	o := defaultFixture().orchestrator()

	cases := []struct {
		name string
		req  contracts.RunRequest
	}{
		{"zero target return", contracts.RunRequest{HorizonDays: 10, RiskTolerance: contracts.RiskModerate}},
		{"zero horizon", contracts.RunRequest{TargetReturnPct: 5, RiskTolerance: contracts.RiskModerate}},
		{"bad tolerance", contracts.RunRequest{TargetReturnPct: 5, HorizonDays: 10, RiskTolerance: "yolo"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := o.Run(context.Background(), "run-x", tc.req, asOf, nil)
			assert.Error(t, err)
		})
	}
}

func TestRun_CompositeScoreAveragesAlgorithms(t *testing.T) {
	f := defaultFixture()
	f.universe.symbols = []string{"AAA"}
	o := f.orchestrator()

	result, err := o.Run(context.Background(), "run-8", moderateRequest(), asOf, nil)
	require.NoError(t, err)
	require.Len(t, result.Opportunities, 1)

	opp := result.Opportunities[0]
	require.Len(t, opp.Scores, 1)
	assert.InDelta(t, 0.90, opp.Scores["randomforest"], 1e-12)
	assert.InDelta(t, 0.90, opp.CompositeScore, 1e-12)
	assert.Equal(t, contracts.RecStrongBuy, opp.Recommendation)
	assert.InDelta(t, 100.0, opp.PriceAtGeneration, 1e-12)
	assert.InDelta(t, 0.05, opp.PredictedReturn, 1e-12)
}

func TestRankOpportunities(t *testing.T) {
	opps := []contracts.Opportunity{
		{Symbol: "ZZZ", ConfidenceLevel: 0.7},
		{Symbol: "AAA", ConfidenceLevel: 0.7},
		{Symbol: "MMM", ConfidenceLevel: 0.9},
	}
	rankOpportunities(opps)

	got := fmt.Sprintf("%s,%s,%s", opps[0].Symbol, opps[1].Symbol, opps[2].Symbol)
	assert.Equal(t, "MMM,AAA,ZZZ", got)
}
