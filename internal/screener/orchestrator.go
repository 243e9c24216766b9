package screener

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/pkg/config"
)

// labelBuilder builds supervised label tables (labeling.Constructor)
type labelBuilder interface {
	BuildLabels(symbol string, tc contracts.TargetConfiguration, series *contracts.PriceSeries) ([]contracts.LabeledSample, error)
}

// modelTrainer trains the algorithm ensemble (training.Trainer)
type modelTrainer interface {
	TrainAll(ctx context.Context, symbol string, tc contracts.TargetConfiguration, samples []contracts.LabeledSample) ([]*contracts.TrainedModel, []*contracts.TrainingFailure)
}

// modelPredictor produces predictions from registered models (predicting.Predictor)
type modelPredictor interface {
	Predict(ctx context.Context, modelID, symbol string, asOf time.Time) (*contracts.Prediction, error)
}

// universeSource lists candidate symbols when the request carries none
type universeSource interface {
	Universe(ctx context.Context, minBars int) ([]string, error)
}

// Orchestrator drives a full screener run through its state machine
// ⭐ SSOT: 스크리닝 파이프라인 오케스트레이션은 여기서만
//
// 한 런 안에서 종목 처리는 순차다 (메모리에 학습 작업 하나만). 동시성은
// 워커 여러 개가 서로 다른 런을 집는 걸로 얻는다. 런 간 공유 가변 자원은
// 모델 레지스트리뿐이고, 그쪽 쓰기는 키 단위로 직렬화되어 있다.
type Orchestrator struct {
	universe  universeSource
	provider  contracts.FeatureProvider
	labeler   labelBuilder
	trainer   modelTrainer
	predictor modelPredictor
	registry  contracts.ModelRegistry
	store     contracts.OpportunityStore
	config    config.ScreenerConfig
	log       zerolog.Logger
}

// NewOrchestrator creates a new screener orchestrator
func NewOrchestrator(
	universe universeSource,
	provider contracts.FeatureProvider,
	labeler labelBuilder,
	trainer modelTrainer,
	predictor modelPredictor,
	registry contracts.ModelRegistry,
	store contracts.OpportunityStore,
	cfg config.ScreenerConfig,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		universe:  universe,
		provider:  provider,
		labeler:   labeler,
		trainer:   trainer,
		predictor: predictor,
		registry:  registry,
		store:     store,
		config:    cfg,
		log:       log.With().Str("component", "screener.orchestrator").Logger(),
	}
}

// progressTracker keeps published progress monotonically non-decreasing
type progressTracker struct {
	runID string
	sink  contracts.ProgressSink
	last  int
}

func (p *progressTracker) publish(phase contracts.RunPhase, progress int, message string) {
	if progress < p.last {
		progress = p.last
	}
	if progress > 100 {
		progress = 100
	}
	p.last = progress
	if p.sink != nil {
		p.sink.Publish(contracts.ProgressEvent{
			RunID:    p.runID,
			Phase:    phase,
			Progress: progress,
			Message:  message,
		})
	}
}

// Progress band boundaries per phase
const (
	progressUniverseDone = 5
	progressTrainingDone = 70
	progressAllDone      = 100
)

// Run executes one screener run to completion
//
// 종목 단위 실패는 결과에 축적될 뿐 런을 실패시키지 않는다. soft limit을
// 넘기면 남은 종목을 건너뛰고 Partial=true로 마무리한다 (부분 결과가 무결과보다
// 낫다). 취소 확인은 종목 경계에서만 한다: 학습 호출 중간에 끊으면 만들다 만
// 아티팩트가 남는다.
func (o *Orchestrator) Run(ctx context.Context, runID string, req contracts.RunRequest, asOf time.Time, sink contracts.ProgressSink) (*contracts.RunResult, error) {
	if err := o.validateRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	softDeadline := start.Add(o.config.SoftTimeLimit)
	if o.config.HardTimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, start.Add(o.config.HardTimeLimit))
		defer cancel()
	}

	tracker := &progressTracker{runID: runID, sink: sink}
	result := &contracts.RunResult{RunID: runID, StartedAt: start}
	threshold := req.Threshold()

	// Phase 1: 유니버스 확정
	tracker.publish(contracts.PhaseFetchingUniverse, 0, "universe lookup")
	symbols, err := o.resolveUniverse(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("resolve universe: %w", err)
	}
	result.Universe = len(symbols)
	tracker.publish(contracts.PhaseFetchingUniverse, progressUniverseDone,
		fmt.Sprintf("%d symbols", len(symbols)))

	// Phase 2: 종목별 라벨링 + 앙상블 학습
	trained := make(map[string]*symbolModels, len(symbols))
	for i, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			result.Partial = true
			result.FinishedAt = time.Now()
			return result, err
		}
		if time.Now().After(softDeadline) {
			o.log.Warn().Str("run_id", runID).Int("remaining", len(symbols)-i).
				Msg("soft time limit hit during training, finishing with partial results")
			result.Partial = true
			break
		}

		if sm := o.trainSymbol(ctx, symbol, req, asOf, result); sm != nil {
			trained[symbol] = sm
		}

		tracker.publish(contracts.PhaseTraining,
			progressUniverseDone+(i+1)*(progressTrainingDone-progressUniverseDone)/len(symbols),
			fmt.Sprintf("%s trained (%d/%d)", symbol, i+1, len(symbols)))
	}

	// Phase 3: 예측 + 신뢰도 필터
	eligible := sortedKeys(trained)
	for i, symbol := range eligible {
		if err := ctx.Err(); err != nil {
			result.Partial = true
			result.FinishedAt = time.Now()
			return result, err
		}
		if time.Now().After(softDeadline) {
			result.Partial = true
			break
		}

		if opp := o.predictSymbol(ctx, symbol, trained[symbol], req, threshold, runID, result); opp != nil {
			result.Opportunities = append(result.Opportunities, *opp)
		}

		tracker.publish(contracts.PhasePredicting,
			progressTrainingDone+(i+1)*(progressAllDone-1-progressTrainingDone)/len(eligible),
			fmt.Sprintf("%s predicted (%d/%d)", symbol, i+1, len(eligible)))
	}

	rankOpportunities(result.Opportunities)
	o.persistOpportunities(ctx, result)

	result.FinishedAt = time.Now()
	tracker.publish(contracts.PhasePredicting, progressAllDone,
		fmt.Sprintf("%d opportunities, %d symbol errors", len(result.Opportunities), len(result.Errors)))

	o.log.Info().
		Str("run_id", runID).
		Int("universe", result.Universe).
		Int("opportunities", len(result.Opportunities)).
		Int("trained_models", result.TrainedModels).
		Int("errors", len(result.Errors)).
		Bool("partial", result.Partial).
		Dur("elapsed", result.FinishedAt.Sub(result.StartedAt)).
		Msg("screener run finished")

	// 기회 0건도 성공이다
	return result, nil
}

func (o *Orchestrator) validateRequest(req contracts.RunRequest) error {
	if req.TargetReturnPct <= 0 {
		return fmt.Errorf("target return must be positive, got %.2f%%", req.TargetReturnPct)
	}
	if req.HorizonDays <= 0 {
		return fmt.Errorf("horizon must be positive, got %d days", req.HorizonDays)
	}
	if !req.RiskTolerance.IsValid() {
		return fmt.Errorf("unknown risk tolerance %q", req.RiskTolerance)
	}
	return nil
}

func (o *Orchestrator) resolveUniverse(ctx context.Context, req contracts.RunRequest) ([]string, error) {
	if len(req.Universe) > 0 {
		symbols := append([]string(nil), req.Universe...)
		sort.Strings(symbols)
		return symbols, nil
	}
	return o.universe.Universe(ctx, o.config.MinSamples)
}

// symbolModels carries a symbol's trained ensemble into the prediction phase
// lastBar는 예측 기준일: 명목 as-of가 휴장일이어도 마지막 바에 앵커한다.
type symbolModels struct {
	models  []*contracts.TrainedModel
	lastBar time.Time
}

// trainSymbol builds labels and trains the ensemble for one symbol
// 실패는 SymbolError로 축적하고 nil을 돌려준다.
func (o *Orchestrator) trainSymbol(ctx context.Context, symbol string, req contracts.RunRequest, asOf time.Time, result *contracts.RunResult) *symbolModels {
	tc, err := o.registry.GetOrCreateTargetConfig(ctx, contracts.TargetConfiguration{
		Symbol:            symbol,
		ExpectedReturnPct: req.TargetReturnPct,
		HorizonDays:       req.HorizonDays,
		RiskTolerance:     req.RiskTolerance,
	})
	if err != nil {
		result.Errors = append(result.Errors, contracts.SymbolError{
			Symbol: symbol, Phase: contracts.PhaseTraining, Reason: fmt.Sprintf("target config: %v", err),
		})
		return nil
	}

	series, err := o.history(ctx, symbol, asOf)
	if err != nil {
		result.Errors = append(result.Errors, contracts.SymbolError{
			Symbol: symbol, Phase: contracts.PhaseTraining, Reason: fmt.Sprintf("price history: %v", err),
		})
		return nil
	}

	samples, err := o.labeler.BuildLabels(symbol, *tc, series)
	if err != nil {
		result.Errors = append(result.Errors, contracts.SymbolError{
			Symbol: symbol, Phase: contracts.PhaseTraining, Reason: err.Error(),
		})
		return nil
	}

	models, failures := o.trainer.TrainAll(ctx, symbol, *tc, samples)
	result.TrainedModels += len(models)
	for _, failure := range failures {
		result.Errors = append(result.Errors, contracts.SymbolError{
			Symbol: symbol, Phase: contracts.PhaseTraining,
			Reason: fmt.Sprintf("%s: %s", failure.Algorithm, failure.Reason),
		})
	}
	if len(models) == 0 {
		return nil
	}
	return &symbolModels{models: models, lastBar: series.At(series.Len() - 1).Date}
}

// predictSymbol runs every trained model and emits at most one opportunity
//
// 기회 조건: 양성 예측 AND confidence ≥ threshold. 대표 모델은 양성 예측
// 중 confidence 최고. Scores에는 알고리즘별 양성 확률을 남긴다.
func (o *Orchestrator) predictSymbol(ctx context.Context, symbol string, sm *symbolModels, req contracts.RunRequest, threshold float64, runID string, result *contracts.RunResult) *contracts.Opportunity {
	asOf := sm.lastBar
	scores := make(map[string]float64, len(sm.models))
	var best *contracts.Prediction

	for _, model := range sm.models {
		pred, err := o.predictor.Predict(ctx, model.ID, symbol, asOf)
		if err != nil {
			result.Errors = append(result.Errors, contracts.SymbolError{
				Symbol: symbol, Phase: contracts.PhasePredicting,
				Reason: fmt.Sprintf("%s: %v", model.Algorithm, err),
			})
			continue
		}

		positiveProba := pred.Confidence
		if pred.PredictedClass == contracts.LabelNegative {
			positiveProba = 1 - pred.Confidence
		}
		scores[model.Algorithm] = positiveProba

		if pred.PredictedClass != contracts.LabelPositive {
			continue
		}
		if best == nil || pred.Confidence > best.Confidence {
			best = pred
		}
	}

	if best == nil || best.Confidence < threshold {
		return nil
	}

	price, err := o.provider.Price(ctx, symbol, asOf)
	if err != nil {
		result.Errors = append(result.Errors, contracts.SymbolError{
			Symbol: symbol, Phase: contracts.PhasePredicting,
			Reason: fmt.Sprintf("price at generation: %v", err),
		})
		return nil
	}

	composite := 0.0
	for _, s := range scores {
		composite += s
	}
	composite /= float64(len(scores))

	return &contracts.Opportunity{
		RunID:             runID,
		Symbol:            symbol,
		OpportunityDate:   asOf,
		Scores:            scores,
		CompositeScore:    composite,
		Recommendation:    contracts.RecommendationFor(best.Confidence),
		ConfidenceLevel:   best.Confidence,
		RiskLevel:         req.RiskTolerance,
		PriceAtGeneration: price,
		PredictedReturn:   req.TargetReturnPct / 100,
		ModelID:           best.ModelID,
		CreatedAt:         time.Now(),
	}
}

// history fetches the labeling window ending at the as-of date
func (o *Orchestrator) history(ctx context.Context, symbol string, asOf time.Time) (*contracts.PriceSeries, error) {
	to := asOf
	// 거래일 HistoryDays개를 덮으려면 캘린더로 넉넉히 1.6배 + 한 달
	from := to.AddDate(0, 0, -(o.config.HistoryDays*8/5 + 30))
	series, err := o.provider.PriceSeries(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	if series.Len() > o.config.HistoryDays {
		series = &contracts.PriceSeries{
			Symbol: symbol,
			Bars:   series.Bars[series.Len()-o.config.HistoryDays:],
		}
	}
	return series, nil
}

// persistOpportunities saves ranked opportunities and assigns their ids
func (o *Orchestrator) persistOpportunities(ctx context.Context, result *contracts.RunResult) {
	for i := range result.Opportunities {
		id, err := o.store.SaveOpportunity(ctx, &result.Opportunities[i])
		if err != nil {
			o.log.Error().Err(err).
				Str("symbol", result.Opportunities[i].Symbol).
				Msg("opportunity save failed")
			result.Errors = append(result.Errors, contracts.SymbolError{
				Symbol: result.Opportunities[i].Symbol,
				Phase:  contracts.PhasePredicting,
				Reason: fmt.Sprintf("save: %v", err),
			})
			continue
		}
		result.Opportunities[i].ID = id
	}
}

// rankOpportunities orders by confidence descending, symbol ascending on ties
func rankOpportunities(opportunities []contracts.Opportunity) {
	sort.SliceStable(opportunities, func(i, j int) bool {
		if opportunities[i].ConfidenceLevel != opportunities[j].ConfidenceLevel {
			return opportunities[i].ConfidenceLevel > opportunities[j].ConfidenceLevel
		}
		return opportunities[i].Symbol < opportunities[j].Symbol
	})
}

func sortedKeys(m map[string]*symbolModels) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
