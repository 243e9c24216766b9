package validation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/argos/internal/contracts"
)

// Config validator settings
type Config struct {
	// NeutralBand HOLD 판정과 NEUTRAL 분류에 쓰는 절대 수익률 밴드 (fraction)
	NeutralBand float64

	// RiskFreeRate 샤프 계산용 연 무위험 수익률 (fraction)
	RiskFreeRate float64

	// MarketProxy 베타 계산용 시장 프록시 심볼
	MarketProxy string
}

// DefaultConfig returns the standard validator settings
func DefaultConfig() Config {
	return Config{
		NeutralBand:  0.02,
		RiskFreeRate: 0.03,
		MarketProxy:  "SPY",
	}
}

// Validator measures realized forward performance of generated opportunities
// ⭐ SSOT: 기회 검증(백테스트)은 여기서만
// 같은 (opportunity, period) 쌍 재검증은 동일 입력에서 동일 레코드를 만들므로
// 동시 호출도 안전하다 (last-writer overwrite).
type Validator struct {
	provider contracts.FeatureProvider
	store    contracts.OpportunityStore
	config   Config
	log      zerolog.Logger
}

// NewValidator creates a new opportunity validator
func NewValidator(provider contracts.FeatureProvider, store contracts.OpportunityStore, config Config, log zerolog.Logger) *Validator {
	return &Validator{
		provider: provider,
		store:    store,
		config:   config,
		log:      log.With().Str("component", "validation.validator").Logger(),
	}
}

// Validate computes the validation record for one (opportunity, period) pair
//
// 검증일 = 기회 생성일 + periodDays 거래일 (바 인덱스 오프셋). 그 바가 아직
// 없으면 ErrValidationPending을 돌려준다. 이는 실패가 아니라 "전방 데이터가
// 아직 안 쌓였다"는 정상 상태다.
func (v *Validator) Validate(ctx context.Context, opp *contracts.Opportunity, periodDays int) (*contracts.ValidationRecord, error) {
	if periodDays <= 0 {
		return nil, fmt.Errorf("invalid validation period: %d days", periodDays)
	}

	series, err := v.forwardSeries(ctx, opp.Symbol, opp.OpportunityDate, periodDays)
	if err != nil {
		return nil, err
	}

	start := series.IndexOf(opp.OpportunityDate)
	if start < 0 {
		return nil, fmt.Errorf("%w: no bar on opportunity date %s for %s",
			contracts.ErrNotAvailable, opp.OpportunityDate.Format("2006-01-02"), opp.Symbol)
	}
	end := start + periodDays
	if end >= series.Len() {
		// 전방 바 부족: 주말/휴장 보정 여지 없이 pending
		return nil, contracts.ErrValidationPending
	}

	basePrice := series.At(start).Close
	finalPrice := series.At(end).Close
	if basePrice <= 0 {
		return nil, fmt.Errorf("non-positive base price for %s: %f", opp.Symbol, basePrice)
	}
	actualReturn := finalPrice/basePrice - 1

	window := &contracts.PriceSeries{Symbol: opp.Symbol, Bars: series.Bars[start : end+1]}
	path := window.DailyReturns()
	marketPath := v.marketReturns(ctx, opp.OpportunityDate, start, end, periodDays)

	record := &contracts.ValidationRecord{
		OpportunityID:         opp.ID,
		ValidationPeriodDays:  periodDays,
		ActualReturn:          actualReturn,
		PredictedReturn:       opp.PredictedReturn,
		RecommendationCorrect: v.recommendationCorrect(opp.Recommendation, actualReturn),
		PerformanceCategory:   v.performanceCategory(actualReturn, opp.PredictedReturn),
		Risk:                  computeRiskMetrics(path, marketPath, v.config.RiskFreeRate),
		FinalPrice:            finalPrice,
		ValidatedAt:           time.Now().UTC(),
	}

	v.log.Debug().
		Int64("opportunity_id", opp.ID).
		Int("period_days", periodDays).
		Float64("actual_return", actualReturn).
		Str("category", string(record.PerformanceCategory)).
		Msg("opportunity validated")

	return record, nil
}

// ValidateBatch runs the full (opportunity × period) cross-product
//
// 쌍 하나가 pending이거나 실패해도 배치는 계속된다. 성공한 레코드는
// 저장소에 upsert하며, 결과 리스트에서 쌍이 누락되는 일은 없다.
func (v *Validator) ValidateBatch(ctx context.Context, opportunities []contracts.Opportunity, periods []int) []contracts.ValidationOutcome {
	outcomes := make([]contracts.ValidationOutcome, 0, len(opportunities)*len(periods))

	for i := range opportunities {
		opp := &opportunities[i]
		for _, period := range periods {
			outcome := contracts.ValidationOutcome{
				OpportunityID:        opp.ID,
				ValidationPeriodDays: period,
			}

			record, err := v.Validate(ctx, opp, period)
			switch {
			case errors.Is(err, contracts.ErrValidationPending):
				outcome.Pending = true
			case err != nil:
				outcome.Error = err.Error()
				v.log.Warn().Err(err).
					Int64("opportunity_id", opp.ID).
					Int("period_days", period).
					Msg("validation pair failed")
			default:
				if saveErr := v.store.SaveValidationRecord(ctx, record); saveErr != nil {
					outcome.Error = saveErr.Error()
				} else {
					outcome.Record = record
				}
			}

			outcomes = append(outcomes, outcome)
		}
	}

	return outcomes
}

// forwardSeries fetches bars from the opportunity date through a calendar
// window wide enough to contain periodDays trading days
func (v *Validator) forwardSeries(ctx context.Context, symbol string, from time.Time, periodDays int) (*contracts.PriceSeries, error) {
	// 거래일 n개를 덮으려면 캘린더로 넉넉히 2n+14일
	to := from.AddDate(0, 0, periodDays*2+14)
	series, err := v.provider.PriceSeries(ctx, symbol, from, to)
	if errors.Is(err, contracts.ErrNotAvailable) {
		return nil, contracts.ErrValidationPending
	}
	if err != nil {
		return nil, err
	}
	return series, nil
}

// marketReturns returns the market-proxy return path aligned to the same window
// 프록시 시계열이 없거나 구간이 어긋나면 빈 슬라이스: beta만 nil이 된다.
func (v *Validator) marketReturns(ctx context.Context, oppDate time.Time, start, end, periodDays int) []float64 {
	market, err := v.forwardSeries(ctx, v.config.MarketProxy, oppDate, periodDays)
	if err != nil {
		return nil
	}
	mStart := market.IndexOf(oppDate)
	if mStart < 0 || mStart+periodDays >= market.Len() {
		return nil
	}
	window := &contracts.PriceSeries{Symbol: v.config.MarketProxy, Bars: market.Bars[mStart : mStart+periodDays+1]}
	return window.DailyReturns()
}

// recommendationCorrect checks whether realized return agrees with the recommendation
func (v *Validator) recommendationCorrect(rec contracts.Recommendation, actualReturn float64) bool {
	switch {
	case rec.IsBuy():
		return actualReturn > 0
	case rec.IsSell():
		return actualReturn < 0
	default: // HOLD
		return math.Abs(actualReturn) < v.config.NeutralBand
	}
}

// performanceCategory classifies the realized return against the expectation
//
// expected는 목표 설정의 기대 수익률 (fraction, 양수). 서열:
// EXCELLENT ≥ expected, GOOD ≥ 0.5×expected, BAD ≤ −expected,
// POOR는 밴드 밖 음수, 나머지는 NEUTRAL.
func (v *Validator) performanceCategory(actual, expected float64) contracts.PerformanceCategory {
	if expected <= 0 {
		// 기대치가 0 이하인 설정은 부호와 밴드만으로 분류
		switch {
		case actual >= v.config.NeutralBand:
			return contracts.PerfGood
		case actual <= -v.config.NeutralBand:
			return contracts.PerfPoor
		default:
			return contracts.PerfNeutral
		}
	}

	switch {
	case actual >= expected:
		return contracts.PerfExcellent
	case actual >= 0.5*expected:
		return contracts.PerfGood
	case actual <= -expected:
		return contracts.PerfBad
	case actual < 0 && math.Abs(actual) >= v.config.NeutralBand:
		return contracts.PerfPoor
	default:
		return contracts.PerfNeutral
	}
}
