package contracts

import "time"

// Recommendation 매매 추천 방향
type Recommendation string

const (
	RecStrongBuy  Recommendation = "STRONG_BUY"
	RecBuy        Recommendation = "BUY"
	RecHold       Recommendation = "HOLD"
	RecSell       Recommendation = "SELL"
	RecStrongSell Recommendation = "STRONG_SELL"
)

// IsBuy returns whether the recommendation is a buy variant
func (r Recommendation) IsBuy() bool {
	return r == RecBuy || r == RecStrongBuy
}

// IsSell returns whether the recommendation is a sell variant
func (r Recommendation) IsSell() bool {
	return r == RecSell || r == RecStrongSell
}

// RecommendationFor maps prediction confidence to a recommendation
// 스크리너는 양성 예측만 기회로 내보내므로 BUY 계열만 생성된다.
func RecommendationFor(confidence float64) Recommendation {
	if confidence >= 0.85 {
		return RecStrongBuy
	}
	return RecBuy
}

// Opportunity 스크리너가 식별한 매매 후보
// 생성 이후 읽기 전용이며, 검증 결과는 별도 레코드로 붙는다.
type Opportunity struct {
	ID                int64              `json:"id"`
	RunID             string             `json:"run_id"`
	Symbol            string             `json:"symbol"`
	OpportunityDate   time.Time          `json:"opportunity_date"`
	Scores            map[string]float64 `json:"scores"` // 서브 분석별 점수
	CompositeScore    float64            `json:"composite_score"`
	Recommendation    Recommendation     `json:"recommendation"`
	ConfidenceLevel   float64            `json:"confidence_level"`
	RiskLevel         RiskTolerance      `json:"risk_level"`
	PriceAtGeneration float64            `json:"price_at_generation"`
	PredictedReturn   float64            `json:"predicted_return"` // 목표 설정의 기대 수익률 (fraction)
	ModelID           string             `json:"model_id"`
	CreatedAt         time.Time          `json:"created_at"`
}

// PerformanceCategory 실현 성과 서열 분류
type PerformanceCategory string

const (
	PerfExcellent PerformanceCategory = "EXCELLENT"
	PerfGood      PerformanceCategory = "GOOD"
	PerfNeutral   PerformanceCategory = "NEUTRAL"
	PerfPoor      PerformanceCategory = "POOR"
	PerfBad       PerformanceCategory = "BAD"
)

// RiskMetrics 실현 일별 수익률 경로 기반 리스크 지표
// 경로가 2 관측치 미만이면 전부 nil.
type RiskMetrics struct {
	SharpeRatio *float64 `json:"sharpe_ratio"`
	MaxDrawdown *float64 `json:"max_drawdown"`
	Volatility  *float64 `json:"volatility"`
	Beta        *float64 `json:"beta"`
}

// ValidationRecord (opportunity, validation period) 쌍당 하나의 검증 결과
// append-only 감사 기록이지만, 같은 쌍 재검증은 이전 레코드를 덮어쓴다 (멱등).
type ValidationRecord struct {
	OpportunityID         int64               `json:"opportunity_id"`
	ValidationPeriodDays  int                 `json:"validation_period_days"`
	ActualReturn          float64             `json:"actual_return"`
	PredictedReturn       float64             `json:"predicted_return"`
	RecommendationCorrect bool                `json:"recommendation_correct"`
	PerformanceCategory   PerformanceCategory `json:"performance_category"`
	Risk                  RiskMetrics         `json:"risk"`
	FinalPrice            float64             `json:"final_price"`
	ValidatedAt           time.Time           `json:"validated_at"`
}

// ValidationOutcome 배치 검증의 쌍별 결과
// 하나의 쌍이 pending이거나 실패해도 배치는 계속된다.
type ValidationOutcome struct {
	OpportunityID        int64             `json:"opportunity_id"`
	ValidationPeriodDays int               `json:"validation_period_days"`
	Record               *ValidationRecord `json:"record,omitempty"`
	Pending              bool              `json:"pending"`
	Error                string            `json:"error,omitempty"`
}
