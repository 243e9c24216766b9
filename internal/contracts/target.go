package contracts

import (
	"fmt"
	"time"
)

// RiskTolerance 위험 성향
type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskAggressive   RiskTolerance = "aggressive"
)

// ConfidenceThreshold returns the default screening threshold for a tolerance
// 보수적일수록 높은 신뢰도를 요구한다.
func (r RiskTolerance) ConfidenceThreshold() float64 {
	switch r {
	case RiskConservative:
		return 0.75
	case RiskAggressive:
		return 0.55
	default:
		return 0.65
	}
}

// IsValid checks if the tolerance is a known value
func (r RiskTolerance) IsValid() bool {
	switch r {
	case RiskConservative, RiskModerate, RiskAggressive:
		return true
	}
	return false
}

// TargetConfiguration 라벨링 스킴 정의
// ⭐ SSOT: (symbol, expected_return_pct, horizon_days) 조합당 하나, 최초 사용 시
// 생성 후 재사용. 학습에 쓰인 뒤에는 불변.
type TargetConfiguration struct {
	ID                int64         `json:"id"`
	Symbol            string        `json:"symbol"`
	ExpectedReturnPct float64       `json:"expected_return_pct"`
	HorizonDays       int           `json:"horizon_days"` // 거래일 기준
	RiskTolerance     RiskTolerance `json:"risk_tolerance"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Key returns the cache key identifying the labeling scheme
func (tc TargetConfiguration) Key() string {
	return fmt.Sprintf("%s:%.4f:%d", tc.Symbol, tc.ExpectedReturnPct, tc.HorizonDays)
}

// TargetPrice computes the target price for an as-of price
func (tc TargetConfiguration) TargetPrice(asOfPrice float64) float64 {
	return asOfPrice * (1 + tc.ExpectedReturnPct/100)
}

// ExpectedReturn returns the expected return as a fraction (5% -> 0.05)
func (tc TargetConfiguration) ExpectedReturn() float64 {
	return tc.ExpectedReturnPct / 100
}
