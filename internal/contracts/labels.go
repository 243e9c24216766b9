package contracts

import "time"

// Label values
const (
	LabelNegative = 0
	LabelPositive = 1
)

// LabeledSample 지도학습 라벨 테이블의 한 행
// as-of 날짜의 피처 벡터와, horizon 거래일 뒤 실현 가격으로 만든 라벨.
// 피처는 as-of 날짜 이전 데이터만으로 계산된다 (no lookahead).
type LabeledSample struct {
	AsOfDate    time.Time `json:"as_of_date"`
	Features    []float64 `json:"features"`
	AsOfPrice   float64   `json:"as_of_price"`
	TargetPrice float64   `json:"target_price"`
	FuturePrice float64   `json:"future_price"` // as_of + horizon 거래일 종가
	Label       int       `json:"label"`        // 1 iff FuturePrice >= TargetPrice
}

// PositiveRate returns the share of positive labels in a sample table
// 학습 테이블 편향 진단용.
func PositiveRate(samples []LabeledSample) float64 {
	if len(samples) == 0 {
		return 0
	}

	positive := 0
	for _, s := range samples {
		if s.Label == LabelPositive {
			positive++
		}
	}
	return float64(positive) / float64(len(samples))
}
