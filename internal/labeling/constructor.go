package labeling

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wonny/argos/internal/contracts"
)

// VectorBuilder computes a feature vector from a bar history
// 마지막 바가 as-of 날짜다. 슬라이스 경계가 곧 정보 경계이므로 미래 바는
// 구조적으로 전달될 수 없다. 워밍업 미달이면 contracts.ErrNotAvailable.
type VectorBuilder interface {
	FromHistory(bars []contracts.PriceBar) ([]float64, error)
}

// Constructor builds supervised-learning label tables from price history
// ⭐ SSOT: 라벨 생성 로직은 여기서만
type Constructor struct {
	builder    VectorBuilder
	minSamples int
	log        zerolog.Logger
}

// NewConstructor creates a new label constructor
func NewConstructor(builder VectorBuilder, minSamples int, log zerolog.Logger) *Constructor {
	return &Constructor{
		builder:    builder,
		minSamples: minSamples,
		log:        log.With().Str("component", "labeling.constructor").Logger(),
	}
}

// BuildLabels converts a price series into labeled samples for a target configuration
//
// 각 as-of 인덱스 t에 대해:
//   - 피처는 bars[:t+1]만으로 계산 (no lookahead)
//   - target_price = close(t) × (1 + expected_return_pct/100)
//   - label = 1 iff close(t + horizon_days) >= target_price (거래일 오프셋)
//
// 시계열 끝부분처럼 t+horizon 바가 없는 날짜는 라벨을 만들지 않고 버린다.
// 유효 행이 minSamples 미만이면 InsufficientDataError를 보고한다.
func (c *Constructor) BuildLabels(symbol string, tc contracts.TargetConfiguration, series *contracts.PriceSeries) ([]contracts.LabeledSample, error) {
	if tc.HorizonDays <= 0 {
		return nil, fmt.Errorf("invalid horizon: %d days", tc.HorizonDays)
	}
	if series == nil || series.Len() == 0 {
		return nil, &contracts.InsufficientDataError{Symbol: symbol, Samples: 0, Minimum: c.minSamples}
	}

	samples := make([]contracts.LabeledSample, 0, series.Len())
	skippedFeatures := 0

	// 마지막 horizon 개 바는 전방 가격이 없으므로 후보에서 제외
	lastEligible := series.Len() - tc.HorizonDays
	for t := 0; t < lastEligible; t++ {
		features, err := c.builder.FromHistory(series.Bars[:t+1])
		if err != nil {
			if errors.Is(err, contracts.ErrNotAvailable) {
				skippedFeatures++
				continue
			}
			return nil, fmt.Errorf("build features for %s at %s: %w",
				symbol, series.Bars[t].Date.Format("2006-01-02"), err)
		}

		asOfPrice := series.Bars[t].Close
		targetPrice := tc.TargetPrice(asOfPrice)
		futurePrice := series.Bars[t+tc.HorizonDays].Close

		label := contracts.LabelNegative
		if futurePrice >= targetPrice {
			label = contracts.LabelPositive
		}

		samples = append(samples, contracts.LabeledSample{
			AsOfDate:    series.Bars[t].Date,
			Features:    features,
			AsOfPrice:   asOfPrice,
			TargetPrice: targetPrice,
			FuturePrice: futurePrice,
			Label:       label,
		})
	}

	if len(samples) < c.minSamples {
		c.log.Warn().
			Str("symbol", symbol).
			Int("samples", len(samples)).
			Int("minimum", c.minSamples).
			Int("skipped_warmup", skippedFeatures).
			Msg("label table below minimum sample floor")
		return nil, &contracts.InsufficientDataError{
			Symbol:  symbol,
			Samples: len(samples),
			Minimum: c.minSamples,
		}
	}

	c.log.Debug().
		Str("symbol", symbol).
		Int("samples", len(samples)).
		Float64("positive_rate", contracts.PositiveRate(samples)).
		Msg("label table built")

	return samples, nil
}
