package marketdata

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/argos/internal/contracts"
)

// Feature schema v1
// 벡터 폭과 컬럼 의미는 버전에 묶여 있다. 컬럼을 추가/삭제/재배열하면
// contracts.FeatureSchemaVersion을 올려야 한다.
const (
	// FeatureDim 스키마 v1 벡터 폭
	FeatureDim = 10

	// featureWarmup 20일 지표 계산에 필요한 최소 바 수
	featureWarmup = 21

	annualizationFactor = 252
)

// FeatureNames 스키마 v1 컬럼 이름 (벡터 인덱스 순서)
var FeatureNames = [FeatureDim]string{
	"ret_1d",
	"ret_5d",
	"ret_20d",
	"sma5_gap",
	"sma20_gap",
	"vol_20d",
	"volume_z20",
	"intraday_pos",
	"range_pct",
	"rsi_14",
}

// FeatureBuilder computes schema v1 feature vectors from bar histories
// ⭐ SSOT: 피처 계산은 여기서만
// labeling.VectorBuilder를 구현한다. 입력 슬라이스의 마지막 바가 as-of이며
// 그 이후 바는 호출자 쪽에서 구조적으로 잘려 들어온다.
type FeatureBuilder struct{}

// NewFeatureBuilder creates a schema v1 feature builder
func NewFeatureBuilder() *FeatureBuilder {
	return &FeatureBuilder{}
}

// Warmup returns the minimum bar count required before vectors are available
func (b *FeatureBuilder) Warmup() int {
	return featureWarmup
}

// FromHistory computes the feature vector for the last bar of the history
//
// 바 수가 워밍업 미달이면 contracts.ErrNotAvailable: 부분 벡터를 만들지 않는다.
func (b *FeatureBuilder) FromHistory(bars []contracts.PriceBar) ([]float64, error) {
	if len(bars) < featureWarmup {
		return nil, contracts.ErrNotAvailable
	}

	last := len(bars) - 1
	cur := bars[last]
	if cur.Close <= 0 {
		return nil, fmt.Errorf("non-positive close for %s: %f", cur.Date.Format("2006-01-02"), cur.Close)
	}

	vector := make([]float64, FeatureDim)
	vector[0] = pctReturn(bars, last, 1)
	vector[1] = pctReturn(bars, last, 5)
	vector[2] = pctReturn(bars, last, 20)
	vector[3] = smaGap(bars, last, 5)
	vector[4] = smaGap(bars, last, 20)
	vector[5] = realizedVolatility(bars, last, 20)
	vector[6] = volumeZScore(bars, last, 20)
	vector[7] = intradayPosition(cur)
	vector[8] = (cur.High - cur.Low) / cur.Close
	vector[9] = rsi(bars, last, 14)

	return vector, nil
}

// pctReturn n거래일 수익률 (바 인덱스 오프셋)
func pctReturn(bars []contracts.PriceBar, last, n int) float64 {
	prev := bars[last-n].Close
	if prev == 0 {
		return 0
	}
	return (bars[last].Close - prev) / prev
}

// smaGap 종가와 n일 단순이동평균의 괴리율
func smaGap(bars []contracts.PriceBar, last, n int) float64 {
	sum := 0.0
	for i := last - n + 1; i <= last; i++ {
		sum += bars[i].Close
	}
	sma := sum / float64(n)
	if sma == 0 {
		return 0
	}
	return bars[last].Close/sma - 1
}

// realizedVolatility 최근 n일 일별 수익률의 연환산 변동성
func realizedVolatility(bars []contracts.PriceBar, last, n int) float64 {
	returns := make([]float64, 0, n)
	for i := last - n + 1; i <= last; i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (bars[i].Close-prev)/prev)
	}
	sd := stat.StdDev(returns, nil)
	return sd * math.Sqrt(annualizationFactor)
}

// volumeZScore 당일 거래량의 최근 n일 대비 z-score
func volumeZScore(bars []contracts.PriceBar, last, n int) float64 {
	volumes := make([]float64, 0, n)
	for i := last - n; i < last; i++ {
		volumes = append(volumes, float64(bars[i].Volume))
	}
	mean, sd := stat.MeanStdDev(volumes, nil)
	if sd == 0 {
		return 0
	}
	return (float64(bars[last].Volume) - mean) / sd
}

// intradayPosition 당일 고저 범위 내 종가 위치 (0~1)
func intradayPosition(bar contracts.PriceBar) float64 {
	spread := bar.High - bar.Low
	if spread <= 0 {
		return 0.5
	}
	return (bar.Close - bar.Low) / spread
}

// rsi Wilder 방식 대신 단순 평균 기반 n일 RSI (0~1 스케일)
func rsi(bars []contracts.PriceBar, last, n int) float64 {
	gains, losses := 0.0, 0.0
	for i := last - n + 1; i <= last; i++ {
		diff := bars[i].Close - bars[i-1].Close
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	if gains+losses == 0 {
		return 0.5
	}
	return gains / (gains + losses)
}
