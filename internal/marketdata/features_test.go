package marketdata

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argos/internal/contracts"
)

// flatBars builds n bars with constant price and volume
func flatBars(n int, price float64) []contracts.PriceBar {
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.PriceBar, n)
	for i := 0; i < n; i++ {
		bars[i] = contracts.PriceBar{
			Date:   base.AddDate(0, 0, i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 1000,
		}
	}
	return bars
}

// trendBars builds n bars rising 1% per day
func trendBars(n int) []contracts.PriceBar {
	base := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.PriceBar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		bars[i] = contracts.PriceBar{
			Date:   base.AddDate(0, 0, i),
			Open:   price * 0.995,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: int64(1000 + i*10),
		}
		price *= 1.01
	}
	return bars
}

func TestFromHistory_WarmupGate(t *testing.T) {
	b := NewFeatureBuilder()

	_, err := b.FromHistory(flatBars(featureWarmup-1, 100))
	assert.ErrorIs(t, err, contracts.ErrNotAvailable)

	vector, err := b.FromHistory(flatBars(featureWarmup, 100))
	require.NoError(t, err)
	assert.Len(t, vector, FeatureDim)
}

func TestFromHistory_FlatSeries(t *testing.T) {
	b := NewFeatureBuilder()

	vector, err := b.FromHistory(flatBars(30, 100))
	require.NoError(t, err)

	// 변화가 없으면 수익률/괴리/변동성 전부 0, 고저 위치와 RSI는 중립값
	assert.InDelta(t, 0.0, vector[0], 1e-12, "ret_1d")
	assert.InDelta(t, 0.0, vector[2], 1e-12, "ret_20d")
	assert.InDelta(t, 0.0, vector[4], 1e-12, "sma20_gap")
	assert.InDelta(t, 0.0, vector[5], 1e-12, "vol_20d")
	assert.InDelta(t, 0.0, vector[6], 1e-12, "volume_z20")
	assert.InDelta(t, 0.5, vector[7], 1e-12, "intraday_pos")
	assert.InDelta(t, 0.5, vector[9], 1e-12, "rsi_14")
}

func TestFromHistory_TrendingSeries(t *testing.T) {
	b := NewFeatureBuilder()

	vector, err := b.FromHistory(trendBars(40))
	require.NoError(t, err)

	assert.InDelta(t, 0.01, vector[0], 1e-9, "ret_1d of a steady 1 percent trend")
	assert.InDelta(t, math.Pow(1.01, 20)-1, vector[2], 1e-9, "ret_20d compounds")
	assert.Greater(t, vector[3], 0.0, "close above sma5 in an uptrend")
	assert.Greater(t, vector[4], vector[3], "sma20 gap exceeds sma5 gap in a steady trend")
	assert.Greater(t, vector[6], 0.0, "rising volume z-score")
	assert.InDelta(t, 1.0, vector[9], 1e-9, "all-up days pin RSI at 1")
}

func TestFromHistory_NoLookahead(t *testing.T) {
	b := NewFeatureBuilder()
	bars := trendBars(60)

	prefix := make([]contracts.PriceBar, 30)
	copy(prefix, bars[:30])
	want, err := b.FromHistory(prefix)
	require.NoError(t, err)

	// 미래 바를 아무리 바꿔도 과거 프리픽스의 벡터는 불변이어야 한다
	for i := 30; i < 60; i++ {
		bars[i].Close *= 3
		bars[i].Volume *= 7
	}
	got, err := b.FromHistory(bars[:30])
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFromHistory_FixedWidth(t *testing.T) {
	b := NewFeatureBuilder()

	for _, n := range []int{featureWarmup, 50, 300} {
		vector, err := b.FromHistory(trendBars(n))
		require.NoError(t, err)
		assert.Len(t, vector, FeatureDim, "vector width must not depend on history length")
	}
	assert.Len(t, FeatureNames, FeatureDim)
}
