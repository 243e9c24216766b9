package validation

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/argos/internal/contracts"
)

const tradingDaysPerYear = 252

// computeRiskMetrics builds risk metrics from a realized daily-return path
//
// path는 기회 생성일과 검증일 사이의 일별 수익률. 2 관측치 미만이면
// 지표 전부 nil: 하루짜리 경로로 연환산 변동성을 만드는 건 소음이다.
// marketPath는 같은 구간의 시장 프록시 수익률이며, 길이가 다르거나
// 분산이 0이면 beta만 nil로 남긴다.
func computeRiskMetrics(path, marketPath []float64, riskFreeRate float64) contracts.RiskMetrics {
	if len(path) < 2 {
		return contracts.RiskMetrics{}
	}

	mean, sd := stat.MeanStdDev(path, nil)
	annualVol := sd * math.Sqrt(tradingDaysPerYear)

	metrics := contracts.RiskMetrics{
		Volatility:  ptr(annualVol),
		MaxDrawdown: ptr(maxDrawdown(path)),
	}

	if annualVol > 0 {
		annualReturn := mean * tradingDaysPerYear
		metrics.SharpeRatio = ptr((annualReturn - riskFreeRate) / annualVol)
	}

	if len(marketPath) == len(path) {
		marketVar := stat.Variance(marketPath, nil)
		if marketVar > 0 {
			cov := stat.Covariance(path, marketPath, nil)
			metrics.Beta = ptr(cov / marketVar)
		}
	}

	return metrics
}

// maxDrawdown returns the largest peak-to-trough equity decline (negative fraction)
func maxDrawdown(returns []float64) float64 {
	equity := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := equity/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

func ptr(v float64) *float64 {
	return &v
}
