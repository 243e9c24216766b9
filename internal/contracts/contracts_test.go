package contracts

import (
	"testing"
	"time"
)

func TestTargetConfiguration_TargetPrice(t *testing.T) {
	tc := TargetConfiguration{
		Symbol:            "XYZ",
		ExpectedReturnPct: 5,
		HorizonDays:       10,
	}

	got := tc.TargetPrice(100)
	want := 105.0
	epsilon := 1e-9
	if diff := got - want; diff > epsilon || diff < -epsilon {
		t.Errorf("TargetPrice(100) = %v, want %v", got, want)
	}
}

func TestTargetConfiguration_Key(t *testing.T) {
	a := TargetConfiguration{Symbol: "XYZ", ExpectedReturnPct: 5, HorizonDays: 10}
	b := TargetConfiguration{Symbol: "XYZ", ExpectedReturnPct: 5, HorizonDays: 10, RiskTolerance: RiskAggressive}
	c := TargetConfiguration{Symbol: "XYZ", ExpectedReturnPct: 5, HorizonDays: 21}

	// Risk tolerance is not part of the labeling scheme identity
	if a.Key() != b.Key() {
		t.Errorf("keys differ for same (symbol, return, horizon): %s vs %s", a.Key(), b.Key())
	}
	if a.Key() == c.Key() {
		t.Errorf("keys equal for different horizons: %s", a.Key())
	}
}

func TestRiskTolerance_ConfidenceThreshold(t *testing.T) {
	tests := []struct {
		tolerance RiskTolerance
		want      float64
	}{
		{RiskConservative, 0.75},
		{RiskModerate, 0.65},
		{RiskAggressive, 0.55},
		{RiskTolerance("unknown"), 0.65},
	}

	for _, tt := range tests {
		t.Run(string(tt.tolerance), func(t *testing.T) {
			if got := tt.tolerance.ConfidenceThreshold(); got != tt.want {
				t.Errorf("ConfidenceThreshold() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunRequest_Threshold(t *testing.T) {
	// Explicit threshold wins over tolerance default
	req := RunRequest{RiskTolerance: RiskConservative, ConfidenceThreshold: 0.6}
	if got := req.Threshold(); got != 0.6 {
		t.Errorf("Threshold() = %v, want 0.6", got)
	}

	req = RunRequest{RiskTolerance: RiskAggressive}
	if got := req.Threshold(); got != 0.55 {
		t.Errorf("Threshold() = %v, want 0.55", got)
	}
}

func TestPositiveRate(t *testing.T) {
	samples := []LabeledSample{
		{Label: LabelPositive},
		{Label: LabelNegative},
		{Label: LabelPositive},
		{Label: LabelNegative},
	}

	if got := PositiveRate(samples); got != 0.5 {
		t.Errorf("PositiveRate() = %v, want 0.5", got)
	}

	if got := PositiveRate(nil); got != 0 {
		t.Errorf("PositiveRate(nil) = %v, want 0", got)
	}
}

func TestPriceSeries_IndexOf(t *testing.T) {
	series := &PriceSeries{
		Symbol: "XYZ",
		Bars: []PriceBar{
			{Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Close: 100},
			{Date: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), Close: 101},
			{Date: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), Close: 102}, // 주말 건너뜀
		},
	}

	if got := series.IndexOf(time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)); got != 1 {
		t.Errorf("IndexOf(2025-01-03) = %d, want 1", got)
	}

	// Non-trading day
	if got := series.IndexOf(time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC)); got != -1 {
		t.Errorf("IndexOf(2025-01-04) = %d, want -1", got)
	}
}

func TestPriceSeries_DailyReturns(t *testing.T) {
	series := &PriceSeries{
		Bars: []PriceBar{
			{Close: 100},
			{Close: 110},
			{Close: 99},
		},
	}

	returns := series.DailyReturns()
	if len(returns) != 2 {
		t.Fatalf("got %d returns, want 2", len(returns))
	}

	epsilon := 1e-9
	if diff := returns[0] - 0.1; diff > epsilon || diff < -epsilon {
		t.Errorf("returns[0] = %v, want 0.1", returns[0])
	}
	if diff := returns[1] - (-0.1); diff > epsilon || diff < -epsilon {
		t.Errorf("returns[1] = %v, want -0.1", returns[1])
	}
}

func TestRunState_IsTerminal(t *testing.T) {
	if RunPending.IsTerminal() || RunRunning.IsTerminal() {
		t.Error("PENDING/RUNNING must not be terminal")
	}
	if !RunSucceeded.IsTerminal() || !RunFailed.IsTerminal() {
		t.Error("SUCCEEDED/FAILED must be terminal")
	}
}

func TestRecommendationFor(t *testing.T) {
	if got := RecommendationFor(0.9); got != RecStrongBuy {
		t.Errorf("RecommendationFor(0.9) = %v, want STRONG_BUY", got)
	}
	if got := RecommendationFor(0.7); got != RecBuy {
		t.Errorf("RecommendationFor(0.7) = %v, want BUY", got)
	}
}
