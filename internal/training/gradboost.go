package training

import (
	"fmt"
	"math"
)

// GradientBoost stump-based gradient boosting with logistic loss
// 각 라운드는 현재 확률 추정의 잔차(y − p)에 스텀프를 적합한다.
type GradientBoost struct {
	NumRounds    int     `json:"num_rounds"`
	LearningRate float64 `json:"learning_rate"`
	InitScore    float64 `json:"init_score"` // 초기 로그오즈
	Stumps       []Stump `json:"stumps"`
	Dim          int     `json:"dim"`
}

// NewGradientBoost creates an unfitted booster with default hyperparameters
func NewGradientBoost() *GradientBoost {
	return &GradientBoost{
		NumRounds:    100,
		LearningRate: 0.1,
	}
}

// Fit implements Classifier
func (gb *GradientBoost) Fit(features [][]float64, labels []int) error {
	n := len(features)
	if n == 0 {
		return fmt.Errorf("gradientboost: empty training set")
	}
	dim := len(features[0])
	if dim == 0 {
		return fmt.Errorf("gradientboost: empty feature vector")
	}
	gb.Dim = dim

	// 초기 로그오즈 = log(pos/neg), 한쪽이 0이면 스무딩
	pos := 0
	for _, l := range labels {
		if l == 1 {
			pos++
		}
	}
	p0 := (float64(pos) + 1) / (float64(n) + 2)
	gb.InitScore = math.Log(p0 / (1 - p0))

	allFeats := make([]int, dim)
	for i := range allFeats {
		allFeats[i] = i
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = gb.InitScore
	}

	residuals := make([]float64, n)
	gb.Stumps = make([]Stump, 0, gb.NumRounds)

	for round := 0; round < gb.NumRounds; round++ {
		for i := 0; i < n; i++ {
			residuals[i] = float64(labels[i]) - sigmoid(scores[i])
		}

		stump, err := fitStump(features, residuals, allFeats)
		if err != nil {
			return fmt.Errorf("gradientboost: %w", err)
		}
		gb.Stumps = append(gb.Stumps, *stump)

		for i := 0; i < n; i++ {
			scores[i] += gb.LearningRate * stump.Predict(features[i])
		}
	}

	return nil
}

// PredictProba implements Classifier
func (gb *GradientBoost) PredictProba(features []float64) (float64, error) {
	if len(gb.Stumps) == 0 {
		return 0, fmt.Errorf("gradientboost: not fitted")
	}
	if len(features) != gb.Dim {
		return 0, fmt.Errorf("gradientboost: expected %d features, got %d", gb.Dim, len(features))
	}

	score := gb.InitScore
	for i := range gb.Stumps {
		score += gb.LearningRate * gb.Stumps[i].Predict(features)
	}

	return clamp01(sigmoid(score)), nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
