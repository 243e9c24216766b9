package training

import (
	"fmt"
	"math"
	"math/rand"
)

// RandomForest bootstrap-aggregated stump ensemble
// 각 트리는 부트스트랩 샘플 + 랜덤 피처 부분집합으로 학습한다.
// 출력은 트리 출력(파티션 양성 비율)의 평균.
type RandomForest struct {
	NumTrees int     `json:"num_trees"`
	Seed     int64   `json:"seed"`
	Stumps   []Stump `json:"stumps"`
	Dim      int     `json:"dim"`
}

// NewRandomForest creates an unfitted forest with default hyperparameters
func NewRandomForest() *RandomForest {
	return &RandomForest{
		NumTrees: 100,
		Seed:     42,
	}
}

// Fit implements Classifier
func (rf *RandomForest) Fit(features [][]float64, labels []int) error {
	n := len(features)
	if n == 0 {
		return fmt.Errorf("randomforest: empty training set")
	}
	dim := len(features[0])
	if dim == 0 {
		return fmt.Errorf("randomforest: empty feature vector")
	}

	targets := make([]float64, n)
	for i, l := range labels {
		targets[i] = float64(l)
	}

	rng := rand.New(rand.NewSource(rf.Seed))
	numFeats := int(math.Ceil(math.Sqrt(float64(dim))))

	rf.Dim = dim
	rf.Stumps = make([]Stump, 0, rf.NumTrees)

	bootFeatures := make([][]float64, n)
	bootTargets := make([]float64, n)

	for t := 0; t < rf.NumTrees; t++ {
		// Bootstrap sample
		for i := 0; i < n; i++ {
			j := rng.Intn(n)
			bootFeatures[i] = features[j]
			bootTargets[i] = targets[j]
		}

		// Random feature subset (sqrt(d))
		featIdxs := rng.Perm(dim)[:numFeats]

		stump, err := fitStump(bootFeatures, bootTargets, featIdxs)
		if err != nil {
			return fmt.Errorf("randomforest: %w", err)
		}
		rf.Stumps = append(rf.Stumps, *stump)
	}

	return nil
}

// PredictProba implements Classifier
func (rf *RandomForest) PredictProba(features []float64) (float64, error) {
	if len(rf.Stumps) == 0 {
		return 0, fmt.Errorf("randomforest: not fitted")
	}
	if len(features) != rf.Dim {
		return 0, fmt.Errorf("randomforest: expected %d features, got %d", rf.Dim, len(features))
	}

	var sum float64
	for i := range rf.Stumps {
		sum += rf.Stumps[i].Predict(features)
	}

	p := sum / float64(len(rf.Stumps))
	return clamp01(p), nil
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
