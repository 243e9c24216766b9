package training

import (
	"fmt"
	"sort"
)

// Stump 단일 분할 결정 트리 (깊이 1)
// 앙상블 분류기들의 공통 약학습기.
type Stump struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      float64 `json:"left"`  // feature < threshold일 때 출력
	Right     float64 `json:"right"` // feature >= threshold일 때 출력
}

// Predict returns the stump output for a feature vector
func (s *Stump) Predict(features []float64) float64 {
	if features[s.Feature] < s.Threshold {
		return s.Left
	}
	return s.Right
}

// fitStump finds the single split minimizing squared error against targets
// featIdxs로 후보 피처를 제한한다 (랜덤 포레스트의 피처 서브샘플링용).
// 정렬 + 누적합으로 피처당 O(n log n).
func fitStump(features [][]float64, targets []float64, featIdxs []int) (*Stump, error) {
	n := len(features)
	if n == 0 {
		return nil, fmt.Errorf("empty training set")
	}

	var sum float64
	for _, t := range targets {
		sum += t
	}
	mean := sum / float64(n)

	best := &Stump{Feature: featIdxs[0], Threshold: features[0][featIdxs[0]], Left: mean, Right: mean}
	bestScore := -1.0 // 분산 감소량

	order := make([]int, n)
	for _, f := range featIdxs {
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool {
			return features[order[a]][f] < features[order[b]][f]
		})

		// 왼쪽 파티션 누적합을 키우며 모든 분할점 평가
		var leftSum float64
		for k := 1; k < n; k++ {
			leftSum += targets[order[k-1]]

			lo, hi := features[order[k-1]][f], features[order[k]][f]
			if lo == hi {
				continue // 동일 값 사이는 분할 불가
			}

			leftMean := leftSum / float64(k)
			rightMean := (sum - leftSum) / float64(n-k)

			// 가중 평균 제곱 감소 (상수항 제외)
			score := float64(k)*leftMean*leftMean + float64(n-k)*rightMean*rightMean
			if score > bestScore {
				bestScore = score
				best = &Stump{
					Feature:   f,
					Threshold: (lo + hi) / 2,
					Left:      leftMean,
					Right:     rightMean,
				}
			}
		}
	}

	return best, nil
}
