package training

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separableSet builds a linearly separable binary problem
// 첫 번째 피처가 0.5를 넘으면 양성.
func separableSet(n int, seed int64) (features [][]float64, labels []int) {
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < n; i++ {
		x := []float64{rng.Float64(), rng.Float64()*2 - 1, rng.NormFloat64()}
		label := 0
		if x[0] > 0.5 {
			label = 1
		}
		features = append(features, x)
		labels = append(labels, label)
	}
	return features, labels
}

func TestClassifiers_LearnSeparablePattern(t *testing.T) {
	features, labels := separableSet(200, 7)

	for _, algorithm := range Algorithms() {
		t.Run(algorithm, func(t *testing.T) {
			c, err := New(algorithm)
			require.NoError(t, err)
			require.NoError(t, c.Fit(features, labels))

			// 명확히 갈리는 두 지점에서 확률 순서 확인
			low, err := c.PredictProba([]float64{0.1, 0, 0})
			require.NoError(t, err)
			high, err := c.PredictProba([]float64{0.9, 0, 0})
			require.NoError(t, err)

			assert.Greater(t, high, low, "P(positive) must increase with the separating feature")
			assert.GreaterOrEqual(t, low, 0.0)
			assert.LessOrEqual(t, high, 1.0)
			assert.Greater(t, high, 0.5)
			assert.Less(t, low, 0.5)
		})
	}
}

func TestClassifiers_ArtifactRoundTrip(t *testing.T) {
	features, labels := separableSet(120, 11)
	probe := []float64{0.7, 0.3, -0.2}

	for _, algorithm := range Algorithms() {
		t.Run(algorithm, func(t *testing.T) {
			c, err := New(algorithm)
			require.NoError(t, err)
			require.NoError(t, c.Fit(features, labels))

			want, err := c.PredictProba(probe)
			require.NoError(t, err)

			artifact, err := Encode(c)
			require.NoError(t, err)

			restored, err := Decode(algorithm, artifact)
			require.NoError(t, err)

			got, err := restored.PredictProba(probe)
			require.NoError(t, err)
			assert.InDelta(t, want, got, 1e-9, "restored classifier must predict identically")
		})
	}
}

func TestClassifiers_DimensionMismatch(t *testing.T) {
	features, labels := separableSet(60, 3)

	for _, algorithm := range Algorithms() {
		t.Run(algorithm, func(t *testing.T) {
			c, err := New(algorithm)
			require.NoError(t, err)
			require.NoError(t, c.Fit(features, labels))

			_, err = c.PredictProba([]float64{1, 2})
			assert.Error(t, err)
		})
	}
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	_, err := New("svm")
	assert.Error(t, err)
}

func TestClassifiers_NotFitted(t *testing.T) {
	for _, algorithm := range Algorithms() {
		t.Run(algorithm, func(t *testing.T) {
			c, err := New(algorithm)
			require.NoError(t, err)
			_, err = c.PredictProba([]float64{1, 2, 3})
			assert.Error(t, err)
		})
	}
}

func TestFitStump_FindsSeparatingSplit(t *testing.T) {
	features := [][]float64{{0.1}, {0.2}, {0.3}, {0.8}, {0.9}, {1.0}}
	targets := []float64{0, 0, 0, 1, 1, 1}

	stump, err := fitStump(features, targets, []int{0})
	require.NoError(t, err)

	assert.Equal(t, 0, stump.Feature)
	assert.Greater(t, stump.Threshold, 0.3)
	assert.Less(t, stump.Threshold, 0.8)
	assert.InDelta(t, 0.0, stump.Left, 1e-9)
	assert.InDelta(t, 1.0, stump.Right, 1e-9)
}
