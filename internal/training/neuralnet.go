package training

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// NeuralNet single-hidden-layer feed-forward classifier
// 입력 표준화 → tanh 은닉층 → 시그모이드 출력. 전체 배치 경사하강으로 학습.
type NeuralNet struct {
	HiddenSize   int     `json:"hidden_size"`
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	Seed         int64   `json:"seed"`

	// Fitted parameters
	Dim  int         `json:"dim"`
	Mean []float64   `json:"mean"` // 피처 표준화 파라미터
	Std  []float64   `json:"std"`
	W1   [][]float64 `json:"w1"` // dim × hidden
	B1   []float64   `json:"b1"`
	W2   []float64   `json:"w2"` // hidden × 1
	B2   float64     `json:"b2"`
}

// NewNeuralNet creates an unfitted network with default hyperparameters
func NewNeuralNet() *NeuralNet {
	return &NeuralNet{
		HiddenSize:   8,
		Epochs:       300,
		LearningRate: 0.05,
		Seed:         42,
	}
}

// Fit implements Classifier
func (nn *NeuralNet) Fit(features [][]float64, labels []int) error {
	n := len(features)
	if n == 0 {
		return fmt.Errorf("neuralnet: empty training set")
	}
	dim := len(features[0])
	if dim == 0 {
		return fmt.Errorf("neuralnet: empty feature vector")
	}
	nn.Dim = dim

	nn.fitStandardizer(features)

	// 표준화된 입력 행렬
	x := mat.NewDense(n, dim, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < dim; j++ {
			x.Set(i, j, nn.standardize(features[i][j], j))
		}
	}

	y := mat.NewVecDense(n, nil)
	for i, l := range labels {
		y.SetVec(i, float64(l))
	}

	// Xavier 초기화
	rng := rand.New(rand.NewSource(nn.Seed))
	h := nn.HiddenSize
	scale := math.Sqrt(2.0 / float64(dim+h))

	w1 := mat.NewDense(dim, h, nil)
	for i := 0; i < dim; i++ {
		for j := 0; j < h; j++ {
			w1.Set(i, j, rng.NormFloat64()*scale)
		}
	}
	b1 := mat.NewVecDense(h, nil)
	w2 := mat.NewVecDense(h, nil)
	for j := 0; j < h; j++ {
		w2.SetVec(j, rng.NormFloat64()*scale)
	}
	b2 := 0.0

	z1 := mat.NewDense(n, h, nil)
	a1 := mat.NewDense(n, h, nil)
	dz1 := mat.NewDense(n, h, nil)

	for epoch := 0; epoch < nn.Epochs; epoch++ {
		// Forward
		z1.Mul(x, w1)
		for i := 0; i < n; i++ {
			for j := 0; j < h; j++ {
				a1.Set(i, j, math.Tanh(z1.At(i, j)+b1.AtVec(j)))
			}
		}

		// dz2 = sigmoid(a1·w2 + b2) − y
		dz2 := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			row := a1.RowView(i)
			p := sigmoid(mat.Dot(row, w2) + b2)
			dz2.SetVec(i, p-y.AtVec(i))
		}

		// Hidden layer gradient: dz1 = (dz2·w2ᵀ) ⊙ (1 − a1²)
		for i := 0; i < n; i++ {
			for j := 0; j < h; j++ {
				a := a1.At(i, j)
				dz1.Set(i, j, dz2.AtVec(i)*w2.AtVec(j)*(1-a*a))
			}
		}

		lr := nn.LearningRate / float64(n)

		// w2 ← w2 − lr·a1ᵀ·dz2, b2 동일
		var gw2 mat.VecDense
		gw2.MulVec(a1.T(), dz2)
		w2.AddScaledVec(w2, -lr, &gw2)
		b2 -= lr * mat.Sum(dz2)

		// w1 ← w1 − lr·xᵀ·dz1, b1은 컬럼 합
		var gw1 mat.Dense
		gw1.Mul(x.T(), dz1)
		gw1.Scale(lr, &gw1)
		w1.Sub(w1, &gw1)
		for j := 0; j < h; j++ {
			var colSum float64
			for i := 0; i < n; i++ {
				colSum += dz1.At(i, j)
			}
			b1.SetVec(j, b1.AtVec(j)-lr*colSum)
		}
	}

	// 학습된 파라미터를 직렬화 가능한 형태로 저장
	nn.W1 = make([][]float64, dim)
	for i := 0; i < dim; i++ {
		nn.W1[i] = make([]float64, h)
		for j := 0; j < h; j++ {
			nn.W1[i][j] = w1.At(i, j)
		}
	}
	nn.B1 = make([]float64, h)
	nn.W2 = make([]float64, h)
	for j := 0; j < h; j++ {
		nn.B1[j] = b1.AtVec(j)
		nn.W2[j] = w2.AtVec(j)
	}
	nn.B2 = b2

	return nil
}

// PredictProba implements Classifier
func (nn *NeuralNet) PredictProba(features []float64) (float64, error) {
	if nn.W1 == nil {
		return 0, fmt.Errorf("neuralnet: not fitted")
	}
	if len(features) != nn.Dim {
		return 0, fmt.Errorf("neuralnet: expected %d features, got %d", nn.Dim, len(features))
	}

	h := len(nn.B1)
	z2 := nn.B2
	for j := 0; j < h; j++ {
		z1 := nn.B1[j]
		for i := 0; i < nn.Dim; i++ {
			z1 += nn.standardize(features[i], i) * nn.W1[i][j]
		}
		z2 += math.Tanh(z1) * nn.W2[j]
	}

	return clamp01(sigmoid(z2)), nil
}

// fitStandardizer computes per-column mean/std
func (nn *NeuralNet) fitStandardizer(features [][]float64) {
	nn.Mean = make([]float64, nn.Dim)
	nn.Std = make([]float64, nn.Dim)

	col := make([]float64, len(features))
	for j := 0; j < nn.Dim; j++ {
		for i := range features {
			col[i] = features[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		nn.Mean[j] = mean
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		nn.Std[j] = std
	}
}

func (nn *NeuralNet) standardize(v float64, j int) float64 {
	return (v - nn.Mean[j]) / nn.Std[j]
}
