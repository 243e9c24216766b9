package training

import (
	"encoding/json"
	"fmt"
)

// Algorithm names (closed set)
const (
	AlgorithmRandomForest  = "randomforest"  // 트리 앙상블
	AlgorithmGradientBoost = "gradientboost" // 그래디언트 부스팅
	AlgorithmNeuralNet     = "neuralnet"     // 피드포워드 신경망
)

// Classifier is the capability set every algorithm variant implements
// ⭐ SSOT: 알고리즘 추가는 이 인터페이스 구현 + 레지스트리 등록으로 끝난다.
// 오케스트레이션 코드는 건드리지 않는다.
type Classifier interface {
	// Fit trains on a feature matrix and binary labels
	Fit(features [][]float64, labels []int) error

	// PredictProba returns P(label=1) for a single feature vector
	PredictProba(features []float64) (float64, error)
}

// builders maps algorithm names to constructors
var builders = map[string]func() Classifier{
	AlgorithmRandomForest:  func() Classifier { return NewRandomForest() },
	AlgorithmGradientBoost: func() Classifier { return NewGradientBoost() },
	AlgorithmNeuralNet:     func() Classifier { return NewNeuralNet() },
}

// New creates a classifier by algorithm name
func New(algorithm string) (Classifier, error) {
	builder, ok := builders[algorithm]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm: %s", algorithm)
	}
	return builder(), nil
}

// Algorithms returns the names of all registered algorithms
func Algorithms() []string {
	return []string{AlgorithmRandomForest, AlgorithmGradientBoost, AlgorithmNeuralNet}
}

// Encode serializes a fitted classifier into a model artifact
func Encode(c Classifier) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

// Decode reconstructs a classifier from a model artifact
func Decode(algorithm string, artifact []byte) (Classifier, error) {
	c, err := New(algorithm)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(artifact, c); err != nil {
		return nil, fmt.Errorf("decode %s artifact: %w", algorithm, err)
	}
	return c, nil
}
