package contracts

import "time"

// FeatureSchemaVersion 현재 피처 스키마 버전
// 컬럼 구성이 바뀌면 반드시 올린다. Predictor는 모델의 학습 버전과 다르면
// 재해석하지 않고 실패한다.
const FeatureSchemaVersion = 1

// TrainingMetrics 홀드아웃 평가 지표
type TrainingMetrics struct {
	Accuracy       float64 `json:"accuracy"`
	F1             float64 `json:"f1"`
	PositiveRate   float64 `json:"positive_rate"` // 학습 테이블 양성 비율 (skew 진단)
	TrainSamples   int     `json:"train_samples"`
	HoldoutSamples int     `json:"holdout_samples"`
}

// TrainedModel 학습 완료된 분류기 아티팩트 + 메타데이터
// Model Registry가 소유하며 ID로만 참조된다.
type TrainedModel struct {
	ID                   string          `json:"id"`
	Symbol               string          `json:"symbol"`
	TargetConfigID       int64           `json:"target_config_id"`
	Algorithm            string          `json:"algorithm"`
	FeatureSchemaVersion int             `json:"feature_schema_version"`
	Metrics              TrainingMetrics `json:"metrics"`
	Artifact             []byte          `json:"artifact"` // 직렬화된 분류기 파라미터
	IsActive             bool            `json:"is_active"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Prediction 단일 (model, symbol, as-of) 예측 결과
// 스크리너 패스마다 생성되는 일시적 값.
type Prediction struct {
	ModelID        string    `json:"model_id"`
	Symbol         string    `json:"symbol"`
	AsOfDate       time.Time `json:"as_of_date"`
	PredictedClass int       `json:"predicted_class"`
	Confidence     float64   `json:"confidence"` // [0,1], 예측 클래스의 확률 질량
	Features       []float64 `json:"features,omitempty"`
}

// IsPositive returns whether the prediction is for the positive class
func (p Prediction) IsPositive() bool {
	return p.PredictedClass == LabelPositive
}
