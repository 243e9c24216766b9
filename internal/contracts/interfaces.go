package contracts

import (
	"context"
	"time"
)

// FeatureProvider supplies point-in-time feature vectors and prices
// ⭐ SSOT: 피처/가격 조회 인터페이스
// FeatureVector는 as-of 날짜 이전 데이터만으로 계산된 고정폭 벡터를 돌려준다.
// 인터페이스 자체가 offset-bound라서 룩어헤드가 구조적으로 불가능하다.
type FeatureProvider interface {
	FeatureVector(ctx context.Context, symbol string, asOf time.Time, schemaVersion int) ([]float64, error)
	Price(ctx context.Context, symbol string, date time.Time) (float64, error)
	PriceSeries(ctx context.Context, symbol string, from, to time.Time) (*PriceSeries, error)
}

// ModelRegistry persists and retrieves trained model artifacts
// ⭐ SSOT: 모델 저장/조회 인터페이스
// Register는 같은 (symbol, target_config, algorithm) 키의 기존 활성 모델
// 비활성화와 새 모델 삽입을 키 단위로 원자적으로 수행해야 한다.
type ModelRegistry interface {
	Register(ctx context.Context, model *TrainedModel) (string, error)
	Load(ctx context.Context, id string) (*TrainedModel, error)
	Deactivate(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]*TrainedModel, error)
	GetOrCreateTargetConfig(ctx context.Context, tc TargetConfiguration) (*TargetConfiguration, error)
}

// OpportunityStore persists opportunities and validation records
// ⭐ SSOT: 기회/검증 레코드 저장 인터페이스
type OpportunityStore interface {
	SaveOpportunity(ctx context.Context, opp *Opportunity) (int64, error)
	GetOpportunity(ctx context.Context, id int64) (*Opportunity, error)
	ListOpportunities(ctx context.Context, ids []int64) ([]Opportunity, error)
	SaveValidationRecord(ctx context.Context, rec *ValidationRecord) error
	ListPendingValidation(ctx context.Context, periodDays int) ([]Opportunity, error)
}

// RunStatusStore publishes and serves screener run state
// 폴링과 구독을 모두 지원한다.
type RunStatusStore interface {
	Put(ctx context.Context, status *RunStatus) error
	Get(ctx context.Context, runID string) (*RunStatus, error)
	Subscribe(ctx context.Context, runID string) (<-chan *RunStatus, func(), error)
}

// ProgressSink receives orchestrator progress events
// 공유 메모리 변경 대신 메시지 전달로 진행률을 전파한다.
type ProgressSink interface {
	Publish(event ProgressEvent)
}

// ProgressFunc adapts a function to the ProgressSink interface
type ProgressFunc func(event ProgressEvent)

// Publish implements ProgressSink
func (f ProgressFunc) Publish(event ProgressEvent) {
	f(event)
}
