package contracts

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrNotAvailable 요청 날짜의 가격/피처가 없음
	ErrNotAvailable = errors.New("data not available")

	// ErrModelNotFound 모델이 없거나 비활성
	ErrModelNotFound = errors.New("model not found or inactive")

	// ErrValidationPending 전방 데이터가 아직 없어 검증 불가 (정상 상태, 에러 아님)
	ErrValidationPending = errors.New("validation pending: forward data not yet available")

	// ErrRunNotFound 알 수 없는 run ID
	ErrRunNotFound = errors.New("run not found")
)

// InsufficientDataError 라벨 테이블이 최소 행 수 미달
// 부분 테이블을 조용히 쓰지 않고 종목 단위로 보고한다.
type InsufficientDataError struct {
	Symbol  string
	Samples int
	Minimum int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: %d samples, need %d", e.Symbol, e.Samples, e.Minimum)
}

// TrainingFailure 알고리즘 단위 학습 실패
// 같은 종목의 다른 알고리즘 시도를 중단시키지 않는다.
type TrainingFailure struct {
	Symbol    string
	Algorithm string
	Reason    string
	Err       error
}

func (e *TrainingFailure) Error() string {
	return fmt.Sprintf("training failed for %s/%s: %s", e.Symbol, e.Algorithm, e.Reason)
}

func (e *TrainingFailure) Unwrap() error {
	return e.Err
}

// SchemaMismatchError 모델 학습 시점과 현재 피처 스키마 버전 불일치
// 컬럼을 재해석하지 않고 실패한다.
type SchemaMismatchError struct {
	ModelVersion   int
	CurrentVersion int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("feature schema mismatch: model v%d, current v%d", e.ModelVersion, e.CurrentVersion)
}
