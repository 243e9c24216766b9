package contracts

import "time"

// RunState 스크리너 실행 상태 기계
// PENDING → RUNNING → {SUCCEEDED, FAILED}
type RunState string

const (
	RunPending   RunState = "PENDING"
	RunRunning   RunState = "RUNNING"
	RunSucceeded RunState = "SUCCEEDED"
	RunFailed    RunState = "FAILED"
)

// IsTerminal returns whether the state is terminal
func (s RunState) IsTerminal() bool {
	return s == RunSucceeded || s == RunFailed
}

// RunPhase RUNNING 상태의 단계
type RunPhase string

const (
	PhaseFetchingUniverse RunPhase = "fetching_universe"
	PhaseTraining         RunPhase = "training"
	PhasePredicting       RunPhase = "predicting"
)

// Description returns a human-readable phase label
func (p RunPhase) Description() string {
	switch p {
	case PhaseFetchingUniverse:
		return "후보 종목 조회"
	case PhaseTraining:
		return "모델 학습"
	case PhasePredicting:
		return "예측/필터링"
	default:
		return string(p)
	}
}

// RunRequest 스크리너 실행 요청
type RunRequest struct {
	TargetReturnPct     float64       `json:"target_return_pct"`
	HorizonDays         int           `json:"horizon_days"`
	RiskTolerance       RiskTolerance `json:"risk_tolerance"`
	Universe            []string      `json:"universe,omitempty"`             // 비면 저장된 기본 유니버스 사용
	ConfidenceThreshold float64       `json:"confidence_threshold,omitempty"` // 0이면 risk tolerance 기본값
}

// Threshold returns the effective confidence threshold
func (r RunRequest) Threshold() float64 {
	if r.ConfidenceThreshold > 0 {
		return r.ConfidenceThreshold
	}
	return r.RiskTolerance.ConfidenceThreshold()
}

// SymbolError 종목 단위 실패 기록
// 종목 실패는 런 실패로 승격되지 않고 결과에 축적된다.
type SymbolError struct {
	Symbol string   `json:"symbol"`
	Phase  RunPhase `json:"phase"`
	Reason string   `json:"reason"`
}

// RunResult 스크리너 실행 결과
// 기회가 없어도 성공이다. "0건 발견"과 "런 실패"는 구분되어야 한다.
type RunResult struct {
	RunID         string        `json:"run_id"`
	Opportunities []Opportunity `json:"opportunities"` // confidence 내림차순, 동률은 심볼 오름차순
	Errors        []SymbolError `json:"errors"`
	TrainedModels int           `json:"trained_models"`
	Universe      int           `json:"universe"`
	Partial       bool          `json:"partial"` // soft limit 초과로 일부 종목 생략
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
}

// ProgressEvent 진행률 이벤트
// Progress는 단조 비감소 0–100.
type ProgressEvent struct {
	RunID    string   `json:"run_id"`
	Phase    RunPhase `json:"phase"`
	Progress int      `json:"progress"`
	Message  string   `json:"message,omitempty"`
}

// RunStatus 폴링/구독용 상태 페이로드
type RunStatus struct {
	RunID     string     `json:"run_id"`
	State     RunState   `json:"state"`
	Phase     RunPhase   `json:"phase,omitempty"`
	Progress  int        `json:"progress"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
