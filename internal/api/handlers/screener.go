package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/pkg/logger"
)

// runEnqueuer hands accepted runs to the worker queue
type runEnqueuer interface {
	Enqueue(ctx context.Context, runID string, req contracts.RunRequest) error
}

// ScreenerHandler handles screener run API endpoints
// ⭐ SSOT: 스크리너 API 핸들러는 이 구조체에서만
type ScreenerHandler struct {
	queue    runEnqueuer
	status   contracts.RunStatusStore
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewScreenerHandler creates a new screener handler
func NewScreenerHandler(queue runEnqueuer, status contracts.RunStatusStore, log *logger.Logger) *ScreenerHandler {
	return &ScreenerHandler{
		queue:  queue,
		status: status,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: log,
	}
}

// StartRun accepts a screener run and queues it for a worker
// POST /api/screener/runs
func (h *ScreenerHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req contracts.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TargetReturnPct <= 0 {
		respondError(w, http.StatusBadRequest, "target_return_pct must be positive")
		return
	}
	if req.HorizonDays <= 0 {
		respondError(w, http.StatusBadRequest, "horizon_days must be positive")
		return
	}
	if req.RiskTolerance == "" {
		req.RiskTolerance = contracts.RiskModerate
	}
	if !req.RiskTolerance.IsValid() {
		respondError(w, http.StatusBadRequest, "risk_tolerance must be conservative, moderate or aggressive")
		return
	}

	runID := uuid.NewString()

	// 워커가 집기 전에도 폴링이 가능하도록 PENDING을 먼저 기록
	if err := h.status.Put(ctx, &contracts.RunStatus{
		RunID: runID, State: contracts.RunPending, UpdatedAt: time.Now(),
	}); err != nil {
		h.logger.WithError(err).Error("Failed to record pending run status")
		respondError(w, http.StatusInternalServerError, "failed to register run")
		return
	}

	if err := h.queue.Enqueue(ctx, runID, req); err != nil {
		h.logger.WithError(err).Error("Failed to enqueue screener run")
		respondError(w, http.StatusInternalServerError, "failed to enqueue run")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"run_id":            runID,
		"target_return_pct": req.TargetReturnPct,
		"horizon_days":      req.HorizonDays,
		"risk_tolerance":    req.RiskTolerance,
	}).Info("Screener run accepted")

	respondJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"state":  string(contracts.RunPending),
	})
}

// GetRunStatus returns the latest status of a run
// GET /api/screener/runs/:id
func (h *ScreenerHandler) GetRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	status, err := h.status.Get(r.Context(), runID)
	if errors.Is(err, contracts.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load run status")
		respondError(w, http.StatusInternalServerError, "failed to load run status")
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// StreamRunStatus streams run status updates over a websocket
// GET /api/screener/runs/:id/stream
//
// 터미널 상태를 보내고 나면 서버가 연결을 닫는다. 폴링 대신 구독을 원하는
// 프런트엔드용 경로이고, 연결이 끊겨도 GET으로 최종 상태를 복구할 수 있다.
func (h *ScreenerHandler) StreamRunStatus(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	if _, err := h.status.Get(r.Context(), runID); errors.Is(err, contracts.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe, err := h.status.Subscribe(ctx, runID)
	if err != nil {
		h.logger.WithError(err).Error("Run status subscribe failed")
		return
	}
	defer unsubscribe()

	// 클라이언트 쪽 종료 감지
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case status, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(status); err != nil {
				return
			}
			if status.State.IsTerminal() {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(status.State)))
				return
			}
		}
	}
}
