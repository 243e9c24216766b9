package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/internal/validation"
	"github.com/wonny/argos/pkg/logger"
)

// ValidationHandler handles opportunity backtesting endpoints
// ⭐ SSOT: 검증 API 핸들러는 이 구조체에서만
type ValidationHandler struct {
	validator      *validation.Validator
	store          contracts.OpportunityStore
	defaultPeriods []int
	logger         *logger.Logger
}

// NewValidationHandler creates a new validation handler
func NewValidationHandler(validator *validation.Validator, store contracts.OpportunityStore, defaultPeriods []int, log *logger.Logger) *ValidationHandler {
	return &ValidationHandler{
		validator:      validator,
		store:          store,
		defaultPeriods: defaultPeriods,
		logger:         log,
	}
}

// GetOpportunity returns one stored opportunity
// GET /api/opportunities/:id
func (h *ValidationHandler) GetOpportunity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid opportunity id")
		return
	}

	opp, err := h.store.GetOpportunity(r.Context(), id)
	if errors.Is(err, contracts.ErrNotAvailable) {
		respondError(w, http.StatusNotFound, "opportunity not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to load opportunity")
		respondError(w, http.StatusInternalServerError, "failed to load opportunity")
		return
	}

	respondJSON(w, http.StatusOK, opp)
}

// validateBatchRequest is the POST /api/validation/batch body
type validateBatchRequest struct {
	OpportunityIDs    []int64 `json:"opportunity_ids"`
	ValidationPeriods []int   `json:"validation_periods,omitempty"` // 비면 서버 기본값
}

// ValidateBatch backtests opportunities over the requested periods
// POST /api/validation/batch
//
// (opportunity × period) 전 쌍의 결과를 돌려준다. pending도 에러도 쌍 단위로
// 태그될 뿐 배치 자체는 항상 200이다.
func (h *ValidationHandler) ValidateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req validateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.OpportunityIDs) == 0 {
		respondError(w, http.StatusBadRequest, "opportunity_ids is required")
		return
	}

	periods := req.ValidationPeriods
	if len(periods) == 0 {
		periods = h.defaultPeriods
	}
	for _, p := range periods {
		if p <= 0 {
			respondError(w, http.StatusBadRequest, "validation_periods must be positive trading-day counts")
			return
		}
	}

	opportunities, err := h.store.ListOpportunities(ctx, req.OpportunityIDs)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load opportunities for validation")
		respondError(w, http.StatusInternalServerError, "failed to load opportunities")
		return
	}

	outcomes := h.validator.ValidateBatch(ctx, opportunities, periods)

	validated, pending, failed := 0, 0, 0
	for _, outcome := range outcomes {
		switch {
		case outcome.Record != nil:
			validated++
		case outcome.Pending:
			pending++
		default:
			failed++
		}
	}

	h.logger.WithFields(map[string]interface{}{
		"requested": len(req.OpportunityIDs),
		"loaded":    len(opportunities),
		"validated": validated,
		"pending":   pending,
		"failed":    failed,
	}).Info("Validation batch finished")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"outcomes": outcomes,
		"summary": map[string]int{
			"validated": validated,
			"pending":   pending,
			"failed":    failed,
		},
	})
}
