package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argos/internal/contracts"
	"github.com/wonny/argos/internal/runstore"
	"github.com/wonny/argos/internal/validation"
	"github.com/wonny/argos/pkg/config"
	"github.com/wonny/argos/pkg/logger"
)

// fakeQueue records enqueued runs
type fakeQueue struct {
	enqueued []string
}

func (q *fakeQueue) Enqueue(ctx context.Context, runID string, req contracts.RunRequest) error {
	q.enqueued = append(q.enqueued, runID)
	return nil
}

// fakeOppStore serves fixed opportunities
type fakeOppStore struct {
	opportunities map[int64]contracts.Opportunity
	records       []contracts.ValidationRecord
}

func (s *fakeOppStore) SaveOpportunity(ctx context.Context, opp *contracts.Opportunity) (int64, error) {
	return 0, nil
}

func (s *fakeOppStore) GetOpportunity(ctx context.Context, id int64) (*contracts.Opportunity, error) {
	opp, ok := s.opportunities[id]
	if !ok {
		return nil, contracts.ErrNotAvailable
	}
	return &opp, nil
}

func (s *fakeOppStore) ListOpportunities(ctx context.Context, ids []int64) ([]contracts.Opportunity, error) {
	var out []contracts.Opportunity
	for _, id := range ids {
		if opp, ok := s.opportunities[id]; ok {
			out = append(out, opp)
		}
	}
	return out, nil
}

func (s *fakeOppStore) SaveValidationRecord(ctx context.Context, rec *contracts.ValidationRecord) error {
	s.records = append(s.records, *rec)
	return nil
}

func (s *fakeOppStore) ListPendingValidation(ctx context.Context, periodDays int) ([]contracts.Opportunity, error) {
	return nil, nil
}

// flatProvider serves a flat price series for every symbol
type flatProvider struct{}

func (p *flatProvider) FeatureVector(ctx context.Context, symbol string, asOf time.Time, v int) ([]float64, error) {
	return nil, contracts.ErrNotAvailable
}

func (p *flatProvider) Price(ctx context.Context, symbol string, date time.Time) (float64, error) {
	return 100, nil
}

func (p *flatProvider) PriceSeries(ctx context.Context, symbol string, from, to time.Time) (*contracts.PriceSeries, error) {
	series := &contracts.PriceSeries{Symbol: symbol}
	for i := 0; i < 40; i++ {
		series.Bars = append(series.Bars, contracts.PriceBar{
			Date: from.AddDate(0, 0, i), Close: 100 + float64(i), Volume: 1000,
		})
	}
	return series, nil
}

func testLogger() *logger.Logger {
	return logger.New(&config.Config{LogLevel: "error", LogFormat: "json"})
}

func newScreenerRig() (*ScreenerHandler, *fakeQueue, *runstore.Memory, *mux.Router) {
	queue := &fakeQueue{}
	status := runstore.NewMemory()
	h := NewScreenerHandler(queue, status, testLogger())

	r := mux.NewRouter()
	r.HandleFunc("/api/screener/runs", h.StartRun).Methods("POST")
	r.HandleFunc("/api/screener/runs/{id}", h.GetRunStatus).Methods("GET")
	r.HandleFunc("/api/screener/runs/{id}/stream", h.StreamRunStatus).Methods("GET")
	return h, queue, status, r
}

func TestStartRun(t *testing.T) {
	_, queue, status, router := newScreenerRig()

	body := `{"target_return_pct": 5, "horizon_days": 10, "risk_tolerance": "moderate"}`
	req := httptest.NewRequest("POST", "/api/screener/runs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	runID := resp["run_id"]
	require.NotEmpty(t, runID)
	assert.Equal(t, "PENDING", resp["state"])
	assert.Equal(t, []string{runID}, queue.enqueued)

	// 큐에 들어가기 전부터 폴링 가능해야 한다
	st, err := status.Get(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, contracts.RunPending, st.State)
}

func TestStartRun_BadRequests(t *testing.T) {
	_, queue, _, router := newScreenerRig()

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"zero target return", `{"horizon_days": 10}`},
		{"zero horizon", `{"target_return_pct": 5}`},
		{"unknown tolerance", `{"target_return_pct": 5, "horizon_days": 10, "risk_tolerance": "yolo"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/screener/runs", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, queue.enqueued, "rejected requests must not reach the queue")
}

func TestGetRunStatus(t *testing.T) {
	_, _, status, router := newScreenerRig()

	req := httptest.NewRequest("GET", "/api/screener/runs/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, status.Put(context.Background(), &contracts.RunStatus{
		RunID: "run-1", State: contracts.RunRunning, Phase: contracts.PhaseTraining, Progress: 42,
	}))

	req = httptest.NewRequest("GET", "/api/screener/runs/run-1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var st contracts.RunStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, contracts.RunRunning, st.State)
	assert.Equal(t, 42, st.Progress)
}

func TestStreamRunStatus(t *testing.T) {
	_, _, status, router := newScreenerRig()
	ctx := context.Background()

	require.NoError(t, status.Put(ctx, &contracts.RunStatus{RunID: "run-1", State: contracts.RunRunning, Progress: 10}))

	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/screener/runs/run-1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// 구독 직후 현재 상태가 내려온다
	var first contracts.RunStatus
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, contracts.RunRunning, first.State)

	require.NoError(t, status.Put(ctx, &contracts.RunStatus{RunID: "run-1", State: contracts.RunSucceeded, Progress: 100}))

	var last contracts.RunStatus
	require.NoError(t, conn.ReadJSON(&last))
	assert.Equal(t, contracts.RunSucceeded, last.State)
}

func newValidationRig(opportunities map[int64]contracts.Opportunity) (*fakeOppStore, *mux.Router) {
	store := &fakeOppStore{opportunities: opportunities}
	validator := validation.NewValidator(&flatProvider{}, store, validation.DefaultConfig(), zerolog.Nop())
	h := NewValidationHandler(validator, store, []int{5, 10, 21}, testLogger())

	r := mux.NewRouter()
	r.HandleFunc("/api/opportunities/{id}", h.GetOpportunity).Methods("GET")
	r.HandleFunc("/api/validation/batch", h.ValidateBatch).Methods("POST")
	return store, r
}

func TestGetOpportunity(t *testing.T) {
	_, router := newValidationRig(map[int64]contracts.Opportunity{
		7: {ID: 7, Symbol: "XYZ", Recommendation: contracts.RecBuy},
	})

	req := httptest.NewRequest("GET", "/api/opportunities/7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var opp contracts.Opportunity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opp))
	assert.Equal(t, "XYZ", opp.Symbol)

	req = httptest.NewRequest("GET", "/api/opportunities/99", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest("GET", "/api/opportunities/abc", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateBatch(t *testing.T) {
	oppDate := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	store, router := newValidationRig(map[int64]contracts.Opportunity{
		1: {ID: 1, Symbol: "XYZ", OpportunityDate: oppDate, Recommendation: contracts.RecBuy, PredictedReturn: 0.05},
	})

	payload, _ := json.Marshal(map[string]interface{}{
		"opportunity_ids":    []int64{1},
		"validation_periods": []int{5, 10},
	})
	req := httptest.NewRequest("POST", "/api/validation/batch", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Outcomes []contracts.ValidationOutcome `json:"outcomes"`
		Summary  map[string]int                `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Outcomes, 2, "full cross-product per pair")
	assert.Equal(t, 2, resp.Summary["validated"])
	assert.Len(t, store.records, 2)
}

func TestValidateBatch_BadRequests(t *testing.T) {
	_, router := newValidationRig(nil)

	cases := []string{
		`{`,
		`{"opportunity_ids": []}`,
		`{"opportunity_ids": [1], "validation_periods": [0]}`,
	}
	for _, body := range cases {
		req := httptest.NewRequest("POST", "/api/validation/batch", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}
