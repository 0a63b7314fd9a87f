package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/analysis"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/batch"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/cache"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clearance"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clock"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/opportunity"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/pattern"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/repository/memstore"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/scoring"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/settings"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/telemetry"
)

var testNow = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	engine *gin.Engine
	store  *memstore.Store
	batch  *batch.Orchestrator
	reg    *prometheus.Registry
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memstore.New()
	clk := clock.NewFixed(testNow)
	reg := prometheus.NewRegistry()
	tel := telemetry.NewCollector(reg)
	provider := &settings.Provider{Repo: store, Cache: cache.NewMemoryStore(), Telemetry: tel}
	clr := &clearance.Detector{Repo: store, Opportunities: store, Clock: clk}
	mgr := &opportunity.Manager{Repo: store, Clock: clk}
	analyzer := &analysis.Analyzer{
		Snapshots:     store,
		Patterns:      &pattern.Detector{Repo: store},
		Clearance:     clr,
		Scoring:       &scoring.Engine{Settings: provider},
		Opportunities: mgr,
		Clock:         clk,
	}
	orch := &batch.Orchestrator{Runs: store, Analyzer: analyzer, Products: store, Clock: clk, Telemetry: tel}

	r := gin.New()
	r.Use(RequireWriteAuth(secret))
	(&HealthHandler{Gatherer: reg}).Register(r)
	(&RunHandler{Repo: store, Batch: orch, Defaults: batch.Options{Mode: batch.ModeParallel, MaxConcurrent: 2, ContinueOnError: true}}).Register(r)
	(&OpportunityHandler{Repo: store, Manager: mgr}).Register(r)
	(&PatternHandler{Repo: store, Validator: &pattern.Validator{Repo: store, Clock: clk}}).Register(r)
	(&ClearanceHandler{Repo: store, Detector: clr}).Register(r)
	(&SettingsHandler{Provider: provider}).Register(r)
	return &testEnv{engine: r, store: store, batch: orch, reg: reg}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	var env envelope
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, "")

	code, _ := env.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = env.do(t, http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	_, err := env.batch.Run(context.Background(), []string{"ghost"}, batch.Options{})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `bargain_analysis_runs_total{status="partial"} 1`)
}

func TestWriteRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, "s3cret")

	code, _ := env.do(t, http.MethodGet, "/api/v1/runs", nil, "")
	assert.Equal(t, http.StatusOK, code)

	body := map[string]any{"product_ids": []string{"ghost"}, "wait": true}
	code, env1 := env.do(t, http.MethodPost, "/api/v1/runs", body, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "missing bearer token", env1.Message)

	code, _ = env.do(t, http.MethodPost, "/api/v1/runs", body, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, code)

	bad, err := JWT{Secret: []byte("other")}.Sign("mallory")
	require.NoError(t, err)
	code, _ = env.do(t, http.MethodPost, "/api/v1/runs", body, bad)
	assert.Equal(t, http.StatusUnauthorized, code)

	tok, err := JWT{Secret: []byte("s3cret")}.Sign("alice")
	require.NoError(t, err)
	code, res := env.do(t, http.MethodPost, "/api/v1/runs", body, tok)
	require.Equal(t, http.StatusOK, code)
	var report batch.Report
	require.NoError(t, json.Unmarshal(res.Data, &report))
	assert.Equal(t, "alice", report.Run.TriggeredBy)
}

func TestStartRunWaitAndRetry(t *testing.T) {
	env := newTestEnv(t, "")

	code, res := env.do(t, http.MethodPost, "/api/v1/runs", map[string]any{
		"product_ids": []string{"ghost", "phantom"},
		"wait":        true,
	}, "")
	require.Equal(t, http.StatusOK, code)
	var report batch.Report
	require.NoError(t, json.Unmarshal(res.Data, &report))
	assert.Equal(t, models.RunStatusPartial, report.Run.Status)
	assert.Equal(t, "api", report.Run.TriggeredBy)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, analysis.KindProductNotFound, report.Errors[0].Kind)

	code, _ = env.do(t, http.MethodGet, "/api/v1/runs/"+report.Run.ID, nil, "")
	assert.Equal(t, http.StatusOK, code)

	code, res = env.do(t, http.MethodPost, "/api/v1/runs/"+report.Run.ID+"/retry", map[string]any{"wait": true}, "")
	require.Equal(t, http.StatusOK, code)
	var retried batch.Report
	require.NoError(t, json.Unmarshal(res.Data, &retried))
	require.NotNil(t, retried.Run.RetryOf)
	assert.Equal(t, report.Run.ID, *retried.Run.RetryOf)
	assert.Equal(t, 2, retried.Run.ProductsTotal)

	code, res = env.do(t, http.MethodGet, "/api/v1/runs?retry_of="+report.Run.ID, nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, res.Meta["total"])
}

func TestRetryKeepsRequestOverrides(t *testing.T) {
	env := newTestEnv(t, "")

	code, res := env.do(t, http.MethodPost, "/api/v1/runs", map[string]any{
		"product_ids":       []string{"ghost", "phantom"},
		"mode":              "parallel",
		"max_concurrent":    4,
		"continue_on_error": true,
		"wait":              true,
	}, "")
	require.Equal(t, http.StatusOK, code)
	var report batch.Report
	require.NoError(t, json.Unmarshal(res.Data, &report))

	code, res = env.do(t, http.MethodPost, "/api/v1/runs/"+report.Run.ID+"/retry", map[string]any{
		"continue_on_error": false,
		"wait":              true,
	}, "")
	require.Equal(t, http.StatusOK, code)
	var retried batch.Report
	require.NoError(t, json.Unmarshal(res.Data, &retried))
	assert.Equal(t, string(batch.ModeParallel), retried.Run.Mode)
	assert.Equal(t, 4, retried.Run.MaxConcurrent)
	assert.False(t, retried.Run.ContinueOnError)
}

func TestStartRunAsync(t *testing.T) {
	env := newTestEnv(t, "")

	code, res := env.do(t, http.MethodPost, "/api/v1/runs", map[string]any{"product_ids": []string{"ghost"}}, "")
	require.Equal(t, http.StatusAccepted, code)
	var started struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &started))
	require.NotEmpty(t, started.RunID)

	require.Eventually(t, func() bool {
		run, err := env.store.GetAnalysisRun(context.Background(), started.RunID)
		return err == nil && run != nil && run.Status == models.RunStatusPartial
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartRunValidation(t *testing.T) {
	env := newTestEnv(t, "")

	code, _ := env.do(t, http.MethodPost, "/api/v1/runs", map[string]any{}, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/runs", map[string]any{"all": true, "mode": "turbo"}, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/runs", map[string]any{"all": true, "wait": true}, "")
	assert.Equal(t, http.StatusBadRequest, code, "no active products")

	code, _ = env.do(t, http.MethodPost, "/api/v1/runs/nope/retry", nil, "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = env.do(t, http.MethodPost, "/api/v1/runs/nope/cancel", nil, "")
	assert.Equal(t, http.StatusConflict, code)
}

func TestSequentialAbortReturnsUnprocessable(t *testing.T) {
	env := newTestEnv(t, "")

	code, res := env.do(t, http.MethodPost, "/api/v1/runs", map[string]any{
		"product_ids":       []string{"ghost", "phantom"},
		"mode":              "sequential",
		"continue_on_error": false,
		"wait":              true,
	}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "ghost", res.Meta["product_id"])
	assert.Equal(t, string(analysis.KindProductNotFound), res.Meta["kind"])
}

func TestOpportunityStatusLifecycle(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	item := &models.BargainOpportunity{
		ProductID:        "p1",
		Status:           models.OpportunityStatusActive,
		OpportunityScore: 72,
		Recommendation:   "buy_on_demand",
		Priority:         "high",
	}
	require.NoError(t, env.store.InsertBargainOpportunity(ctx, item))
	path := "/api/v1/opportunities/" + strconv.FormatUint(item.ID, 10)

	code, res := env.do(t, http.MethodGet, "/api/v1/opportunities?status=active&min_score=70", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, res.Meta["total"])

	code, _ = env.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodPut, path+"/status", map[string]string{"status": "reopened"}, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = env.do(t, http.MethodPut, path+"/status", map[string]string{"status": "purchased"}, "")
	require.Equal(t, http.StatusOK, code)
	var updated models.BargainOpportunity
	require.NoError(t, json.Unmarshal(res.Data, &updated))
	assert.Equal(t, models.OpportunityStatusPurchased, updated.Status)

	code, _ = env.do(t, http.MethodPut, path+"/status", map[string]string{"status": "dismissed"}, "")
	assert.Equal(t, http.StatusBadRequest, code, "only active opportunities change status")

	code, _ = env.do(t, http.MethodGet, "/api/v1/opportunities/999", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = env.do(t, http.MethodPut, "/api/v1/opportunities/999/status", map[string]string{"status": "dismissed"}, "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = env.do(t, http.MethodGet, "/api/v1/opportunities/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPatternValidateAndDeactivate(t *testing.T) {
	env := newTestEnv(t, "")
	item := &models.Pattern{
		Key:           "p1:A:seasonal",
		PatternType:   models.PatternTypeSeasonal,
		Scope:         models.PatternScopeSupplier,
		ProductID:     "p1",
		Confidence:    0.7,
		TimesObserved: 1,
		IsActive:      true,
	}
	require.NoError(t, env.store.CreatePattern(context.Background(), item))
	base := "/api/v1/patterns/" + strconv.FormatUint(item.ID, 10)

	code, _ := env.do(t, http.MethodPost, base+"/validate", map[string]any{}, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, res := env.do(t, http.MethodPost, base+"/validate", map[string]any{"success": true}, "")
	require.Equal(t, http.StatusOK, code)
	var validated models.Pattern
	require.NoError(t, json.Unmarshal(res.Data, &validated))
	assert.Equal(t, 2, validated.TimesObserved)
	assert.Equal(t, 1, validated.TimesSuccessful)
	assert.InDelta(t, pattern.BayesianConfidence(1, 2), validated.Confidence, 1e-9)

	code, _ = env.do(t, http.MethodPost, base+"/deactivate", nil, "")
	assert.Equal(t, http.StatusOK, code)
	code, res = env.do(t, http.MethodGet, "/api/v1/patterns?active=true", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, res.Meta["total"])

	code, _ = env.do(t, http.MethodPost, "/api/v1/patterns/404/deactivate", nil, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestClearanceDismissal(t *testing.T) {
	env := newTestEnv(t, "")

	code, _ := env.do(t, http.MethodPost, "/api/v1/clearance/dismissals", map[string]string{
		"product_id":  "p1",
		"supplier_id": "A",
	}, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, res := env.do(t, http.MethodPost, "/api/v1/clearance/dismissals", map[string]string{
		"product_id":   "p1",
		"supplier_id":  "A",
		"reason":       "supplier confirmed restock",
		"dismissed_by": "ops",
	}, "")
	require.Equal(t, http.StatusCreated, code)
	var created models.ClearanceDismissal
	require.NoError(t, json.Unmarshal(res.Data, &created))
	assert.Equal(t, "ops", created.DismissedBy)
	assert.True(t, testNow.Equal(created.CreatedAt))

	code, res = env.do(t, http.MethodGet, "/api/v1/clearance/dismissals?product_id=p1", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, res.Meta["total"])
}

func TestScoringSettings(t *testing.T) {
	env := newTestEnv(t, "")

	code, res := env.do(t, http.MethodGet, "/api/v1/settings/scoring", nil, "")
	require.Equal(t, http.StatusOK, code)
	var current settings.Configuration
	require.NoError(t, json.Unmarshal(res.Data, &current))
	assert.Equal(t, settings.Defaults(), current)

	next := settings.Defaults()
	next.StrongBuy.MinOpportunity = 85
	code, res = env.do(t, http.MethodPut, "/api/v1/settings/scoring", map[string]any{"configuration": next, "updated_by": "ops"}, "")
	require.Equal(t, http.StatusOK, code)
	var saved settings.Configuration
	require.NoError(t, json.Unmarshal(res.Data, &saved))
	assert.Equal(t, 1, saved.Version)

	code, res = env.do(t, http.MethodGet, "/api/v1/settings/scoring", nil, "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(res.Data, &current))
	assert.Equal(t, 85.0, current.StrongBuy.MinOpportunity)

	broken := settings.Defaults()
	broken.StrongBuy.MinOpportunity = 10
	code, res = env.do(t, http.MethodPut, "/api/v1/settings/scoring", map[string]any{"configuration": broken}, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, res.Meta["problems"])
}
