package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/batch"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/repository"
)

type RunRepository interface {
	GetAnalysisRun(ctx context.Context, id string) (*models.AnalysisRun, error)
	ListAnalysisRuns(ctx context.Context, params repository.ListAnalysisRunsParams) ([]models.AnalysisRun, error)
	CountAnalysisRuns(ctx context.Context, params repository.ListAnalysisRunsParams) (int64, error)
}

type RunHandler struct {
	Repo  RunRepository
	Batch *batch.Orchestrator
	// Defaults fill the options a request leaves out.
	Defaults batch.Options
	// BaseCtx bounds runs started without wait; nil means background.
	BaseCtx context.Context
	Logger  *zap.Logger
}

func (h *RunHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/runs")
	g.POST("", h.start)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/:id/retry", h.retry)
	g.POST("/:id/cancel", h.cancel)
}

type startRunRequest struct {
	ProductIDs      []string `json:"product_ids"`
	All             bool     `json:"all"`
	Mode            string   `json:"mode"`
	MaxConcurrent   *int     `json:"max_concurrent" binding:"omitempty,gte=1,lte=100"`
	ContinueOnError *bool    `json:"continue_on_error"`
	TriggeredBy     string   `json:"triggered_by"`
	// Wait blocks until the run finishes and returns its report.
	Wait bool `json:"wait"`
}

func (h *RunHandler) start(c *gin.Context) {
	if h.Batch == nil {
		Error(c, http.StatusInternalServerError, "orchestrator unavailable", nil)
		return
	}
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if !req.All && len(req.ProductIDs) == 0 {
		Error(c, http.StatusBadRequest, "product_ids or all is required", nil)
		return
	}
	opts, err := h.options(c, req.Mode, req.MaxConcurrent, req.ContinueOnError, req.TriggeredBy)
	if err != nil {
		Fail(c, err)
		return
	}
	h.launch(c, opts, req.Wait, func(ctx context.Context, opts batch.Options) (*batch.Report, error) {
		if req.All {
			return h.Batch.RunAll(ctx, opts)
		}
		return h.Batch.Run(ctx, req.ProductIDs, opts)
	})
}

type retryRunRequest struct {
	Mode            string `json:"mode"`
	MaxConcurrent   *int   `json:"max_concurrent" binding:"omitempty,gte=1,lte=100"`
	ContinueOnError *bool  `json:"continue_on_error"`
	TriggeredBy     string `json:"triggered_by"`
	Wait            bool   `json:"wait"`
}

func (h *RunHandler) retry(c *gin.Context) {
	if h.Batch == nil || h.Repo == nil {
		Error(c, http.StatusInternalServerError, "orchestrator unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	var req retryRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, "invalid body", nil)
			return
		}
	}
	// Validate before going async so the caller sees missing runs directly.
	prev, err := h.Repo.GetAnalysisRun(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if prev == nil {
		Error(c, http.StatusNotFound, "run not found", nil)
		return
	}
	if prev.Status == models.RunStatusRunning {
		Fail(c, batch.ErrRunStillRunning)
		return
	}
	failed, err := batch.FailedProductIDs(prev)
	if err != nil {
		Fail(c, err)
		return
	}
	if len(failed) == 0 {
		Fail(c, batch.ErrNothingToRetry)
		return
	}
	ro := batch.RetryOptions{
		MaxConcurrent:   req.MaxConcurrent,
		ContinueOnError: req.ContinueOnError,
		TriggeredBy:     triggeredBy(c, req.TriggeredBy),
		RunID:           uuid.NewString(),
	}
	if strings.TrimSpace(req.Mode) != "" {
		m, err := batch.ParseMode(req.Mode)
		if err != nil {
			Fail(c, err)
			return
		}
		ro.Mode = m
	}
	h.launch(c, batch.Options{RunID: ro.RunID}, req.Wait, func(ctx context.Context, _ batch.Options) (*batch.Report, error) {
		return h.Batch.Retry(ctx, id, ro)
	})
}

// options merges request overrides onto Defaults.
func (h *RunHandler) options(c *gin.Context, mode string, maxConcurrent *int, continueOnError *bool, by string) (batch.Options, error) {
	opts := h.Defaults
	if strings.TrimSpace(mode) != "" {
		m, err := batch.ParseMode(mode)
		if err != nil {
			return batch.Options{}, err
		}
		opts.Mode = m
	}
	if maxConcurrent != nil {
		opts.MaxConcurrent = *maxConcurrent
	}
	if continueOnError != nil {
		opts.ContinueOnError = *continueOnError
	}
	opts.TriggeredBy = triggeredBy(c, by)
	opts.RunID = uuid.NewString()
	return opts, nil
}

func triggeredBy(c *gin.Context, requested string) string {
	if by := actor(c, requested); by != "" {
		return by
	}
	return "api"
}

func (h *RunHandler) launch(c *gin.Context, opts batch.Options, wait bool, run func(context.Context, batch.Options) (*batch.Report, error)) {
	if wait {
		report, err := run(c.Request.Context(), opts)
		if err != nil {
			var abort *batch.RunAbortError
			if errors.As(err, &abort) {
				Error(c, http.StatusUnprocessableEntity, err.Error(), map[string]any{
					"run_id":     abort.RunID,
					"product_id": abort.ProductID,
					"kind":       abort.Kind,
				})
				return
			}
			Fail(c, err)
			return
		}
		Ok(c, report, nil)
		return
	}
	base := h.BaseCtx
	if base == nil {
		base = context.Background()
	}
	go func() {
		if _, err := run(base, opts); err != nil && h.Logger != nil {
			h.Logger.Warn("analysis run failed", zap.String("run_id", opts.RunID), zap.Error(err))
		}
	}()
	Accepted(c, gin.H{"run_id": opts.RunID})
}

func (h *RunHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListAnalysisRunsParams{
		Limit:   limit,
		Offset:  offset,
		Status:  strQueryPtr(c, "status"),
		RetryOf: strQueryPtr(c, "retry_of"),
		OrderBy: parseOrder(c.Query("sort_by"), map[string]string{
			"started_at":  "started_at",
			"duration_ms": "duration_ms",
		}),
		Asc: ascQuery(c),
	}
	items, err := h.Repo.ListAnalysisRuns(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	total, err := h.Repo.CountAnalysisRuns(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *RunHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	item, err := h.Repo.GetAnalysisRun(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "run not found", nil)
		return
	}
	Ok(c, item, nil)
}

func (h *RunHandler) cancel(c *gin.Context) {
	if h.Batch == nil {
		Error(c, http.StatusInternalServerError, "orchestrator unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if err := h.Batch.Cancel(id); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"run_id": id, "cancel_requested": true}, nil)
}
