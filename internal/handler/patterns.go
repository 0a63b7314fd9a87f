package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/pattern"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/repository"
)

type PatternRepository interface {
	ListPatterns(ctx context.Context, params repository.ListPatternsParams) ([]models.Pattern, error)
	CountPatterns(ctx context.Context, params repository.ListPatternsParams) (int64, error)
}

type PatternHandler struct {
	Repo      PatternRepository
	Validator *pattern.Validator
}

func (h *PatternHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/patterns")
	g.GET("", h.list)
	g.POST("/:id/validate", h.validate)
	g.POST("/:id/deactivate", h.deactivate)
}

func (h *PatternHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListPatternsParams{
		Limit:         limit,
		Offset:        offset,
		ProductID:     strQueryPtr(c, "product_id"),
		SupplierID:    strQueryPtr(c, "supplier_id"),
		PatternType:   strQueryPtr(c, "type"),
		IsActive:      boolQueryPtr(c, "active"),
		MinConfidence: floatQueryPtr(c, "min_confidence"),
		OrderBy: parseOrder(c.Query("sort_by"), map[string]string{
			"confidence":       "confidence",
			"times_observed":   "times_observed",
			"last_detected_at": "last_detected_at",
		}),
		Asc: ascQuery(c),
	}
	items, err := h.Repo.ListPatterns(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	total, err := h.Repo.CountPatterns(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

type validatePatternRequest struct {
	Success *bool `json:"success" binding:"required"`
}

func (h *PatternHandler) validate(c *gin.Context) {
	if h.Validator == nil {
		Error(c, http.StatusInternalServerError, "pattern validator unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req validatePatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "success is required", nil)
		return
	}
	item, err := h.Validator.Validate(c.Request.Context(), id, *req.Success)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}

func (h *PatternHandler) deactivate(c *gin.Context) {
	if h.Validator == nil {
		Error(c, http.StatusInternalServerError, "pattern validator unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if err := h.Validator.Deactivate(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"id": id, "active": false}, nil)
}
