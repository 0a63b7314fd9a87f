package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clearance"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/repository"
)

type DismissalRepository interface {
	ListClearanceDismissals(ctx context.Context, params repository.ListDismissalsParams) ([]models.ClearanceDismissal, error)
	CountClearanceDismissals(ctx context.Context, params repository.ListDismissalsParams) (int64, error)
}

type ClearanceHandler struct {
	Repo     DismissalRepository
	Detector *clearance.Detector
}

func (h *ClearanceHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/clearance/dismissals")
	g.GET("", h.list)
	g.POST("", h.dismiss)
}

func (h *ClearanceHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	params := repository.ListDismissalsParams{
		Limit:      limit,
		Offset:     offset,
		ProductID:  strQueryPtr(c, "product_id"),
		SupplierID: strQueryPtr(c, "supplier_id"),
		OrderBy:    "created_at",
		Asc:        ascQuery(c),
	}
	items, err := h.Repo.ListClearanceDismissals(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	total, err := h.Repo.CountClearanceDismissals(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *ClearanceHandler) dismiss(c *gin.Context) {
	if h.Detector == nil {
		Error(c, http.StatusInternalServerError, "clearance detector unavailable", nil)
		return
	}
	var req clearance.DismissRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	req.DismissedBy = actor(c, req.DismissedBy)
	item, err := h.Detector.Dismiss(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, apiResponse{Code: 0, Message: "created", Data: item})
}
