package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/opportunity"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/repository"
)

type OpportunityRepository interface {
	GetBargainOpportunityByID(ctx context.Context, id uint64) (*models.BargainOpportunity, error)
	ListBargainOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.BargainOpportunity, error)
	CountBargainOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error)
}

type OpportunityHandler struct {
	Repo    OpportunityRepository
	Manager *opportunity.Manager
}

func (h *OpportunityHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/opportunities")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/:id/status", h.setStatus)
}

func (h *OpportunityHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	orderBy := parseOrder(c.Query("sort_by"), map[string]string{
		"opportunity_score": "opportunity_score",
		"risk_score":        "risk_score",
		"confidence":        "confidence",
		"created_at":        "created_at",
		"updated_at":        "updated_at",
		"expires_at":        "expires_at",
	})
	if orderBy == "" {
		orderBy = "opportunity_score"
	}
	params := repository.ListOpportunitiesParams{
		Limit:          limit,
		Offset:         offset,
		ProductID:      strQueryPtr(c, "product_id"),
		Status:         strQueryPtr(c, "status"),
		Recommendation: strQueryPtr(c, "recommendation"),
		Priority:       strQueryPtr(c, "priority"),
		MinScore:       floatQueryPtr(c, "min_score"),
		OrderBy:        orderBy,
		Asc:            ascQuery(c),
	}
	items, err := h.Repo.ListBargainOpportunities(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	total, err := h.Repo.CountBargainOpportunities(c.Request.Context(), params)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *OpportunityHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetBargainOpportunityByID(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "opportunity not found", nil)
		return
	}
	Ok(c, item, nil)
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=purchased dismissed expired"`
}

func (h *OpportunityHandler) setStatus(c *gin.Context) {
	if h.Manager == nil {
		Error(c, http.StatusInternalServerError, "opportunity manager unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "status must be purchased, dismissed or expired", nil)
		return
	}
	item, err := h.Manager.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, item, nil)
}
