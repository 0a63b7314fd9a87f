package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/settings"
)

type SettingsHandler struct {
	Provider *settings.Provider
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/settings/scoring")
	g.GET("", h.get)
	g.PUT("", h.put)
	g.GET("/defaults", h.defaults)
}

func (h *SettingsHandler) get(c *gin.Context) {
	if h.Provider == nil {
		Error(c, http.StatusInternalServerError, "settings unavailable", nil)
		return
	}
	cfg, err := h.Provider.Get(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, cfg, nil)
}

func (h *SettingsHandler) defaults(c *gin.Context) {
	Ok(c, settings.Defaults(), nil)
}

type putSettingsRequest struct {
	Configuration settings.Configuration `json:"configuration"`
	UpdatedBy     string                 `json:"updated_by"`
}

func (h *SettingsHandler) put(c *gin.Context) {
	if h.Provider == nil {
		Error(c, http.StatusInternalServerError, "settings unavailable", nil)
		return
	}
	var req putSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	saved, err := h.Provider.Save(c.Request.Context(), req.Configuration, actor(c, req.UpdatedBy))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, saved, nil)
}
