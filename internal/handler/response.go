package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/batch"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clearance"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/opportunity"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/pattern"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/settings"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, apiResponse{
		Code:    0,
		Message: "accepted",
		Data:    data,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// Fail maps domain errors onto HTTP statuses; anything unknown is treated as
// an upstream failure.
func Fail(c *gin.Context, err error) {
	var verr *settings.ValidationError
	switch {
	case errors.As(err, &verr):
		Error(c, http.StatusBadRequest, verr.Error(), map[string]any{"problems": verr.Problems})
	case errors.Is(err, opportunity.ErrOpportunityNotFound),
		errors.Is(err, pattern.ErrPatternNotFound),
		errors.Is(err, batch.ErrRunNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, opportunity.ErrInvalidStatus),
		errors.Is(err, clearance.ErrDismissalInvalid),
		errors.Is(err, batch.ErrInvalidMode),
		errors.Is(err, batch.ErrNoProducts):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, batch.ErrRunNotActive),
		errors.Is(err, batch.ErrNothingToRetry),
		errors.Is(err, batch.ErrRunStillRunning):
		Error(c, http.StatusConflict, err.Error(), nil)
	default:
		Error(c, http.StatusBadGateway, err.Error(), nil)
	}
}
