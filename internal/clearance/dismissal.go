package clearance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clock"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
)

var ErrDismissalInvalid = errors.New("dismissal requires product_id, supplier_id and reason")

type DismissRequest struct {
	ProductID   string     `json:"product_id"`
	SupplierID  string     `json:"supplier_id"`
	Reason      string     `json:"reason"`
	DismissedBy string     `json:"dismissed_by"`
	Detection   *Detection `json:"detection,omitempty"`
}

// ActiveOpportunities loads the product's current opportunity so a dismissal
// can snapshot the signals the last analysis recorded for the supplier.
type ActiveOpportunities interface {
	GetActiveOpportunityByProduct(ctx context.Context, productID string) (*models.BargainOpportunity, error)
}

// Dismiss records an operator override for a false-positive clearance. The
// signals seen at the time are kept with it: the request's detection when
// given, otherwise the supplier's candidate from the active opportunity.
func (d *Detector) Dismiss(ctx context.Context, req DismissRequest) (*models.ClearanceDismissal, error) {
	if d == nil || d.Repo == nil {
		return nil, fmt.Errorf("dismissal store unavailable")
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.SupplierID = strings.TrimSpace(req.SupplierID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.ProductID == "" || req.SupplierID == "" || req.Reason == "" {
		return nil, ErrDismissalInvalid
	}
	det := req.Detection
	if det == nil {
		found, err := d.lastDetection(ctx, req.ProductID, req.SupplierID)
		if err != nil {
			return nil, err
		}
		det = found
	}
	snapshot := []byte("{}")
	if det != nil {
		raw, err := json.Marshal(det)
		if err != nil {
			return nil, err
		}
		snapshot = raw
	}
	item := &models.ClearanceDismissal{
		ProductID:      req.ProductID,
		SupplierID:     req.SupplierID,
		Reason:         req.Reason,
		SignalSnapshot: datatypes.JSON(snapshot),
		DismissedBy:    strings.TrimSpace(req.DismissedBy),
		CreatedAt:      clock.OrSystem(d.Clock).Now(),
	}
	if err := d.Repo.CreateClearanceDismissal(ctx, item); err != nil {
		return nil, fmt.Errorf("create clearance dismissal: %w", err)
	}
	if d.Logger != nil {
		d.Logger.Info("clearance dismissed",
			zap.String("product_id", item.ProductID),
			zap.String("supplier_id", item.SupplierID),
			zap.String("dismissed_by", item.DismissedBy),
		)
	}
	return item, nil
}

// lastDetection returns nil when there is no active opportunity or the last
// analysis did not flag the supplier.
func (d *Detector) lastDetection(ctx context.Context, productID, supplierID string) (*Detection, error) {
	if d.Opportunities == nil {
		return nil, nil
	}
	item, err := d.Opportunities.GetActiveOpportunityByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load active opportunity: %w", err)
	}
	if item == nil || len(item.AnalysisData) == 0 {
		return nil, nil
	}
	var data struct {
		Clearance Result `json:"clearance"`
	}
	if err := json.Unmarshal(item.AnalysisData, &data); err != nil {
		if d.Logger != nil {
			d.Logger.Warn("unreadable analysis data on active opportunity",
				zap.String("product_id", productID), zap.Uint64("opportunity_id", item.ID), zap.Error(err))
		}
		return nil, nil
	}
	for i := range data.Clearance.Candidates {
		if data.Clearance.Candidates[i].SupplierID == supplierID {
			det := data.Clearance.Candidates[i]
			return &det, nil
		}
	}
	return nil, nil
}
