// Package pattern learns recurring price behaviour per product: seasonal lows,
// weekday and end-of-month discounts, V-shaped dips and gradual declines.
package pattern

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/snapshot"
)

const (
	MinSupplierObservations  = 10
	MinAggregateObservations = 50
	aggregateSupplier        = "*"
)

// Detection is one pattern found in the current history, enriched with the
// counters of the persisted record under the same key.
type Detection struct {
	Key            string         `json:"key"`
	PatternType    string         `json:"pattern_type"`
	Scope          string         `json:"scope"`
	ScopeTarget    string         `json:"scope_target"`
	ProductID      string         `json:"product_id"`
	SupplierID     string         `json:"supplier_id,omitempty"`
	Confidence     float64        `json:"confidence"`
	Matched        bool           `json:"matched"`
	NextOccurrence *time.Time     `json:"next_occurrence,omitempty"`
	Data           map[string]any `json:"data,omitempty"`

	PatternID       uint64 `json:"pattern_id,omitempty"`
	TimesObserved   int    `json:"times_observed"`
	TimesSuccessful int    `json:"times_successful"`
}

// Validated reports whether the pattern has a track record worth trusting.
func (d Detection) Validated() bool {
	return d.TimesSuccessful >= 3 && d.Confidence >= 0.6
}

// Key builds the idempotency key for a pattern. An empty supplierID means the
// aggregated product scope.
func Key(productID, supplierID, patternType string) string {
	if supplierID == "" {
		supplierID = aggregateSupplier
	}
	return fmt.Sprintf("%s:%s:%s", productID, supplierID, patternType)
}

// DetectAll runs every family over each supplier with enough history and over
// the merged history when the product has enough observations in total.
func DetectAll(snap *snapshot.ProductSnapshot, now time.Time) []Detection {
	if snap == nil {
		return nil
	}
	var out []Detection
	for _, s := range snap.Suppliers {
		history := s.SortedHistory()
		if len(history) < MinSupplierObservations {
			continue
		}
		for _, f := range families {
			found := f(history, now)
			if found == nil || found.confidence <= 0 {
				continue
			}
			out = append(out, newDetection(snap.ID, s.SupplierID, found))
		}
	}
	if snap.TotalObservations() >= MinAggregateObservations {
		merged := snap.MergedHistory()
		for _, f := range families {
			found := f(merged, now)
			if found == nil || found.confidence <= 0 {
				continue
			}
			out = append(out, newDetection(snap.ID, "", found))
		}
	}
	return out
}

func newDetection(productID, supplierID string, f *finding) Detection {
	d := Detection{
		Key:            Key(productID, supplierID, f.patternType),
		PatternType:    f.patternType,
		ProductID:      productID,
		SupplierID:     supplierID,
		Confidence:     f.confidence,
		Matched:        f.matched,
		NextOccurrence: f.next,
		Data:           f.data,
	}
	if supplierID == "" {
		d.Scope = models.PatternScopeProduct
		d.ScopeTarget = productID
	} else {
		d.Scope = models.PatternScopeSupplier
		d.ScopeTarget = productID + ":" + supplierID
	}
	return d
}

// Store is the persistence the detector and validator need.
type Store interface {
	GetPatternByKey(ctx context.Context, key string) (*models.Pattern, error)
	GetPatternByID(ctx context.Context, id uint64) (*models.Pattern, error)
	CreatePattern(ctx context.Context, item *models.Pattern) error
	RecordPatternDetection(ctx context.Context, id uint64, confidence float64, data datatypes.JSON, detectedAt time.Time) error
	UpdatePatternValidation(ctx context.Context, id uint64, timesObserved, timesSuccessful int, confidence float64, validatedAt time.Time) error
	SetPatternActive(ctx context.Context, id uint64, active bool) error
}

type Detector struct {
	Repo   Store
	Logger *zap.Logger
}

// Detect finds patterns, carries forward counters of known patterns and
// records the detections. Patterns an operator deactivated are dropped.
func (d *Detector) Detect(ctx context.Context, snap *snapshot.ProductSnapshot, now time.Time) ([]Detection, error) {
	found := DetectAll(snap, now)
	if d == nil || d.Repo == nil {
		return found, nil
	}
	out := found[:0]
	for _, det := range found {
		active, err := d.record(ctx, &det, now)
		if err != nil {
			return nil, err
		}
		if active {
			out = append(out, det)
		}
	}
	return out, nil
}

func (d *Detector) record(ctx context.Context, det *Detection, now time.Time) (bool, error) {
	data, err := json.Marshal(det.Data)
	if err != nil {
		return false, fmt.Errorf("encode pattern %s: %w", det.Key, err)
	}
	existing, err := d.Repo.GetPatternByKey(ctx, det.Key)
	if err != nil {
		return false, fmt.Errorf("load pattern %s: %w", det.Key, err)
	}
	if existing == nil {
		item := &models.Pattern{
			Key:            det.Key,
			PatternType:    det.PatternType,
			Scope:          det.Scope,
			ScopeTarget:    det.ScopeTarget,
			ProductID:      det.ProductID,
			PatternData:    datatypes.JSON(data),
			Confidence:     det.Confidence,
			IsActive:       true,
			LastDetectedAt: &now,
		}
		if det.SupplierID != "" {
			sid := det.SupplierID
			item.SupplierID = &sid
		}
		if err := d.Repo.CreatePattern(ctx, item); err != nil {
			return false, fmt.Errorf("create pattern %s: %w", det.Key, err)
		}
		det.PatternID = item.ID
		if d.Logger != nil {
			d.Logger.Debug("pattern created", zap.String("key", det.Key), zap.Float64("confidence", det.Confidence))
		}
		return true, nil
	}

	det.PatternID = existing.ID
	det.TimesObserved = existing.TimesObserved
	det.TimesSuccessful = existing.TimesSuccessful
	// Once validated, the Bayesian estimate replaces the raw detection score.
	if existing.TimesSuccessful > 0 {
		det.Confidence = existing.Confidence
	}
	if !existing.IsActive {
		return false, nil
	}
	if err := d.Repo.RecordPatternDetection(ctx, existing.ID, det.Confidence, datatypes.JSON(data), now); err != nil {
		return false, fmt.Errorf("record pattern %s: %w", det.Key, err)
	}
	return true, nil
}
