// Package snapshot holds the read-only view of one product the analysis
// engines work on. Prices are float64; money columns are converted once when
// the snapshot is assembled.
package snapshot

import (
	"sort"
	"time"
)

type PriceObservation struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

type SupplierOffer struct {
	SupplierID   string             `json:"supplier_id"`
	SupplierName string             `json:"supplier_name"`
	InStock      bool               `json:"in_stock"`
	CurrentPrice float64            `json:"current_price"`
	RecycleTax   float64            `json:"recycle_tax"`
	History      []PriceObservation `json:"history"`
}

type PurchaseRecord struct {
	Date     time.Time `json:"date"`
	Quantity int       `json:"quantity"`
	Price    float64   `json:"price"`
}

type ProductSnapshot struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	CurrentInventory int              `json:"current_inventory"`
	Suppliers        []SupplierOffer  `json:"suppliers"`
	Purchases        []PurchaseRecord `json:"purchases"`
}

// TotalObservations counts price samples across every supplier.
func (p *ProductSnapshot) TotalObservations() int {
	if p == nil {
		return 0
	}
	total := 0
	for _, s := range p.Suppliers {
		total += len(s.History)
	}
	return total
}

// MergedHistory returns every supplier's observations in one ascending
// sequence. Ties keep supplier order.
func (p *ProductSnapshot) MergedHistory() []PriceObservation {
	if p == nil {
		return nil
	}
	out := make([]PriceObservation, 0, p.TotalObservations())
	for _, s := range p.Suppliers {
		out = append(out, s.History...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// SortedHistory returns a copy of the supplier's history in ascending order.
func (s SupplierOffer) SortedHistory() []PriceObservation {
	out := make([]PriceObservation, len(s.History))
	copy(out, s.History)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// LatestPurchase returns the most recent purchase, or nil.
func (p *ProductSnapshot) LatestPurchase() *PurchaseRecord {
	if p == nil || len(p.Purchases) == 0 {
		return nil
	}
	latest := p.Purchases[0]
	for _, r := range p.Purchases[1:] {
		if r.Date.After(latest.Date) {
			latest = r
		}
	}
	return &latest
}
