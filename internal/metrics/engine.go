// Package metrics derives price statistics, trend, flash-deal and liquidity
// figures from a product snapshot.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/snapshot"
)

// ErrInsufficientData is returned when a product has fewer than
// MinObservations price samples across all suppliers.
var ErrInsufficientData = errors.New("insufficient price data")

const (
	MinObservations = 3

	trendPoints     = 14
	stepThreshold   = 0.001
	flashMaxGap     = 12 * time.Hour
	flashMinDropPct = 10.0
	anomalyDevPct   = 0.5
)

// Compute returns the full metrics for snap evaluated at now. It never returns
// a partial result.
func Compute(snap *snapshot.ProductSnapshot, now time.Time) (*Result, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInsufficientData)
	}
	merged := snap.MergedHistory()
	if len(merged) < MinObservations {
		return nil, fmt.Errorf("%w: product %s has %d observations, need %d", ErrInsufficientData, snap.ID, len(merged), MinObservations)
	}

	current := currentBestPrice(snap, merged)
	prices := pricesOf(merged)

	res := &Result{
		ProductID:         snap.ID,
		ComputedAt:        now,
		TotalObservations: len(merged),
		CurrentPrice:      current,
		Window7:           windowStats(merged, now, 7, current),
		Window30:          windowStats(merged, now, 30, current),
		Window60:          windowStats(merged, now, 60, current),
		Window90:          windowStats(merged, now, 90, current),
	}

	res.AllTimeAverage = stat.Mean(prices, nil)
	res.DropFromAllTimePct = dropPct(res.AllTimeAverage, current)
	res.HistoricMin = floats.Min(prices)
	res.HistoricMax = floats.Max(prices)
	if res.HistoricMin > 0 {
		res.DistanceFromMinPct = (current - res.HistoricMin) / res.HistoricMin * 100
	}
	if res.HistoricMax > 0 {
		res.DistanceFromMaxPct = (res.HistoricMax - current) / res.HistoricMax * 100
	}
	res.IsHistoricLow = res.DistanceFromMinPct <= 2
	res.IsNearHistoricLow = res.DistanceFromMinPct <= 5

	res.Volatility = volatility(res.Window7, res.Window30, merged, now)
	res.Trend = analyzeTrend(prices)
	res.PerSupplier = supplierMetrics(snap, now)
	res.Suppliers = multiSupplier(snap, res.PerSupplier, current)
	res.Flash = detectFlash(merged)
	res.Liquidity = analyzeLiquidity(snap.Purchases, now)
	return res, nil
}

func currentBestPrice(snap *snapshot.ProductSnapshot, merged []snapshot.PriceObservation) float64 {
	best := 0.0
	for _, s := range snap.Suppliers {
		if !s.InStock || s.CurrentPrice <= 0 {
			continue
		}
		if best == 0 || s.CurrentPrice < best {
			best = s.CurrentPrice
		}
	}
	if best > 0 {
		return best
	}
	for _, s := range snap.Suppliers {
		if s.CurrentPrice <= 0 {
			continue
		}
		if best == 0 || s.CurrentPrice < best {
			best = s.CurrentPrice
		}
	}
	if best > 0 {
		return best
	}
	return merged[len(merged)-1].Price
}

func windowStats(obs []snapshot.PriceObservation, now time.Time, days int, current float64) WindowStats {
	ws := WindowStats{Days: days}
	prices := pricesSince(obs, now.Add(-time.Duration(days)*24*time.Hour))
	if len(prices) == 0 {
		return ws
	}
	ws.Count = len(prices)
	ws.Average, ws.Variance = stat.PopMeanVariance(prices, nil)
	ws.StdDev = math.Sqrt(ws.Variance)
	ws.Min = floats.Min(prices)
	ws.Max = floats.Max(prices)
	ws.DropPct = dropPct(ws.Average, current)
	return ws
}

func volatility(w7, w30 WindowStats, merged []snapshot.PriceObservation, now time.Time) Volatility {
	v := Volatility{}
	if w30.Count > 0 && w30.Average > 0 {
		v.CoefficientOfVariation = w30.StdDev / w30.Average * 100
	}
	if w30.Variance > 0 {
		v.VarianceRatio = w7.Variance / w30.Variance
	}
	window := pricesSince(merged, now.Add(-30*24*time.Hour))
	for i := 1; i < len(window); i++ {
		if stepDirection(window[i-1], window[i]) != 0 {
			v.PriceChanges30d++
		}
	}
	return v
}

// stepDirection classifies a move as +1, -1 or 0 with a 0.1% dead band.
func stepDirection(prev, cur float64) int {
	if prev <= 0 {
		return 0
	}
	change := (cur - prev) / prev
	switch {
	case change > stepThreshold:
		return 1
	case change < -stepThreshold:
		return -1
	}
	return 0
}

func analyzeTrend(prices []float64) Trend {
	t := Trend{Direction: TrendStable}
	recent := tail(prices, trendPoints)
	if len(recent) < 2 {
		return t
	}
	var up, down, flat int
	for i := 1; i < len(recent); i++ {
		switch stepDirection(recent[i-1], recent[i]) {
		case 1:
			up++
		case -1:
			down++
		default:
			flat++
		}
	}
	steps := float64(len(recent) - 1)
	dominant := flat
	switch {
	case float64(up)/steps >= 0.7:
		t.Direction, dominant = TrendStrongUp, up
	case float64(down)/steps >= 0.7:
		t.Direction, dominant = TrendStrongDown, down
	case float64(flat)/steps >= 0.5:
		t.Direction = TrendStable
	case up > down:
		t.Direction, dominant = TrendUp, up
	case down > up:
		t.Direction, dominant = TrendDown, down
	}
	t.Strength = int(math.Round(float64(dominant) / steps * 10))

	if n := len(recent); n >= 6 {
		latest := stepDirection(recent[n-3], recent[n-1])
		before := stepDirection(recent[n-6], recent[n-4])
		if latest != 0 && before != 0 && latest != before {
			t.Reversal = true
			if before < 0 {
				t.ReversalType = ReversalBottom
			} else {
				t.ReversalType = ReversalTop
			}
		}
	}

	// Newest-first, the last four move sizes must shrink strictly.
	if n := len(recent); n >= 5 {
		accelerating := true
		for i := n - 1; i > n-4; i-- {
			newer := math.Abs(recent[i] - recent[i-1])
			older := math.Abs(recent[i-1] - recent[i-2])
			if newer <= older {
				accelerating = false
				break
			}
		}
		t.Accelerating = accelerating
	}
	return t
}

func supplierMetrics(snap *snapshot.ProductSnapshot, now time.Time) []SupplierMetrics {
	out := make([]SupplierMetrics, 0, len(snap.Suppliers))
	cutoff7 := now.Add(-7 * 24 * time.Hour)
	cutoff30 := now.Add(-30 * 24 * time.Hour)
	cutoff90 := now.Add(-90 * 24 * time.Hour)
	for _, s := range snap.Suppliers {
		history := s.SortedHistory()
		m := SupplierMetrics{
			SupplierID:   s.SupplierID,
			SupplierName: s.SupplierName,
			Observations: len(history),
			InStock:      s.InStock,
			CurrentPrice: s.CurrentPrice,
		}
		if m.CurrentPrice <= 0 && len(history) > 0 {
			m.CurrentPrice = history[len(history)-1].Price
		}
		if len(history) == 0 {
			m.Trend = Trend{Direction: TrendStable}
			out = append(out, m)
			continue
		}
		prices := pricesOf(history)

		if p := pricesSince(history, cutoff7); len(p) > 0 {
			m.Average7 = stat.Mean(p, nil)
		}
		if p := pricesSince(history, cutoff30); len(p) > 0 {
			m.Average30 = stat.Mean(p, nil)
			m.DropFrom30dPct = dropPct(m.Average30, m.CurrentPrice)
		}

		m.ReferencePrice7d = history[0].Price
		for _, o := range history {
			if o.Date.After(cutoff7) {
				break
			}
			m.ReferencePrice7d = o.Price
		}
		m.Drop7dPct = dropPct(m.ReferencePrice7d, m.CurrentPrice)

		if len(history) >= 2 {
			m.HistoricalMin = floats.Min(prices[:len(prices)-1])
			if m.HistoricalMin > 0 && m.CurrentPrice < m.HistoricalMin {
				m.BelowHistoricalMinPct = (m.HistoricalMin - m.CurrentPrice) / m.HistoricalMin * 100
			}
		}

		var baseline []float64
		for _, o := range history {
			if o.Date.Before(cutoff7) {
				baseline = append(baseline, o.Price)
			}
		}
		if len(baseline) >= 3 {
			m.BaselineConsistency = consistency(baseline)
		}
		recent90 := pricesSince(history, cutoff90)
		m.Observations90d = len(recent90)
		if len(recent90) >= 2 {
			m.Consistency90d = consistency(recent90)
		}

		m.Anomalies = countAnomalies(prices)
		m.Trend = analyzeTrend(prices)
		out = append(out, m)
	}
	return out
}

func multiSupplier(snap *snapshot.ProductSnapshot, per []SupplierMetrics, best float64) MultiSupplier {
	ms := MultiSupplier{Suppliers: len(snap.Suppliers)}
	var quotes []float64
	for _, m := range per {
		if m.InStock {
			ms.InStock++
		}
		if m.CurrentPrice > 0 {
			quotes = append(quotes, m.CurrentPrice)
			if m.Average30 > m.CurrentPrice*1.05 {
				ms.DroppingSuppliers++
			}
		}
	}
	if len(quotes) > 0 {
		ms.AverageSupplierPrice = stat.Mean(quotes, nil)
		ms.BestPriceSavingsPct = dropPct(ms.AverageSupplierPrice, best)
	}
	return ms
}

func detectFlash(merged []snapshot.PriceObservation) FlashDeal {
	f := FlashDeal{}
	if len(merged) < 2 {
		return f
	}
	prev, last := merged[len(merged)-2], merged[len(merged)-1]
	gap := last.Date.Sub(prev.Date)
	f.GapHours = gap.Hours()
	f.DropPct = dropPct(prev.Price, last.Price)
	if gap < 0 || gap >= flashMaxGap || f.DropPct <= flashMinDropPct {
		return f
	}
	f.Detected = true
	switch {
	case gap < 3*time.Hour:
		f.Urgency = FlashCritical
	case gap < 6*time.Hour:
		f.Urgency = FlashHigh
	default:
		f.Urgency = FlashMedium
	}
	return f
}

func analyzeLiquidity(purchases []snapshot.PurchaseRecord, now time.Time) Liquidity {
	l := Liquidity{
		PurchaseCount:         len(purchases),
		DaysSinceLastPurchase: -1,
		Bucket:                LiquidityVeryLow,
		Score:                 bucketScore(LiquidityVeryLow),
	}
	if len(purchases) == 0 {
		return l
	}
	sorted := make([]snapshot.PurchaseRecord, len(purchases))
	copy(sorted, purchases)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.After(sorted[j].Date) })

	l.LastPurchasePrice = sorted[0].Price
	l.DaysSinceLastPurchase = wholeDays(now.Sub(sorted[0].Date))

	total, count := 0, 0
	for i := 1; i < len(sorted); i++ {
		days := wholeDays(sorted[i-1].Date.Sub(sorted[i].Date))
		if days <= 0 {
			continue
		}
		total += days
		count++
	}
	if count > 0 {
		l.AverageIntervalDays = float64(total) / float64(count)
	}

	switch avg := l.AverageIntervalDays; {
	case avg <= 0:
		l.Bucket = LiquidityVeryLow
	case avg < 15:
		l.Bucket = LiquidityVeryHigh
	case avg < 30:
		l.Bucket = LiquidityHigh
	case avg < 60:
		l.Bucket = LiquidityMedium
	case avg < 90:
		l.Bucket = LiquidityLow
	default:
		l.Bucket = LiquidityVeryLow
	}
	l.Score = bucketScore(l.Bucket)
	if l.AverageIntervalDays > 0 && float64(l.DaysSinceLastPurchase) > 2*l.AverageIntervalDays {
		l.Score /= 2
		l.Halved = true
	}
	l.IsFastMover = l.AverageIntervalDays > 0 && l.AverageIntervalDays < 30
	return l
}

func bucketScore(b LiquidityBucket) float64 {
	switch b {
	case LiquidityVeryHigh:
		return 100
	case LiquidityHigh:
		return 80
	case LiquidityMedium:
		return 60
	case LiquidityLow:
		return 40
	}
	return 20
}

func consistency(prices []float64) float64 {
	mean, std := stat.PopMeanStdDev(prices, nil)
	if mean <= 0 {
		return 0
	}
	return clamp(1-std/mean, 0, 1)
}

func countAnomalies(prices []float64) int {
	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	n := 0
	for _, p := range prices {
		if p <= 0 || (median > 0 && math.Abs(p-median)/median > anomalyDevPct) {
			n++
		}
	}
	return n
}

func pricesOf(obs []snapshot.PriceObservation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Price
	}
	return out
}

func pricesSince(obs []snapshot.PriceObservation, cutoff time.Time) []float64 {
	var out []float64
	for _, o := range obs {
		if o.Date.Before(cutoff) {
			continue
		}
		out = append(out, o.Price)
	}
	return out
}

func tail(prices []float64, n int) []float64 {
	if len(prices) <= n {
		return prices
	}
	return prices[len(prices)-n:]
}

func dropPct(reference, current float64) float64 {
	if reference <= 0 {
		return 0
	}
	return (reference - current) / reference * 100
}

func wholeDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
