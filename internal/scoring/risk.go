package scoring

import (
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/metrics"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/settings"
)

// Risk scores how likely the price is to keep falling or the data to mislead,
// 0..100: volatility (0..35), market position (0..35) and supplier
// reliability (0..30).
func Risk(in Input, cfg settings.Configuration) RiskBreakdown {
	m := in.Metrics
	var b RiskBreakdown
	if m == nil {
		return b
	}
	b.CoefficientOfVariation = cvPoints(m, cfg.Volatility)
	b.ChangeFrequency = changeFrequencyPoints(m.Volatility.PriceChanges30d, cfg.ChangeFrequency)
	b.Acceleration = accelerationPoints(m.Volatility.VarianceRatio)
	b.Volatility = b.CoefficientOfVariation + b.ChangeFrequency + b.Acceleration

	b.DistanceFromMin = distanceFromMinRisk(m.DistanceFromMinPct)
	b.Trend = trendRisk(m.Trend)
	b.Underwater = underwaterPoints(in.inventory(), m.Liquidity.LastPurchasePrice, m.CurrentPrice, cfg.Underwater)
	b.MarketPosition = b.DistanceFromMin + b.Trend + b.Underwater

	b.DataInsufficiency = dataInsufficiencyPoints(m.TotalObservations)
	b.AnomalyRate = anomalyPoints(m)
	b.Consistency = consistencyPoints(m.PerSupplier)
	b.SupplierReliability = b.DataInsufficiency + b.AnomalyRate + b.Consistency

	b.Total = clamp(round2(b.Volatility+b.MarketPosition+b.SupplierReliability), 0, 100)
	return b
}

func cvPoints(m *metrics.Result, t settings.VolatilityThresholds) float64 {
	if m.Window30.Count < 3 {
		return 10
	}
	cv := m.Volatility.CoefficientOfVariation
	switch {
	case cv < t.Low:
		return 0
	case cv < t.Medium:
		return 5
	case cv < t.High:
		return 12
	}
	return 20
}

func changeFrequencyPoints(changes int, t settings.ChangeFrequencyThresholds) float64 {
	switch {
	case changes < t.Low:
		return 0
	case changes < t.Medium:
		return 3
	case changes < t.High:
		return 6
	}
	return 10
}

// accelerationPoints reads the 7-day to 30-day variance ratio.
func accelerationPoints(ratio float64) float64 {
	switch {
	case ratio > 2:
		return 5
	case ratio > 1.5:
		return 3
	case ratio > 1.2:
		return 1
	}
	return 0
}

func distanceFromMinRisk(distance float64) float64 {
	switch {
	case distance <= 2:
		return 0
	case distance <= 5:
		return 3
	case distance <= 10:
		return 7
	case distance <= 20:
		return 11
	}
	return 15
}

func trendRisk(t metrics.Trend) float64 {
	if t.Reversal && t.ReversalType == metrics.ReversalBottom {
		return 0
	}
	switch t.Direction {
	case metrics.TrendStrongDown:
		return 12
	case metrics.TrendDown:
		return 6
	case metrics.TrendUp:
		return 3
	case metrics.TrendStrongUp:
		return 5
	}
	return 0
}

// underwaterPoints only applies when stock is on hand: the current price sits
// below what that stock was bought for.
func underwaterPoints(inventory int, lastPurchase, current float64, t settings.UnderwaterThresholds) float64 {
	if inventory <= 0 || lastPurchase <= 0 || current >= lastPurchase {
		return 0
	}
	under := (lastPurchase - current) / lastPurchase * 100
	switch {
	case under >= t.Severe:
		return 8
	case under >= t.Moderate:
		return 5
	case under >= t.Mild:
		return 2
	}
	return 0
}

func dataInsufficiencyPoints(observations int) float64 {
	switch {
	case observations >= 30:
		return 0
	case observations >= 15:
		return 3
	case observations >= 8:
		return 6
	}
	return 10
}

func anomalyPoints(m *metrics.Result) float64 {
	if m.TotalObservations < 10 {
		return 6
	}
	anomalies := 0
	for _, s := range m.PerSupplier {
		anomalies += s.Anomalies
	}
	rate := float64(anomalies) / float64(m.TotalObservations) * 100
	switch {
	case rate < 1:
		return 0
	case rate < 5:
		return 4
	case rate < 10:
		return 8
	}
	return 12
}

// consistencyPoints averages 90-day consistency over suppliers with at least
// five observations in that window.
func consistencyPoints(per []metrics.SupplierMetrics) float64 {
	sum := 0.0
	n := 0
	for _, s := range per {
		if s.Observations90d < 5 {
			continue
		}
		sum += s.Consistency90d
		n++
	}
	if n == 0 {
		return 4
	}
	avg := sum / float64(n)
	switch {
	case avg >= 0.95:
		return 0
	case avg >= 0.90:
		return 2
	case avg >= 0.80:
		return 5
	}
	return 8
}
