package pattern

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/snapshot"
)

// finding is what a single family reports before scope and key are attached.
type finding struct {
	patternType string
	confidence  float64
	matched     bool
	next        *time.Time
	data        map[string]any
}

type family func(obs []snapshot.PriceObservation, now time.Time) *finding

var families = []family{
	detectSeasonal,
	detectDayOfWeek,
	detectMonthlyCycle,
	detectVShape,
	detectGradualDecline,
}

func detectSeasonal(obs []snapshot.PriceObservation, now time.Time) *finding {
	overall := meanPrice(obs)
	if overall <= 0 {
		return nil
	}
	byMonth := map[time.Month][]float64{}
	for _, o := range obs {
		byMonth[o.Date.Month()] = append(byMonth[o.Date.Month()], o.Price)
	}
	monthsWithData := 0
	flagged := map[time.Month]float64{}
	for month, prices := range byMonth {
		if len(prices) < 2 {
			continue
		}
		monthsWithData++
		avg := stat.Mean(prices, nil)
		if avg <= overall*0.9 {
			flagged[month] = (overall - avg) / overall * 100
		}
	}
	if len(flagged) == 0 {
		return nil
	}
	discount := meanOf(flagged)
	conf := clamp01(discount/20) * math.Min(1, float64(monthsWithData)/6)

	_, matched := flagged[now.Month()]
	today := startOfDay(now)
	var next time.Time
	if matched {
		next = today
	} else {
		for k := 1; k <= 12; k++ {
			candidate := time.Date(now.Year(), now.Month()+time.Month(k), 1, 0, 0, 0, 0, now.Location())
			if _, ok := flagged[candidate.Month()]; ok {
				next = candidate
				break
			}
		}
	}
	months := make([]int, 0, len(flagged))
	for m := range flagged {
		months = append(months, int(m))
	}
	sort.Ints(months)
	return &finding{
		patternType: models.PatternTypeSeasonal,
		confidence:  conf,
		matched:     matched,
		next:        &next,
		data: map[string]any{
			"low_months":       months,
			"avg_discount_pct": round2(discount),
			"months_sampled":   monthsWithData,
		},
	}
}

func detectDayOfWeek(obs []snapshot.PriceObservation, now time.Time) *finding {
	overall := meanPrice(obs)
	if overall <= 0 {
		return nil
	}
	byDay := map[time.Weekday][]float64{}
	for _, o := range obs {
		byDay[o.Date.Weekday()] = append(byDay[o.Date.Weekday()], o.Price)
	}
	flagged := map[time.Weekday]float64{}
	for day, prices := range byDay {
		if len(prices) < 10 {
			continue
		}
		avg := stat.Mean(prices, nil)
		if avg <= overall*0.95 {
			flagged[day] = (overall - avg) / overall * 100
		}
	}
	if len(flagged) == 0 {
		return nil
	}
	discount := 0.0
	for _, d := range flagged {
		discount += d
	}
	discount /= float64(len(flagged))
	conf := clamp01(discount/10) * math.Min(1, float64(len(obs))/70)

	_, matched := flagged[now.Weekday()]
	today := startOfDay(now)
	next := today
	for k := 0; k < 7; k++ {
		candidate := today.AddDate(0, 0, k)
		if _, ok := flagged[candidate.Weekday()]; ok {
			next = candidate
			break
		}
	}
	days := make([]int, 0, len(flagged))
	for d := range flagged {
		days = append(days, int(d))
	}
	sort.Ints(days)
	return &finding{
		patternType: models.PatternTypeDayOfWeek,
		confidence:  conf,
		matched:     matched,
		next:        &next,
		data: map[string]any{
			"low_weekdays":     days,
			"avg_discount_pct": round2(discount),
		},
	}
}

func detectMonthlyCycle(obs []snapshot.PriceObservation, now time.Time) *finding {
	overall := meanPrice(obs)
	if overall <= 0 {
		return nil
	}
	var late []float64
	for _, o := range obs {
		if o.Date.Day() >= 25 {
			late = append(late, o.Price)
		}
	}
	if len(late) < 5 {
		return nil
	}
	avg := stat.Mean(late, nil)
	if avg > overall*0.95 {
		return nil
	}
	discount := (overall - avg) / overall * 100
	conf := clamp01(discount/10) * math.Min(1, float64(len(late))/15)

	matched := now.Day() >= 25
	next := startOfDay(now)
	if !matched {
		next = time.Date(now.Year(), now.Month(), 25, 0, 0, 0, 0, now.Location())
	}
	return &finding{
		patternType: models.PatternTypeMonthlyCycle,
		confidence:  conf,
		matched:     matched,
		next:        &next,
		data: map[string]any{
			"samples":          len(late),
			"avg_discount_pct": round2(discount),
		},
	}
}

func detectVShape(obs []snapshot.PriceObservation, _ time.Time) *finding {
	prices := pricesOf(obs)
	n := len(prices)
	if n < 7 {
		return nil
	}
	for i := n - 4; i >= 3; i-- {
		trough := prices[i]
		if trough <= 0 || trough >= prices[i-1] {
			continue
		}
		if trough > floats.Min(prices[i-3:i+4]) {
			continue
		}
		priorHigh := floats.Max(prices[i-3 : i])
		peakAfter := floats.Max(prices[i+1:])
		drop := (priorHigh - trough) / priorHigh * 100
		recovery := (peakAfter - trough) / trough * 100
		if drop <= 10 || recovery <= 10 {
			continue
		}
		current := prices[n-1]
		phase := "recovered"
		switch {
		case current <= trough*1.02:
			phase = "bottom"
		case current < priorHigh*0.95:
			phase = "recovery"
		}
		return &finding{
			patternType: models.PatternTypeVShape,
			confidence:  clamp01((drop + recovery) / 40),
			matched:     phase != "recovered",
			data: map[string]any{
				"trough_price":  trough,
				"trough_date":   obs[i].Date,
				"drop_pct":      round2(drop),
				"recovery_pct":  round2(recovery),
				"phase":         phase,
				"prior_high":    priorHigh,
				"current_price": current,
			},
		}
	}
	return nil
}

// detectGradualDecline never matches today: it predicts a future low.
func detectGradualDecline(obs []snapshot.PriceObservation, now time.Time) *finding {
	recent := obs
	if len(recent) > 31 {
		recent = recent[len(recent)-31:]
	}
	steps := len(recent) - 1
	if steps < 15 {
		return nil
	}
	down := 0
	for i := 1; i < len(recent); i++ {
		if recent[i].Price < recent[i-1].Price {
			down++
		}
	}
	downFraction := float64(down) / float64(steps)
	if downFraction < 0.7 {
		return nil
	}
	x := make([]float64, len(recent))
	y := make([]float64, len(recent))
	origin := recent[0].Date
	for i, o := range recent {
		x[i] = o.Date.Sub(origin).Hours() / 24
		y[i] = o.Price
	}
	_, slope := stat.LinearRegression(x, y, nil, false)
	if slope >= 0 || math.IsNaN(slope) {
		return nil
	}
	current := recent[len(recent)-1].Price
	projectedLow := current * 0.7
	daysToLow := (current - projectedLow) / -slope
	next := now.Add(time.Duration(daysToLow * 24 * float64(time.Hour)))
	return &finding{
		patternType: models.PatternTypeGradualDecline,
		confidence:  clamp01(downFraction * math.Min(1, float64(steps)/20)),
		matched:     false,
		next:        &next,
		data: map[string]any{
			"down_fraction":  round2(downFraction),
			"slope_per_day":  round2(slope),
			"projected_low":  round2(projectedLow),
			"days_to_low":    round2(daysToLow),
			"steps_observed": steps,
		},
	}
}

func meanPrice(obs []snapshot.PriceObservation) float64 {
	if len(obs) == 0 {
		return 0
	}
	return stat.Mean(pricesOf(obs), nil)
}

func meanOf[K comparable](m map[K]float64) float64 {
	if len(m) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range m {
		sum += v
	}
	return sum / float64(len(m))
}

func pricesOf(obs []snapshot.PriceObservation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.Price
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
