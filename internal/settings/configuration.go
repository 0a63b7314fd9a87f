// Package settings owns the versioned scoring configuration: its defaults,
// validation and the cached provider the engines read it through.
package settings

import "encoding/json"

// Configuration is the threshold document every scoring decision reads.
// Percentages are 0..100, confidences 0..1.
type Configuration struct {
	Version int `json:"version" validate:"gte=0"`

	PriceDrop       PriceDropThresholds       `json:"price_drop"`
	StrongBuy       DecisionThresholds        `json:"strong_buy"`
	Buy             DecisionThresholds        `json:"buy"`
	CautiousBuy     DecisionThresholds        `json:"cautious_buy"`
	Watch           DecisionThresholds        `json:"watch"`
	Avoid           AvoidThresholds           `json:"avoid"`
	Volatility      VolatilityThresholds      `json:"volatility"`
	ChangeFrequency ChangeFrequencyThresholds `json:"change_frequency"`
	Underwater      UnderwaterThresholds      `json:"underwater"`
	Clearance       ClearanceSettings         `json:"clearance"`
}

// PriceDropThresholds are drops from the 30-day average, in percent.
type PriceDropThresholds struct {
	Strong  float64 `json:"strong" validate:"gt=0,lte=100"`
	Medium  float64 `json:"medium" validate:"gt=0,lte=100"`
	Low     float64 `json:"low" validate:"gt=0,lte=100"`
	Minimum float64 `json:"minimum" validate:"gt=0,lte=100"`
}

type DecisionThresholds struct {
	MinOpportunity float64 `json:"min_opportunity" validate:"gte=0,lte=100"`
	MaxRisk        float64 `json:"max_risk" validate:"gte=0,lte=100"`
	MinConfidence  float64 `json:"min_confidence" validate:"gte=0,lte=1"`
}

type AvoidThresholds struct {
	MaxRisk float64 `json:"max_risk" validate:"gte=0,lte=100"`
}

// VolatilityThresholds are coefficient-of-variation tiers, in percent.
type VolatilityThresholds struct {
	Low    float64 `json:"low" validate:"gt=0"`
	Medium float64 `json:"medium" validate:"gt=0"`
	High   float64 `json:"high" validate:"gt=0"`
}

// ChangeFrequencyThresholds count price changes over 30 days.
type ChangeFrequencyThresholds struct {
	Low    int `json:"low" validate:"gt=0"`
	Medium int `json:"medium" validate:"gt=0"`
	High   int `json:"high" validate:"gt=0"`
}

// UnderwaterThresholds are how far the current price sits below the last
// purchase price, in percent.
type UnderwaterThresholds struct {
	Mild     float64 `json:"mild" validate:"gt=0,lte=100"`
	Moderate float64 `json:"moderate" validate:"gt=0,lte=100"`
	Severe   float64 `json:"severe" validate:"gt=0,lte=100"`
}

type ClearanceSettings struct {
	DismissalWindowDays int     `json:"dismissal_window_days" validate:"gte=1,lte=365"`
	MinSignals          int     `json:"min_signals" validate:"gte=1,lte=5"`
	MinScore            float64 `json:"min_score" validate:"gte=0,lte=100"`
}

func Defaults() Configuration {
	return Configuration{
		Version: 0,
		PriceDrop: PriceDropThresholds{
			Strong:  20,
			Medium:  15,
			Low:     10,
			Minimum: 5,
		},
		StrongBuy:   DecisionThresholds{MinOpportunity: 80, MaxRisk: 40, MinConfidence: 0.6},
		Buy:         DecisionThresholds{MinOpportunity: 65, MaxRisk: 50, MinConfidence: 0.5},
		CautiousBuy: DecisionThresholds{MinOpportunity: 55, MaxRisk: 60, MinConfidence: 0.4},
		Watch:       DecisionThresholds{MinOpportunity: 40, MaxRisk: 70, MinConfidence: 0.3},
		Avoid:       AvoidThresholds{MaxRisk: 75},
		Volatility:  VolatilityThresholds{Low: 5, Medium: 10, High: 20},
		ChangeFrequency: ChangeFrequencyThresholds{
			Low:    3,
			Medium: 6,
			High:   10,
		},
		Underwater: UnderwaterThresholds{Mild: 5, Moderate: 10, Severe: 20},
		Clearance: ClearanceSettings{
			DismissalWindowDays: 30,
			MinSignals:          2,
			MinScore:            40,
		},
	}
}

// Parse decodes a stored document on top of Defaults, so fields missing from
// older documents keep their default value, and validates the result.
func Parse(raw []byte) (Configuration, error) {
	cfg := Defaults()
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Configuration{}, &ValidationError{Problems: []string{"malformed document: " + err.Error()}}
	}
	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}
