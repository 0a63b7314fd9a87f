// Package telemetry exposes prometheus counters for batch runs, product
// analyses, opportunity writes and notifications.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the analyzer metrics. A nil *Collector is valid and records
// nothing, so components can be built without one in tests.
type Collector struct {
	runsTotal          *prometheus.CounterVec
	runDuration        prometheus.Histogram
	productsTotal      *prometheus.CounterVec
	productDuration    prometheus.Histogram
	opportunitiesTotal *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	settingsCache      *prometheus.CounterVec
}

// NewCollector registers every metric on reg. Pass prometheus.DefaultRegisterer
// to expose them through promhttp.Handler.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bargain_analysis_runs_total",
				Help: "Finished batch analysis runs by final status",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bargain_analysis_run_duration_seconds",
				Help:    "Wall time of batch analysis runs",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		productsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bargain_products_analyzed_total",
				Help: "Per-product analysis outcomes; failures are labelled by kind",
			},
			[]string{"outcome"},
		),
		productDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bargain_product_analysis_duration_seconds",
				Help:    "Duration of the single-product pipeline",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),
		opportunitiesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bargain_opportunities_written_total",
				Help: "Opportunity upserts by outcome (created, updated, reused)",
			},
			[]string{"outcome"},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bargain_notifications_total",
				Help: "Notification deliveries by sink and result",
			},
			[]string{"sink", "result"},
		),
		settingsCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bargain_settings_cache_total",
				Help: "Scoring configuration lookups by cache result",
			},
			[]string{"result"},
		),
	}
}

func (c *Collector) RunFinished(status string, d time.Duration) {
	if c == nil {
		return
	}
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.Observe(d.Seconds())
}

func (c *Collector) ProductAnalyzed(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.productsTotal.WithLabelValues(outcome).Inc()
	c.productDuration.Observe(d.Seconds())
}

func (c *Collector) OpportunityWritten(outcome string) {
	if c == nil {
		return
	}
	c.opportunitiesTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) Notification(sink string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.notificationsTotal.WithLabelValues(sink, result).Inc()
}

func (c *Collector) SettingsLookup(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.settingsCache.WithLabelValues(result).Inc()
}
