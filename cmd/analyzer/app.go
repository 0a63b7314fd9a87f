package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/analysis"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/batch"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/cache"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clearance"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/clock"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/config"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/db"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/logger"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/notify"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/opportunity"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/pattern"
	gormrepository "github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/repository/gorm"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/scoring"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/settings"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/telemetry"
)

// app holds every wired component of one analyzer process.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	db       *db.DB
	store    *gormrepository.Store
	registry *prometheus.Registry

	settings      *settings.Provider
	clearance     *clearance.Detector
	validator     *pattern.Validator
	manager       *opportunity.Manager
	analyzer      *analysis.Analyzer
	batch         *batch.Orchestrator
	batchDefaults batch.Options

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath, envOnly)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	a := &app{cfg: cfg, logger: log, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dbConn, err := db.Open(ctx, cfg.DB, logger.Component(log, "db"))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	a.db = dbConn
	a.closers = append(a.closers, func() error { return db.Close(dbConn) })
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		a.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	a.store = gormrepository.New(dbConn.Gorm)

	var settingsCache cache.Store = cache.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		rs := cache.NewRedisStore(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rs.Ping(ctx); err != nil {
			log.Warn("redis unreachable, using in-process configuration cache", zap.Error(err))
			_ = rs.Close()
		} else {
			settingsCache = rs
			a.closers = append(a.closers, rs.Close)
		}
	}

	tel := telemetry.NewCollector(a.registry)
	clk := clock.System{}
	a.settings = &settings.Provider{
		Repo:      a.store,
		Cache:     settingsCache,
		TTL:       cfg.Settings.CacheTTL,
		Logger:    logger.Component(log, "settings"),
		Telemetry: tel,
	}
	a.clearance = &clearance.Detector{Repo: a.store, Opportunities: a.store, Clock: clk, Logger: logger.Component(log, "clearance")}
	a.validator = &pattern.Validator{Repo: a.store, Clock: clk, Logger: logger.Component(log, "pattern")}
	a.manager = &opportunity.Manager{
		Repo:      a.store,
		Clock:     clk,
		Logger:    logger.Component(log, "opportunity"),
		Telemetry: tel,
		TTL:       cfg.Opportunity.TTL,
		FlashTTL:  cfg.Opportunity.FlashTTL,
		MaxActive: cfg.Opportunity.MaxActive,
	}
	a.analyzer = &analysis.Analyzer{
		Snapshots:     a.store,
		Patterns:      &pattern.Detector{Repo: a.store, Logger: logger.Component(log, "pattern")},
		Clearance:     a.clearance,
		Scoring:       &scoring.Engine{Settings: a.settings, Logger: logger.Component(log, "scoring")},
		Opportunities: a.manager,
		Notifier:      notify.FromConfig(cfg.Notify, logger.Component(log, "notify"), tel),
		Clock:         clk,
		Logger:        logger.Component(log, "analysis"),
		Telemetry:     tel,
		Timeout:       cfg.Batch.ProductTimeout,
		NotifyTimeout: cfg.Batch.NotifyTimeout,
	}
	a.batch = &batch.Orchestrator{
		Runs:      a.store,
		Analyzer:  a.analyzer,
		Products:  a.store,
		Clock:     clk,
		Logger:    logger.Component(log, "batch"),
		Telemetry: tel,
	}
	mode, err := batch.ParseMode(cfg.Batch.Mode)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.batchDefaults = batch.Options{
		Mode:            mode,
		MaxConcurrent:   cfg.Batch.MaxConcurrent,
		ContinueOnError: cfg.Batch.ContinueOnError,
	}
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
