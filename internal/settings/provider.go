package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/cache"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/telemetry"
)

const (
	SettingKey      = "scoring.configuration"
	DefaultCacheTTL = 60 * time.Second
)

// Store is the slice of the repository the provider persists through.
type Store interface {
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
}

// Provider serves the scoring configuration from a TTL cache in front of the
// system_settings table. Writes validate, persist and invalidate the cache.
type Provider struct {
	Repo   Store
	Cache  cache.Store
	TTL    time.Duration
	Logger *zap.Logger

	Telemetry *telemetry.Collector
}

func (p *Provider) Get(ctx context.Context) (Configuration, error) {
	if p == nil || p.Repo == nil {
		return Defaults(), nil
	}
	if p.Cache != nil {
		raw, found, err := p.Cache.Get(ctx, SettingKey)
		if err != nil && p.Logger != nil {
			p.Logger.Warn("configuration cache read failed", zap.Error(err))
		}
		if found {
			var cfg Configuration
			if err := json.Unmarshal(raw, &cfg); err == nil {
				p.Telemetry.SettingsLookup(true)
				return cfg, nil
			}
		}
		p.Telemetry.SettingsLookup(false)
	}

	item, err := p.Repo.GetSystemSettingByKey(ctx, SettingKey)
	if err != nil {
		return Configuration{}, fmt.Errorf("load scoring configuration: %w", err)
	}
	cfg := Defaults()
	if item != nil {
		cfg, err = Parse(item.Value)
		if err != nil {
			return Configuration{}, err
		}
		cfg.Version = item.Version
	}
	p.store(ctx, cfg)
	return cfg, nil
}

// Save validates cfg, bumps the version and persists it. The cache entry is
// dropped so the next Get reads the new document.
func (p *Provider) Save(ctx context.Context, cfg Configuration, updatedBy string) (Configuration, error) {
	if p == nil || p.Repo == nil {
		return Configuration{}, fmt.Errorf("configuration store unavailable")
	}
	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	existing, err := p.Repo.GetSystemSettingByKey(ctx, SettingKey)
	if err != nil {
		return Configuration{}, fmt.Errorf("load scoring configuration: %w", err)
	}
	cfg.Version = 1
	if existing != nil {
		cfg.Version = existing.Version + 1
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return Configuration{}, err
	}
	now := time.Now().UTC()
	item := &models.SystemSetting{
		Key:         SettingKey,
		Value:       datatypes.JSON(raw),
		Version:     cfg.Version,
		Description: "scoring thresholds",
		UpdatedBy:   strings.TrimSpace(updatedBy),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.Repo.UpsertSystemSetting(ctx, item); err != nil {
		return Configuration{}, fmt.Errorf("save scoring configuration: %w", err)
	}
	if err := p.Invalidate(ctx); err != nil && p.Logger != nil {
		p.Logger.Warn("configuration cache invalidate failed", zap.Error(err))
	}
	if p.Logger != nil {
		p.Logger.Info("scoring configuration saved", zap.Int("version", cfg.Version), zap.String("updated_by", item.UpdatedBy))
	}
	return cfg, nil
}

func (p *Provider) Invalidate(ctx context.Context) error {
	if p == nil || p.Cache == nil {
		return nil
	}
	return p.Cache.Delete(ctx, SettingKey)
}

func (p *Provider) store(ctx context.Context, cfg Configuration) {
	if p.Cache == nil {
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if err := p.Cache.Set(ctx, SettingKey, raw, ttl); err != nil && p.Logger != nil {
		p.Logger.Warn("configuration cache write failed", zap.Error(err))
	}
}
