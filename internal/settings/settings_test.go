package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/cache"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
)

type memStore struct {
	items map[string]*models.SystemSetting
	reads int
}

func (m *memStore) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	m.reads++
	item, ok := m.items[key]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (m *memStore) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if m.items == nil {
		m.items = map[string]*models.SystemSetting{}
	}
	cp := *item
	m.items[item.Key] = &cp
	return nil
}

func TestDefaults_AreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestValidate_RejectsOrderingViolations(t *testing.T) {
	cfg := Defaults()
	cfg.PriceDrop.Medium = 25
	cfg.Buy.MinOpportunity = 90
	cfg.Volatility.High = 1

	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidConfiguration))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	joined := verr.Error()
	assert.Contains(t, joined, "price_drop thresholds")
	assert.Contains(t, joined, "strong_buy.min_opportunity must be >= buy.min_opportunity")
	assert.Contains(t, joined, "volatility thresholds")
}

func TestValidate_RejectsOutOfRange(t *testing.T) {
	cfg := Defaults()
	cfg.StrongBuy.MinConfidence = 1.5
	cfg.Clearance.DismissalWindowDays = 0

	var verr *ValidationError
	require.True(t, errors.As(cfg.Validate(), &verr))
	assert.Contains(t, verr.Error(), "strong_buy.min_confidence must satisfy lte=1")
	assert.Contains(t, verr.Error(), "clearance.dismissal_window_days must satisfy gte=1")
}

func TestParse_MergesMissingFieldsWithDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{"avoid":{"max_risk":80}}`))
	require.NoError(t, err)
	assert.Equal(t, 80.0, cfg.Avoid.MaxRisk)
	assert.Equal(t, 20.0, cfg.PriceDrop.Strong)
	assert.Equal(t, 30, cfg.Clearance.DismissalWindowDays)

	_, err = Parse([]byte(`{"price_drop":`))
	require.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestProvider_CachesAndInvalidatesOnSave(t *testing.T) {
	ctx := context.Background()
	repo := &memStore{}
	p := &Provider{Repo: repo, Cache: cache.NewMemoryStore()}

	cfg, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, Defaults().Avoid.MaxRisk, cfg.Avoid.MaxRisk)
	_, err = p.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads)

	cfg.Avoid.MaxRisk = 85
	saved, err := p.Save(ctx, cfg, "ops")
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)

	got, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 85.0, got.Avoid.MaxRisk)
	assert.Equal(t, 1, got.Version)

	saved, err = p.Save(ctx, got, "ops")
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)
}

func TestProvider_SaveRejectsInvalid(t *testing.T) {
	repo := &memStore{}
	p := &Provider{Repo: repo, Cache: cache.NewMemoryStore()}
	cfg := Defaults()
	cfg.Underwater.Mild = 50

	_, err := p.Save(context.Background(), cfg, "ops")
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Empty(t, repo.items)
}
