package gormrepository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/models"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/repository"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return New(gdb), mock
}

func TestNilStoreIsNoop(t *testing.T) {
	var s *Store
	ctx := context.Background()

	item, err := s.GetPatternByKey(ctx, "p1:*:seasonal")
	assert.NoError(t, err)
	assert.Nil(t, item)

	n, err := s.ExpireDueOpportunities(ctx, time.Now())
	assert.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.GetProductSnapshot(ctx, "p1")
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestGetProductSnapshotNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err := s.GetProductSnapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProductSnapshotAssemblesSuppliers(t *testing.T) {
	s, mock := newMockStore(t)
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "current_inventory", "active"}).
			AddRow("p1", "Laptop", 4, true))
	mock.ExpectQuery(`SELECT \* FROM "supplier_offers"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "supplier_id", "supplier_name", "in_stock", "wholesale_price", "recycle_tax"}).
			AddRow(1, "p1", "acme", "Acme", true, "99.5000", "0.5000"))
	mock.ExpectQuery(`SELECT \* FROM "price_observations"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "supplier_id", "wholesale_price", "observed_at"}).
			AddRow(1, "p1", "acme", "100.0000", day).
			AddRow(2, "p1", "gone", "105.0000", day).
			AddRow(3, "p1", "acme", "99.5000", day.AddDate(0, 0, 1)))
	mock.ExpectQuery(`SELECT \* FROM "purchase_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "quantity", "price", "purchased_at"}).
			AddRow(1, "p1", 3, "98.0000", day))

	snap, err := s.GetProductSnapshot(context.Background(), " p1 ")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "Laptop", snap.Name)
	assert.Equal(t, 4, snap.CurrentInventory)
	require.Len(t, snap.Suppliers, 2)

	acme := snap.Suppliers[0]
	assert.Equal(t, "acme", acme.SupplierID)
	assert.True(t, acme.InStock)
	assert.InDelta(t, 99.5, acme.CurrentPrice, 1e-9)
	assert.InDelta(t, 0.5, acme.RecycleTax, 1e-9)
	assert.Len(t, acme.History, 2)

	gone := snap.Suppliers[1]
	assert.Equal(t, "gone", gone.SupplierID)
	assert.False(t, gone.InStock)
	assert.Len(t, gone.History, 1)

	require.Len(t, snap.Purchases, 1)
	assert.Equal(t, 3, snap.Purchases[0].Quantity)
	assert.InDelta(t, 98.0, snap.Purchases[0].Price, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssembleSnapshotWithoutHistory(t *testing.T) {
	snap := assembleSnapshot(
		models.Product{ID: "p2", Name: "Mouse"},
		[]models.SupplierOffer{{SupplierID: "s1", WholesalePrice: decimal.NewFromFloat(12.25)}},
		nil, nil,
	)
	require.Len(t, snap.Suppliers, 1)
	assert.Empty(t, snap.Suppliers[0].History)
	assert.InDelta(t, 12.25, snap.Suppliers[0].CurrentPrice, 1e-9)
	assert.Zero(t, snap.TotalObservations())
}

func TestCreatePatternReadsBackIDOnConflict(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO "patterns" .* ON CONFLICT \("key"\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "patterns"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "key", "pattern_type"}).
			AddRow(7, "p1:*:seasonal", models.PatternTypeSeasonal))

	item := &models.Pattern{
		Key:         "p1:*:seasonal",
		PatternType: models.PatternTypeSeasonal,
		Scope:       models.PatternScopeProduct,
		ScopeTarget: "p1",
		ProductID:   "p1",
	}
	require.NoError(t, s.CreatePattern(context.Background(), item))
	assert.Equal(t, uint64(7), item.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireDueOpportunities(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE "bargain_opportunities" SET .*WHERE status = \$\d+ AND expires_at IS NOT NULL AND expires_at < \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.ExpireDueOpportunities(context.Background(), time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpdateOpportunityStatusSkipsEmpty(t *testing.T) {
	s, mock := newMockStore(t)
	n, err := s.BulkUpdateOpportunityStatus(context.Background(), nil, models.OpportunityStatusExpired)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSystemSetting(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO "system_settings" .* ON CONFLICT \("key"\) DO UPDATE SET`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	item := &models.SystemSetting{Key: " scoring_config ", Value: []byte(`{"a":1}`), Version: 2}
	require.NoError(t, s.UpsertSystemSetting(context.Background(), item))
	assert.Equal(t, "scoring_config", item.Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeHelpers(t *testing.T) {
	assert.Equal(t, 200, normalizeLimit(0, 200))
	assert.Equal(t, 500, normalizeLimit(10_000, 200))
	assert.Equal(t, 25, normalizeLimit(25, 200))
	assert.Equal(t, 0, normalizeOffset(-4))
}

func TestListClearanceDismissalsSinceFiltersWindow(t *testing.T) {
	s, mock := newMockStore(t)
	since := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	created := since.Add(48 * time.Hour)

	mock.ExpectQuery(`SELECT \* FROM "clearance_dismissals" WHERE product_id = \$1 AND created_at >= \$2 ORDER BY created_at desc`).
		WithArgs("p1", since).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "supplier_id", "reason", "created_at"}).
			AddRow(4, "p1", "s1", "promo feed", created))

	items, err := s.ListClearanceDismissalsSince(context.Background(), " p1 ", since)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "s1", items[0].SupplierID)
	assert.True(t, created.Equal(items[0].CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListClearanceDismissalsSinceSkipsEmptyProduct(t *testing.T) {
	s, mock := newMockStore(t)
	items, err := s.ListClearanceDismissalsSince(context.Background(), "  ", time.Now())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPatternDetectionIncrementsObserved(t *testing.T) {
	s, mock := newMockStore(t)
	detected := time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE "patterns" SET "confidence"=\$1,"last_detected_at"=\$2,"pattern_data"=\$3,"times_observed"=times_observed \+ 1,"updated_at"=\$4 WHERE id = \$5`).
		WithArgs(0.62, detected, sqlmock.AnyArg(), sqlmock.AnyArg(), 9).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.RecordPatternDetection(context.Background(), 9, 0.62, []byte(`{"weekday":0}`), detected)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPatternDetectionSkipsZeroID(t *testing.T) {
	s, mock := newMockStore(t)
	require.NoError(t, s.RecordPatternDetection(context.Background(), 0, 0.5, nil, time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
