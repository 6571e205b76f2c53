package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/elysium/backend/internal/domain/shared"
	"github.com/elysium/backend/internal/domain/stock"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockRecordRepository implements StockRecordRepository using GORM
type GormStockRecordRepository struct {
	db *gorm.DB
}

// NewGormStockRecordRepository creates a new GormStockRecordRepository
func NewGormStockRecordRepository(db *gorm.DB) *GormStockRecordRepository {
	return &GormStockRecordRepository{db: db}
}

// FindByID finds a stock record by its surrogate ID
func (r *GormStockRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.StockRecord, error) {
	var record stock.StockRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByKey finds a stock record by its product-variant pair
func (r *GormStockRecordRepository) FindByKey(ctx context.Context, productKey, variantKey string) (*stock.StockRecord, error) {
	var record stock.StockRecord
	if err := r.db.WithContext(ctx).
		Where("product_key = ? AND variant_key = ?", productKey, variantKey).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByProduct finds every variant record of a product
func (r *GormStockRecordRepository) FindByProduct(ctx context.Context, productKey string) ([]stock.StockRecord, error) {
	var records []stock.StockRecord
	if err := r.db.WithContext(ctx).
		Where("product_key = ?", productKey).
		Order("variant_key ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetOrCreate returns the existing record or inserts a fresh zero-stock one.
// The unique index on (product_key, variant_key) makes concurrent first
// provisioning safe: the losing insert falls through to a read.
func (r *GormStockRecordRepository) GetOrCreate(ctx context.Context, productKey, variantKey string) (*stock.StockRecord, error) {
	record, err := stock.NewStockRecord(productKey, variantKey)
	if err != nil {
		return nil, err
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_key"}, {Name: "variant_key"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		return r.FindByKey(ctx, productKey, variantKey)
	}
	record.ClearDomainEvents()
	return record, nil
}

// Save persists provisioning changes with optimistic locking: the guard
// matches the version the record was loaded at and the row advances by one,
// regardless of how many fields the operation changed. Reserved stock is
// deliberately absent from the update list; only AtomicAdjust moves it.
func (r *GormStockRecordRepository) Save(ctx context.Context, record *stock.StockRecord) error {
	newVersion := record.Version + 1
	result := r.db.WithContext(ctx).
		Model(record).
		Where("id = ? AND version = ?", record.ID, record.Version).
		Updates(map[string]interface{}{
			"stock_level":         record.StockLevel,
			"low_stock_threshold": record.LowStockThreshold,
			"version":             newVersion,
			"updated_at":          record.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	record.Version = newVersion
	return nil
}

// AtomicAdjust applies both deltas in one UPDATE whose predicate re-checks
// the aggregate invariants against the stored counters. The row lock the
// statement takes serializes adjustments per key; rows for other keys are
// untouched. RowsAffected distinguishes a rejected guard from a missing row.
func (r *GormStockRecordRepository) AtomicAdjust(ctx context.Context, productKey, variantKey string, reservedDelta, stockDelta int64) (*stock.StockRecord, error) {
	var record stock.StockRecord
	result := r.db.WithContext(ctx).
		Model(&record).
		Clauses(clause.Returning{}).
		Where("product_key = ? AND variant_key = ?", productKey, variantKey).
		Where("stock_level + ? >= 0", stockDelta).
		Where("reserved_stock + ? >= 0", reservedDelta).
		Where("reserved_stock + ? <= stock_level + ?", reservedDelta, stockDelta).
		Updates(map[string]interface{}{
			"stock_level":    gorm.Expr("stock_level + ?", stockDelta),
			"reserved_stock": gorm.Expr("reserved_stock + ?", reservedDelta),
			"version":        gorm.Expr("version + 1"),
			"updated_at":     time.Now(),
		})

	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&stock.StockRecord{}).
			Where("product_key = ? AND variant_key = ?", productKey, variantKey).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, shared.ErrNotFound
		}
		return nil, shared.ErrConcurrencyConflict
	}

	return &record, nil
}

// FindLowStock finds records at or below their threshold, lowest availability first
func (r *GormStockRecordRepository) FindLowStock(ctx context.Context) ([]stock.StockRecord, error) {
	var records []stock.StockRecord
	if err := r.db.WithContext(ctx).
		Model(&stock.StockRecord{}).
		Where("stock_level - reserved_stock <= low_stock_threshold").
		Order("stock_level - reserved_stock ASC, product_key ASC, variant_key ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// FindOutOfStock finds records with zero availability, including fully reserved ones
func (r *GormStockRecordRepository) FindOutOfStock(ctx context.Context) ([]stock.StockRecord, error) {
	var records []stock.StockRecord
	if err := r.db.WithContext(ctx).
		Model(&stock.StockRecord{}).
		Where("stock_level - reserved_stock = 0").
		Order("product_key ASC, variant_key ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Compile-time interface check
var _ stock.StockRecordRepository = (*GormStockRecordRepository)(nil)
