package persistence

import (
	"context"

	"github.com/elysium/backend/internal/domain/shared"
	"github.com/elysium/backend/internal/domain/stock"
	"gorm.io/gorm"
)

// GormStockMovementRepository implements StockMovementRepository using GORM
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// Create appends a movement to the audit trail
func (r *GormStockMovementRepository) Create(ctx context.Context, movement *stock.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// FindByKey returns the movement history of a variant, newest first
func (r *GormStockMovementRepository) FindByKey(ctx context.Context, productKey, variantKey string, filter shared.Filter) ([]stock.StockMovement, error) {
	var movements []stock.StockMovement
	query := r.db.WithContext(ctx).
		Where("product_key = ? AND variant_key = ?", productKey, variantKey).
		Order("recorded_at DESC")

	if filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		if offset < 0 {
			offset = 0
		}
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// Compile-time interface check
var _ stock.StockMovementRepository = (*GormStockMovementRepository)(nil)
