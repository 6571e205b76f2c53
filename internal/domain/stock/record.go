package stock

import (
	"time"

	"github.com/elysium/backend/internal/domain/shared"
)

// StockRecord tracks on-hand and reserved units for one sellable variant.
// It is the aggregate root for all inventory operations.
// The composite identifier is ProductKey + VariantKey.
type StockRecord struct {
	shared.BaseAggregateRoot
	ProductKey        string `gorm:"type:varchar(100);not null;uniqueIndex:idx_stock_record_product_variant,priority:1"`
	VariantKey        string `gorm:"type:varchar(100);not null;uniqueIndex:idx_stock_record_product_variant,priority:2"`
	StockLevel        int64  `gorm:"not null;default:0"` // Physical units on hand
	ReservedStock     int64  `gorm:"not null;default:0"` // Units held by active reservations
	LowStockThreshold int64  `gorm:"not null;default:3"`
}

// TableName returns the table name for GORM
func (StockRecord) TableName() string {
	return "stock_records"
}

// NewStockRecord creates a new stock record for a product-variant combination
func NewStockRecord(productKey, variantKey string) (*StockRecord, error) {
	if productKey == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT_KEY", "Product key cannot be empty")
	}
	if variantKey == "" {
		return nil, shared.NewDomainError("INVALID_VARIANT_KEY", "Variant key cannot be empty")
	}

	return &StockRecord{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductKey:        productKey,
		VariantKey:        variantKey,
		StockLevel:        0,
		ReservedStock:     0,
		LowStockThreshold: DefaultLowStockThreshold,
	}, nil
}

// AvailableToSell returns the sellable quantity
func (r *StockRecord) AvailableToSell() int64 {
	return AvailableToSell(r.StockLevel, r.ReservedStock)
}

// IsLowStock returns true if the sellable quantity is at or below the threshold
func (r *StockRecord) IsLowStock() bool {
	return IsLowStock(r.StockLevel, r.ReservedStock, r.LowStockThreshold)
}

// IsOutOfStock returns true if nothing is sellable
func (r *StockRecord) IsOutOfStock() bool {
	return IsOutOfStock(r.StockLevel, r.ReservedStock)
}

// Reserve holds quantity units for a pending checkout. Stock level is not
// touched; the units only stop being sellable.
func (r *StockRecord) Reserve(quantity int64) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Reserve quantity must be positive")
	}
	if r.AvailableToSell() < quantity {
		return shared.ErrInsufficientStock
	}

	r.ReservedStock += quantity
	r.touch()

	r.AddDomainEvent(NewStockReservedEvent(r, quantity))
	r.emitIfBelowThreshold()

	return nil
}

// Release returns up to quantity reserved units to the sellable pool and
// reports how many were actually returned. Releasing more than is currently
// reserved is not an error: retried cancellations and duplicate payment
// failure webhooks must stay harmless, so the amount is clamped.
func (r *StockRecord) Release(quantity int64) (int64, error) {
	if quantity <= 0 {
		return 0, shared.NewDomainError("INVALID_QUANTITY", "Release quantity must be positive")
	}

	released := quantity
	if released > r.ReservedStock {
		released = r.ReservedStock
	}
	if released == 0 {
		return 0, nil
	}

	r.ReservedStock -= released
	r.touch()

	r.AddDomainEvent(NewStockReleasedEvent(r, released))

	return released, nil
}

// Fulfill converts reserved units into a permanent stock decrement after
// payment confirmation. Unlike Release it is never clamped: fulfilling more
// than was reserved, or more than is on hand, means the order workflow and
// the stock ledger disagree and the operation is refused.
func (r *StockRecord) Fulfill(quantity int64) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Fulfill quantity must be positive")
	}
	if quantity > r.ReservedStock || quantity > r.StockLevel {
		return shared.ErrReservationConflict
	}

	r.ReservedStock -= quantity
	r.StockLevel -= quantity
	r.touch()

	r.AddDomainEvent(NewStockFulfilledEvent(r, quantity))
	r.emitIfBelowThreshold()

	return nil
}

// Restock adds received units to the on-hand level
func (r *StockRecord) Restock(quantity int64) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Restock quantity must be positive")
	}

	r.StockLevel += quantity
	r.touch()

	r.AddDomainEvent(NewStockRestockedEvent(r, quantity))

	return nil
}

// SetStockLevel overwrites the on-hand level during admin provisioning or a
// manual count correction. The new level may not strand active reservations.
func (r *StockRecord) SetStockLevel(level int64) error {
	if level < 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Stock level cannot be negative")
	}
	if level < r.ReservedStock {
		return shared.NewDomainError("INVALID_STATE", "Stock level cannot drop below reserved stock")
	}

	r.StockLevel = level
	r.touch()
	r.emitIfBelowThreshold()

	return nil
}

// SetLowStockThreshold sets the threshold below which low-stock alerts fire
func (r *StockRecord) SetLowStockThreshold(threshold int64) error {
	if threshold < 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Low stock threshold cannot be negative")
	}

	r.LowStockThreshold = threshold
	r.touch()

	return nil
}

// touch stamps the modification time. The version is owned by the
// persistence layer: one increment per round-trip, however many fields a
// single operation changed.
func (r *StockRecord) touch() {
	r.UpdatedAt = time.Now()
}

func (r *StockRecord) emitIfBelowThreshold() {
	if r.IsLowStock() {
		r.AddDomainEvent(NewStockBelowThresholdEvent(r))
	}
}
