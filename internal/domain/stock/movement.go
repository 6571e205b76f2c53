package stock

import (
	"time"

	"github.com/elysium/backend/internal/domain/shared"
)

// Movement types
const (
	MovementTypeProvision = "PROVISION"
	MovementTypeRestock   = "RESTOCK"
	MovementTypeReserve   = "RESERVE"
	MovementTypeRelease   = "RELEASE"
	MovementTypeFulfill   = "FULFILL"
	MovementTypeExpire    = "EXPIRE"
)

// StockMovement is an append-only audit entry for every counter change.
// Writing it is best effort; a failed audit write never fails the operation
// that produced it.
type StockMovement struct {
	shared.BaseEntity
	ProductKey     string    `gorm:"type:varchar(100);not null;index:idx_stock_movement_key"`
	VariantKey     string    `gorm:"type:varchar(100);not null;index:idx_stock_movement_key"`
	MovementType   string    `gorm:"type:varchar(20);not null;index"`
	Quantity       int64     `gorm:"not null"`
	StockBefore    int64     `gorm:"not null"`
	StockAfter     int64     `gorm:"not null"`
	ReservedBefore int64     `gorm:"not null"`
	ReservedAfter  int64     `gorm:"not null"`
	OrderRef       string    `gorm:"type:varchar(100);index"`
	RecordedAt     time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (StockMovement) TableName() string {
	return "stock_movements"
}

// NewStockMovement captures the before/after counters of one operation
func NewStockMovement(movementType string, before, after *StockRecord, quantity int64, orderRef string) *StockMovement {
	return &StockMovement{
		BaseEntity:     shared.NewBaseEntity(),
		ProductKey:     after.ProductKey,
		VariantKey:     after.VariantKey,
		MovementType:   movementType,
		Quantity:       quantity,
		StockBefore:    before.StockLevel,
		StockAfter:     after.StockLevel,
		ReservedBefore: before.ReservedStock,
		ReservedAfter:  after.ReservedStock,
		OrderRef:       orderRef,
		RecordedAt:     time.Now(),
	}
}
