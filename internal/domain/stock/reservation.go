package stock

import (
	"time"

	"github.com/elysium/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Reservation statuses
const (
	ReservationStatusActive    = "active"
	ReservationStatusReleased  = "released"
	ReservationStatusFulfilled = "fulfilled"
	ReservationStatusExpired   = "expired"
)

// Reservation records which order holds how many units of a stock record.
// The counters on StockRecord stay authoritative for availability; the
// ledger exists so the expiry sweeper and support staff can see who is
// holding stock and since when.
type Reservation struct {
	shared.BaseEntity
	StockRecordID uuid.UUID  `gorm:"type:uuid;not null;index"`
	OrderRef      string     `gorm:"type:varchar(100);not null;index"` // Checkout/order reference holding the units
	Quantity      int64      `gorm:"not null"`
	ExpiresAt     time.Time  `gorm:"not null;index"`
	Status        string     `gorm:"type:varchar(20);not null;default:'active';index"`
	ClosedAt      *time.Time `gorm:"type:timestamp"`
}

// TableName returns the table name for GORM
func (Reservation) TableName() string {
	return "stock_reservations"
}

// NewReservation creates an active reservation for an order reference
func NewReservation(stockRecordID uuid.UUID, orderRef string, quantity int64, expiresAt time.Time) *Reservation {
	return &Reservation{
		BaseEntity:    shared.NewBaseEntity(),
		StockRecordID: stockRecordID,
		OrderRef:      orderRef,
		Quantity:      quantity,
		ExpiresAt:     expiresAt,
		Status:        ReservationStatusActive,
	}
}

// IsActive returns true if the reservation still holds stock
func (res *Reservation) IsActive() bool {
	return res.Status == ReservationStatusActive
}

// IsExpired returns true if the reservation is past its deadline
func (res *Reservation) IsExpired() bool {
	return time.Now().After(res.ExpiresAt)
}

// MarkReleased closes the reservation after its units went back on sale
func (res *Reservation) MarkReleased() {
	res.close(ReservationStatusReleased)
}

// MarkFulfilled closes the reservation after its units shipped
func (res *Reservation) MarkFulfilled() {
	res.close(ReservationStatusFulfilled)
}

// MarkExpired closes the reservation after the sweeper reclaimed its units
func (res *Reservation) MarkExpired() {
	res.close(ReservationStatusExpired)
}

func (res *Reservation) close(status string) {
	now := time.Now()
	res.Status = status
	res.ClosedAt = &now
	res.UpdatedAt = now
}
