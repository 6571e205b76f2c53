package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/elysium/backend/internal/domain/shared"
	"github.com/elysium/backend/internal/domain/stock"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormReservationRepository implements ReservationRepository using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// Save creates or updates a reservation ledger row
func (r *GormReservationRepository) Save(ctx context.Context, reservation *stock.Reservation) error {
	return r.db.WithContext(ctx).Save(reservation).Error
}

// FindByID finds a reservation by its ID
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.Reservation, error) {
	var reservation stock.Reservation
	if err := r.db.WithContext(ctx).First(&reservation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// FindActiveByOrderRef finds the active rows an order holds on a record, oldest first
func (r *GormReservationRepository) FindActiveByOrderRef(ctx context.Context, stockRecordID uuid.UUID, orderRef string) ([]stock.Reservation, error) {
	var reservations []stock.Reservation
	if err := r.db.WithContext(ctx).
		Where("stock_record_id = ? AND order_ref = ? AND status = ?", stockRecordID, orderRef, stock.ReservationStatusActive).
		Order("created_at ASC").
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindExpired finds active reservations whose deadline passed, oldest deadline first
func (r *GormReservationRepository) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]stock.Reservation, error) {
	var reservations []stock.Reservation
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", stock.ReservationStatusActive, asOf).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// Compile-time interface check
var _ stock.ReservationRepository = (*GormReservationRepository)(nil)
