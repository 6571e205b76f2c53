package stock

import (
	"context"
	"time"

	"github.com/elysium/backend/internal/domain/stock"
	"go.uber.org/zap"
)

// DefaultExpirationBatchSize bounds how many overdue reservations one sweep
// processes before handing back to the scheduler
const DefaultExpirationBatchSize = 100

// ReservationExpirationService reclaims reservations whose deadline passed.
// The engine never expires holds on its own clock; this service is the
// external caller the checkout workflow delegates that job to.
type ReservationExpirationService struct {
	reservationRepo stock.ReservationRepository
	engine          *ReservationEngine
	logger          *zap.Logger
	batchSize       int
}

// NewReservationExpirationService creates a new ReservationExpirationService
func NewReservationExpirationService(
	reservationRepo stock.ReservationRepository,
	engine *ReservationEngine,
	logger *zap.Logger,
) *ReservationExpirationService {
	return &ReservationExpirationService{
		reservationRepo: reservationRepo,
		engine:          engine,
		logger:          logger,
		batchSize:       DefaultExpirationBatchSize,
	}
}

// SetBatchSize overrides the per-sweep batch size
func (s *ReservationExpirationService) SetBatchSize(size int) {
	if size > 0 {
		s.batchSize = size
	}
}

// ExpiredReservationStats summarizes one sweep
type ExpiredReservationStats struct {
	TotalExpired  int       `json:"total_expired"`
	Reclaimed     int       `json:"reclaimed"`
	Failed        int       `json:"failed"`
	UnitsReleased int64     `json:"units_released"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// ReleaseExpired finds overdue reservations and hands their units back to the
// sellable pool, one reservation at a time so a single bad row cannot stall
// the sweep
func (s *ReservationExpirationService) ReleaseExpired(ctx context.Context) (*ExpiredReservationStats, error) {
	stats := &ExpiredReservationStats{ProcessedAt: time.Now()}

	expired, err := s.reservationRepo.FindExpired(ctx, time.Now(), s.batchSize)
	if err != nil {
		s.logger.Error("failed to find expired reservations", zap.Error(err))
		return nil, err
	}

	stats.TotalExpired = len(expired)
	if stats.TotalExpired == 0 {
		s.logger.Debug("no expired reservations found")
		return stats, nil
	}

	s.logger.Info("found expired reservations", zap.Int("count", stats.TotalExpired))

	for i := range expired {
		reservation := &expired[i]
		outcome, err := s.engine.ExpireReservation(ctx, reservation)
		if err != nil {
			s.logger.Error("failed to reclaim expired reservation",
				zap.String("reservation_id", reservation.ID.String()),
				zap.String("order_ref", reservation.OrderRef),
				zap.Error(err),
			)
			stats.Failed++
			continue
		}
		stats.Reclaimed++
		stats.UnitsReleased += outcome.Quantity
	}

	s.logger.Info("completed expired reservation sweep",
		zap.Int("total", stats.TotalExpired),
		zap.Int("reclaimed", stats.Reclaimed),
		zap.Int("failed", stats.Failed),
		zap.Int64("units_released", stats.UnitsReleased),
	)

	return stats, nil
}

// CountExpired returns how many reservations are currently overdue
func (s *ReservationExpirationService) CountExpired(ctx context.Context) (int, error) {
	expired, err := s.reservationRepo.FindExpired(ctx, time.Now(), s.batchSize)
	if err != nil {
		return 0, err
	}
	return len(expired), nil
}
