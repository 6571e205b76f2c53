package stock

import (
	"context"
	"testing"
	"time"

	"github.com/elysium/backend/internal/domain/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReservationExpirationService(t *testing.T) {
	ctx := context.Background()

	t.Run("reclaims overdue reservations", func(t *testing.T) {
		store := newMemoryStore()
		record := store.seed("ring-aurora", "18k-yellow-gold-7", 10, 3, 3)
		engine := newTestEngine(store)
		service := NewReservationExpirationService(reservationStore{store}, engine, zap.NewNop())

		overdue := stock.NewReservation(record.ID, "order-stale", 3, time.Now().Add(-time.Minute))
		require.NoError(t, store.SaveReservation(ctx, overdue))

		stats, err := service.ReleaseExpired(ctx)
		require.NoError(t, err)

		assert.Equal(t, 1, stats.TotalExpired)
		assert.Equal(t, 1, stats.Reclaimed)
		assert.Equal(t, 0, stats.Failed)
		assert.Equal(t, int64(3), stats.UnitsReleased)

		updated, err := store.FindByKey(ctx, "ring-aurora", "18k-yellow-gold-7")
		require.NoError(t, err)
		assert.Equal(t, int64(0), updated.ReservedStock)
		assert.Equal(t, int64(10), updated.AvailableToSell())

		closed, err := store.FindReservationByID(ctx, overdue.ID)
		require.NoError(t, err)
		assert.Equal(t, stock.ReservationStatusExpired, closed.Status)
	})

	t.Run("leaves live reservations alone", func(t *testing.T) {
		store := newMemoryStore()
		record := store.seed("ring-aurora", "18k-yellow-gold-7", 10, 2, 3)
		engine := newTestEngine(store)
		service := NewReservationExpirationService(reservationStore{store}, engine, zap.NewNop())

		live := stock.NewReservation(record.ID, "order-live", 2, time.Now().Add(time.Hour))
		require.NoError(t, store.SaveReservation(ctx, live))

		stats, err := service.ReleaseExpired(ctx)
		require.NoError(t, err)

		assert.Equal(t, 0, stats.TotalExpired)
		updated, _ := store.FindByKey(ctx, "ring-aurora", "18k-yellow-gold-7")
		assert.Equal(t, int64(2), updated.ReservedStock)
	})

	t.Run("empty sweep", func(t *testing.T) {
		store := newMemoryStore()
		engine := newTestEngine(store)
		service := NewReservationExpirationService(reservationStore{store}, engine, zap.NewNop())

		stats, err := service.ReleaseExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.TotalExpired)

		count, err := service.CountExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}
