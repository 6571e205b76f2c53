package stock

import (
	"context"
	"testing"

	"github.com/elysium/backend/internal/domain/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturingNotifier struct {
	alerts []LowStockAlert
}

func (n *capturingNotifier) SendAlert(_ context.Context, alert LowStockAlert) error {
	n.alerts = append(n.alerts, alert)
	return nil
}

func TestLowStockAlertHandler(t *testing.T) {
	ctx := context.Background()

	newEvent := func(stockLevel, reserved, threshold int64) *stock.StockBelowThresholdEvent {
		record, err := stock.NewStockRecord("ring-aurora", "18k-yellow-gold-7")
		require.NoError(t, err)
		record.StockLevel = stockLevel
		record.ReservedStock = reserved
		record.LowStockThreshold = threshold
		return stock.NewStockBelowThresholdEvent(record)
	}

	t.Run("subscribes to threshold events only", func(t *testing.T) {
		handler := NewLowStockAlertHandler(zap.NewNop())
		assert.Equal(t, []string{stock.EventTypeStockBelowThreshold}, handler.EventTypes())
	})

	t.Run("forwards low stock alert to the notifier", func(t *testing.T) {
		notifier := &capturingNotifier{}
		handler := NewLowStockAlertHandler(zap.NewNop()).WithNotifier(notifier)

		err := handler.Handle(ctx, newEvent(4, 2, 3))
		require.NoError(t, err)

		require.Len(t, notifier.alerts, 1)
		assert.Equal(t, "low_stock", notifier.alerts[0].AlertType)
		assert.Equal(t, int64(2), notifier.alerts[0].AvailableToSell)
	})

	t.Run("flags exhausted availability as out of stock", func(t *testing.T) {
		notifier := &capturingNotifier{}
		handler := NewLowStockAlertHandler(zap.NewNop()).WithNotifier(notifier)

		err := handler.Handle(ctx, newEvent(5, 5, 3))
		require.NoError(t, err)

		require.Len(t, notifier.alerts, 1)
		assert.Equal(t, "out_of_stock", notifier.alerts[0].AlertType)
	})

	t.Run("rejects foreign event types", func(t *testing.T) {
		handler := NewLowStockAlertHandler(zap.NewNop())

		record, err := stock.NewStockRecord("ring-aurora", "18k-yellow-gold-7")
		require.NoError(t, err)
		err = handler.Handle(ctx, stock.NewStockRestockedEvent(record, 1))
		require.Error(t, err)
	})

	t.Run("works without a notifier", func(t *testing.T) {
		handler := NewLowStockAlertHandler(zap.NewNop())
		assert.NoError(t, handler.Handle(ctx, newEvent(3, 1, 3)))
	})
}
