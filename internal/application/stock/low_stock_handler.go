package stock

import (
	"context"
	"fmt"

	"github.com/elysium/backend/internal/domain/shared"
	"github.com/elysium/backend/internal/domain/stock"
	"go.uber.org/zap"
)

// LowStockAlert describes a variant that needs replenishment attention
type LowStockAlert struct {
	ProductKey        string `json:"product_key"`
	VariantKey        string `json:"variant_key"`
	AvailableToSell   int64  `json:"available_to_sell"`
	LowStockThreshold int64  `json:"low_stock_threshold"`
	AlertType         string `json:"alert_type"` // "low_stock" or "out_of_stock"
}

// AlertNotifier delivers low-stock alerts. Email/SMS delivery lives outside
// this engine; implementations adapt whatever channel the shop uses.
type AlertNotifier interface {
	SendAlert(ctx context.Context, alert LowStockAlert) error
}

// LowStockAlertHandler reacts to StockBelowThreshold events by notifying the
// configured channel
type LowStockAlertHandler struct {
	logger   *zap.Logger
	notifier AlertNotifier
}

// NewLowStockAlertHandler creates a new handler for low stock events
func NewLowStockAlertHandler(logger *zap.Logger) *LowStockAlertHandler {
	return &LowStockAlertHandler{logger: logger}
}

// WithNotifier sets the notifier for sending alerts
func (h *LowStockAlertHandler) WithNotifier(notifier AlertNotifier) *LowStockAlertHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *LowStockAlertHandler) EventTypes() []string {
	return []string{stock.EventTypeStockBelowThreshold}
}

// Handle processes a StockBelowThresholdEvent
func (h *LowStockAlertHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	thresholdEvent, ok := event.(*stock.StockBelowThresholdEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", stock.EventTypeStockBelowThreshold),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			stock.EventTypeStockBelowThreshold, event.EventType())
	}

	alert := LowStockAlert{
		ProductKey:        thresholdEvent.ProductKey,
		VariantKey:        thresholdEvent.VariantKey,
		AvailableToSell:   thresholdEvent.AvailableToSell,
		LowStockThreshold: thresholdEvent.LowStockThreshold,
		AlertType:         "low_stock",
	}
	if thresholdEvent.AvailableToSell == 0 {
		alert.AlertType = "out_of_stock"
	}

	h.logger.Warn("stock below threshold",
		zap.String("product_key", alert.ProductKey),
		zap.String("variant_key", alert.VariantKey),
		zap.Int64("available_to_sell", alert.AvailableToSell),
		zap.Int64("low_stock_threshold", alert.LowStockThreshold),
		zap.String("alert_type", alert.AlertType),
	)

	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.SendAlert(ctx, alert); err != nil {
		h.logger.Error("failed to send low stock alert",
			zap.String("product_key", alert.ProductKey),
			zap.String("variant_key", alert.VariantKey),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// LoggingAlertNotifier is the default notifier: it only writes the alert to
// the log, which is where the admin dashboard tails it from
type LoggingAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingAlertNotifier creates a notifier that logs alerts
func NewLoggingAlertNotifier(logger *zap.Logger) *LoggingAlertNotifier {
	return &LoggingAlertNotifier{logger: logger}
}

// SendAlert logs the alert
func (n *LoggingAlertNotifier) SendAlert(_ context.Context, alert LowStockAlert) error {
	n.logger.Info("stock alert",
		zap.String("product_key", alert.ProductKey),
		zap.String("variant_key", alert.VariantKey),
		zap.Int64("available_to_sell", alert.AvailableToSell),
		zap.Int64("low_stock_threshold", alert.LowStockThreshold),
		zap.String("alert_type", alert.AlertType),
	)
	return nil
}
