package stock

import (
	"context"

	"github.com/elysium/backend/internal/domain/stock"
)

// StockStatus is one row of an admin replenishment view
type StockStatus struct {
	ProductKey        string `json:"product_key"`
	VariantKey        string `json:"variant_key"`
	StockLevel        int64  `json:"stock_level"`
	ReservedStock     int64  `json:"reserved_stock"`
	AvailableToSell   int64  `json:"available_to_sell"`
	LowStockThreshold int64  `json:"low_stock_threshold"`
	IsOutOfStock      bool   `json:"is_out_of_stock"`
}

// LowStockReporter feeds the admin dashboard widgets. It reads straight from
// the store, never through the badge cache: replenishment decisions should
// see the same counters the engine sees.
type LowStockReporter struct {
	recordRepo stock.StockRecordRepository
}

// NewLowStockReporter creates a new LowStockReporter
func NewLowStockReporter(recordRepo stock.StockRecordRepository) *LowStockReporter {
	return &LowStockReporter{recordRepo: recordRepo}
}

// ListLowStock returns records at or below their threshold, most urgent first
func (r *LowStockReporter) ListLowStock(ctx context.Context) ([]StockStatus, error) {
	records, err := r.recordRepo.FindLowStock(ctx)
	if err != nil {
		return nil, err
	}
	return toStatuses(records), nil
}

// ListOutOfStock returns records with nothing left to sell
func (r *LowStockReporter) ListOutOfStock(ctx context.Context) ([]StockStatus, error) {
	records, err := r.recordRepo.FindOutOfStock(ctx)
	if err != nil {
		return nil, err
	}
	return toStatuses(records), nil
}

func toStatuses(records []stock.StockRecord) []StockStatus {
	statuses := make([]StockStatus, 0, len(records))
	for i := range records {
		record := &records[i]
		statuses = append(statuses, StockStatus{
			ProductKey:        record.ProductKey,
			VariantKey:        record.VariantKey,
			StockLevel:        record.StockLevel,
			ReservedStock:     record.ReservedStock,
			AvailableToSell:   record.AvailableToSell(),
			LowStockThreshold: record.LowStockThreshold,
			IsOutOfStock:      record.IsOutOfStock(),
		})
	}
	return statuses
}
