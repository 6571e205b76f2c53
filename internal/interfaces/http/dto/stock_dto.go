package dto

import (
	"time"

	appstock "github.com/elysium/backend/internal/application/stock"
	"github.com/elysium/backend/internal/domain/stock"
	"github.com/google/uuid"
)

// AvailabilityQuery identifies a variant for badge reads
type AvailabilityQuery struct {
	ProductKey string `form:"product_key" binding:"required,stockkey"`
	VariantKey string `form:"variant_key" binding:"required,stockkey"`
}

// ReserveRequest places a hold on sellable units for a checkout
type ReserveRequest struct {
	ProductKey string `json:"product_key" binding:"required,stockkey"`
	VariantKey string `json:"variant_key" binding:"required,stockkey"`
	Quantity   int64  `json:"quantity" binding:"required,gt=0"`
	OrderRef   string `json:"order_ref" binding:"required,min=1,max=128"`
	TTLSeconds int64  `json:"ttl_seconds" binding:"omitempty,gt=0"`
}

// TTL returns the requested reservation lifetime, zero meaning the default
func (r *ReserveRequest) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// ReleaseRequest returns held units to the sellable pool
type ReleaseRequest struct {
	ProductKey string `json:"product_key" binding:"required,stockkey"`
	VariantKey string `json:"variant_key" binding:"required,stockkey"`
	Quantity   int64  `json:"quantity" binding:"required,gt=0"`
	OrderRef   string `json:"order_ref" binding:"required,min=1,max=128"`
}

// FulfillRequest converts held units into shipped units
type FulfillRequest struct {
	ProductKey string `json:"product_key" binding:"required,stockkey"`
	VariantKey string `json:"variant_key" binding:"required,stockkey"`
	Quantity   int64  `json:"quantity" binding:"required,gt=0"`
	OrderRef   string `json:"order_ref" binding:"required,min=1,max=128"`
}

// RestockRequest adds received units to on-hand stock
type RestockRequest struct {
	ProductKey string `json:"product_key" binding:"required,stockkey"`
	VariantKey string `json:"variant_key" binding:"required,stockkey"`
	Quantity   int64  `json:"quantity" binding:"required,gt=0"`
}

// UpsertRecordRequest provisions or updates a stock record.
// Omitted fields keep their current value; a new record starts at zero
// stock and the default threshold.
type UpsertRecordRequest struct {
	ProductKey        string `json:"product_key" binding:"required,stockkey"`
	VariantKey        string `json:"variant_key" binding:"required,stockkey"`
	StockLevel        *int64 `json:"stock_level" binding:"omitempty,gte=0"`
	LowStockThreshold *int64 `json:"low_stock_threshold" binding:"omitempty,gte=0"`
}

// OutcomeResponse reports the result of a stock operation
type OutcomeResponse struct {
	Status          string `json:"status"`
	ProductKey      string `json:"product_key"`
	VariantKey      string `json:"variant_key"`
	Quantity        int64  `json:"quantity"`
	AvailableToSell int64  `json:"available_to_sell"`
	ReservationID   string `json:"reservation_id,omitempty"`
}

// NewOutcomeResponse converts an engine outcome to its API shape
func NewOutcomeResponse(outcome *appstock.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		Status:          string(outcome.Status),
		ProductKey:      outcome.ProductKey,
		VariantKey:      outcome.VariantKey,
		Quantity:        outcome.Quantity,
		AvailableToSell: outcome.AvailableToSell,
	}
	if outcome.ReservationID != uuid.Nil {
		resp.ReservationID = outcome.ReservationID.String()
	}
	return resp
}

// StockRecordResponse represents a stock record in API responses
type StockRecordResponse struct {
	ID                string `json:"id"`
	ProductKey        string `json:"product_key"`
	VariantKey        string `json:"variant_key"`
	StockLevel        int64  `json:"stock_level"`
	ReservedStock     int64  `json:"reserved_stock"`
	AvailableToSell   int64  `json:"available_to_sell"`
	LowStockThreshold int64  `json:"low_stock_threshold"`
	IsLowStock        bool   `json:"is_low_stock"`
	IsOutOfStock      bool   `json:"is_out_of_stock"`
	Version           int    `json:"version"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

// NewStockRecordResponse converts a stock record to its API shape
func NewStockRecordResponse(record *stock.StockRecord) StockRecordResponse {
	return StockRecordResponse{
		ID:                record.ID.String(),
		ProductKey:        record.ProductKey,
		VariantKey:        record.VariantKey,
		StockLevel:        record.StockLevel,
		ReservedStock:     record.ReservedStock,
		AvailableToSell:   record.AvailableToSell(),
		LowStockThreshold: record.LowStockThreshold,
		IsLowStock:        record.IsLowStock(),
		IsOutOfStock:      record.IsOutOfStock(),
		Version:           record.Version,
		CreatedAt:         record.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         record.UpdatedAt.Format(time.RFC3339),
	}
}

// NewStockRecordResponses converts a slice of stock records
func NewStockRecordResponses(records []stock.StockRecord) []StockRecordResponse {
	responses := make([]StockRecordResponse, 0, len(records))
	for i := range records {
		responses = append(responses, NewStockRecordResponse(&records[i]))
	}
	return responses
}
