package stock

import (
	"github.com/elysium/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant
const AggregateTypeStockRecord = "StockRecord"

// Event type constants
const (
	EventTypeStockReserved       = "StockReserved"
	EventTypeStockReleased       = "StockReleased"
	EventTypeStockFulfilled      = "StockFulfilled"
	EventTypeStockRestocked      = "StockRestocked"
	EventTypeStockBelowThreshold = "StockBelowThreshold"
	EventTypeReservationExpired  = "ReservationExpired"
)

// StockReservedEvent is raised when units are held for a pending checkout
type StockReservedEvent struct {
	shared.BaseDomainEvent
	ProductKey      string `json:"product_key"`
	VariantKey      string `json:"variant_key"`
	Quantity        int64  `json:"quantity"`
	AvailableToSell int64  `json:"available_to_sell"`
}

// NewStockReservedEvent creates a new StockReservedEvent
func NewStockReservedEvent(record *StockRecord, quantity int64) *StockReservedEvent {
	return &StockReservedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReserved, AggregateTypeStockRecord, record.ID),
		ProductKey:      record.ProductKey,
		VariantKey:      record.VariantKey,
		Quantity:        quantity,
		AvailableToSell: record.AvailableToSell(),
	}
}

// StockReleasedEvent is raised when reserved units return to the sellable pool
type StockReleasedEvent struct {
	shared.BaseDomainEvent
	ProductKey      string `json:"product_key"`
	VariantKey      string `json:"variant_key"`
	Quantity        int64  `json:"quantity"`
	AvailableToSell int64  `json:"available_to_sell"`
}

// NewStockReleasedEvent creates a new StockReleasedEvent
func NewStockReleasedEvent(record *StockRecord, quantity int64) *StockReleasedEvent {
	return &StockReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReleased, AggregateTypeStockRecord, record.ID),
		ProductKey:      record.ProductKey,
		VariantKey:      record.VariantKey,
		Quantity:        quantity,
		AvailableToSell: record.AvailableToSell(),
	}
}

// StockFulfilledEvent is raised when reserved units are permanently decremented
type StockFulfilledEvent struct {
	shared.BaseDomainEvent
	ProductKey string `json:"product_key"`
	VariantKey string `json:"variant_key"`
	Quantity   int64  `json:"quantity"`
	StockLevel int64  `json:"stock_level"`
}

// NewStockFulfilledEvent creates a new StockFulfilledEvent
func NewStockFulfilledEvent(record *StockRecord, quantity int64) *StockFulfilledEvent {
	return &StockFulfilledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockFulfilled, AggregateTypeStockRecord, record.ID),
		ProductKey:      record.ProductKey,
		VariantKey:      record.VariantKey,
		Quantity:        quantity,
		StockLevel:      record.StockLevel,
	}
}

// StockRestockedEvent is raised when received units raise the on-hand level
type StockRestockedEvent struct {
	shared.BaseDomainEvent
	ProductKey string `json:"product_key"`
	VariantKey string `json:"variant_key"`
	Quantity   int64  `json:"quantity"`
	StockLevel int64  `json:"stock_level"`
}

// NewStockRestockedEvent creates a new StockRestockedEvent
func NewStockRestockedEvent(record *StockRecord, quantity int64) *StockRestockedEvent {
	return &StockRestockedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockRestocked, AggregateTypeStockRecord, record.ID),
		ProductKey:      record.ProductKey,
		VariantKey:      record.VariantKey,
		Quantity:        quantity,
		StockLevel:      record.StockLevel,
	}
}

// StockBelowThresholdEvent is raised when a mutation leaves a record at or
// below its low-stock threshold
type StockBelowThresholdEvent struct {
	shared.BaseDomainEvent
	ProductKey        string `json:"product_key"`
	VariantKey        string `json:"variant_key"`
	AvailableToSell   int64  `json:"available_to_sell"`
	LowStockThreshold int64  `json:"low_stock_threshold"`
}

// NewStockBelowThresholdEvent creates a new StockBelowThresholdEvent
func NewStockBelowThresholdEvent(record *StockRecord) *StockBelowThresholdEvent {
	return &StockBelowThresholdEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeStockBelowThreshold, AggregateTypeStockRecord, record.ID),
		ProductKey:        record.ProductKey,
		VariantKey:        record.VariantKey,
		AvailableToSell:   record.AvailableToSell(),
		LowStockThreshold: record.LowStockThreshold,
	}
}

// ReservationExpiredEvent is raised when the sweeper reclaims a reservation
// whose deadline passed
type ReservationExpiredEvent struct {
	shared.BaseDomainEvent
	ReservationID uuid.UUID `json:"reservation_id"`
	ProductKey    string    `json:"product_key"`
	VariantKey    string    `json:"variant_key"`
	OrderRef      string    `json:"order_ref"`
	Quantity      int64     `json:"quantity"`
}

// NewReservationExpiredEvent creates a new ReservationExpiredEvent
func NewReservationExpiredEvent(record *StockRecord, reservation *Reservation) *ReservationExpiredEvent {
	return &ReservationExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReservationExpired, AggregateTypeStockRecord, record.ID),
		ReservationID:   reservation.ID,
		ProductKey:      record.ProductKey,
		VariantKey:      record.VariantKey,
		OrderRef:        reservation.OrderRef,
		Quantity:        reservation.Quantity,
	}
}
