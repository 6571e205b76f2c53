package handler

import (
	"fmt"
	"net/http"

	appstock "github.com/elysium/backend/internal/application/stock"
	"github.com/elysium/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// StockHandler exposes the reservation engine and stock reports over HTTP.
// The checkout/order workflow drives reserve/release/fulfill, receiving
// drives restock, and the admin dashboard uses the record and report routes.
type StockHandler struct {
	BaseHandler
	engine   *appstock.ReservationEngine
	reporter *appstock.LowStockReporter
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(engine *appstock.ReservationEngine, reporter *appstock.LowStockReporter) *StockHandler {
	return &StockHandler{
		engine:   engine,
		reporter: reporter,
	}
}

// CheckAvailability returns the sellable snapshot for a storefront badge.
// An unknown variant reports as out of stock rather than 404: absence of a
// record means the variant is not sellable.
func (h *StockHandler) CheckAvailability(c *gin.Context) {
	var query dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.HandleBindingError(c, err)
		return
	}

	snapshot, err := h.engine.CheckAvailability(c.Request.Context(), query.ProductKey, query.VariantKey)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, snapshot)
}

// GetRecords returns the stock records for a product, one per variant.
// With a variant_key query parameter it returns that single variant.
func (h *StockHandler) GetRecords(c *gin.Context) {
	productKey := c.Param("product_key")

	if variantKey := c.Query("variant_key"); variantKey != "" {
		record, err := h.engine.GetRecord(c.Request.Context(), productKey, variantKey)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, dto.NewStockRecordResponse(record))
		return
	}

	records, err := h.engine.ListByProduct(c.Request.Context(), productKey)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewStockRecordResponses(records))
}

// Reserve places a hold on sellable units for a checkout
func (h *StockHandler) Reserve(c *gin.Context) {
	var req dto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindingError(c, err)
		return
	}

	outcome, err := h.engine.Reserve(c.Request.Context(), req.ProductKey, req.VariantKey, req.Quantity, req.OrderRef, req.TTL())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.respondOutcome(c, outcome)
}

// Release returns held units to the sellable pool
func (h *StockHandler) Release(c *gin.Context) {
	var req dto.ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindingError(c, err)
		return
	}

	outcome, err := h.engine.Release(c.Request.Context(), req.ProductKey, req.VariantKey, req.Quantity, req.OrderRef)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.respondOutcome(c, outcome)
}

// Fulfill converts held units into shipped units
func (h *StockHandler) Fulfill(c *gin.Context) {
	var req dto.FulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindingError(c, err)
		return
	}

	outcome, err := h.engine.Fulfill(c.Request.Context(), req.ProductKey, req.VariantKey, req.Quantity, req.OrderRef)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.respondOutcome(c, outcome)
}

// Restock adds received units to on-hand stock, creating the record if needed
func (h *StockHandler) Restock(c *gin.Context) {
	var req dto.RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindingError(c, err)
		return
	}

	outcome, err := h.engine.Restock(c.Request.Context(), req.ProductKey, req.VariantKey, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.respondOutcome(c, outcome)
}

// UpsertRecord provisions a stock record or updates its level and threshold
func (h *StockHandler) UpsertRecord(c *gin.Context) {
	var req dto.UpsertRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindingError(c, err)
		return
	}

	record, err := h.engine.Provision(c.Request.Context(), req.ProductKey, req.VariantKey, req.StockLevel, req.LowStockThreshold)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.NewStockRecordResponse(record))
}

// ListLowStock returns variants at or below their reorder threshold,
// most urgent first
func (h *StockHandler) ListLowStock(c *gin.Context) {
	statuses, err := h.reporter.ListLowStock(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, statuses)
}

// ListOutOfStock returns variants with nothing left to sell
func (h *StockHandler) ListOutOfStock(c *gin.Context) {
	statuses, err := h.reporter.ListOutOfStock(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, statuses)
}

// respondOutcome maps an engine outcome to its HTTP shape: applied
// operations return 200 with the outcome, rejections return the
// status-appropriate error carrying live availability.
func (h *StockHandler) respondOutcome(c *gin.Context, outcome *appstock.Outcome) {
	if outcome.Applied() {
		h.Success(c, dto.NewOutcomeResponse(outcome))
		return
	}

	switch outcome.Status {
	case appstock.StatusInsufficientStock:
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeInsufficientStock,
			fmt.Sprintf("Insufficient stock: %d units available", outcome.AvailableToSell))
	case appstock.StatusNotFound:
		h.NotFound(c, "Stock record not found")
	case appstock.StatusConflict:
		h.Error(c, http.StatusConflict, dto.ErrCodeReservationConflict,
			"Requested quantity exceeds reserved or on-hand stock")
	default:
		h.InternalError(c, "Unexpected operation outcome")
	}
}

// RegisterRoutes registers all inventory routes
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	inventory := rg.Group("/inventory")
	{
		inventory.GET("/availability", h.CheckAvailability)
		inventory.GET("/records/:product_key", h.GetRecords)
		inventory.PUT("/records", h.UpsertRecord)
		inventory.POST("/reserve", h.Reserve)
		inventory.POST("/release", h.Release)
		inventory.POST("/fulfill", h.Fulfill)
		inventory.POST("/restock", h.Restock)
		inventory.GET("/low-stock", h.ListLowStock)
		inventory.GET("/out-of-stock", h.ListOutOfStock)
	}
}
