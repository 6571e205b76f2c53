package stock

import (
	"context"
	"errors"
	"time"

	"github.com/elysium/backend/internal/domain/shared"
	"github.com/elysium/backend/internal/domain/stock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultReservationTTL bounds how long a checkout may hold stock before
	// the expiry sweeper hands it back
	DefaultReservationTTL = 30 * time.Minute

	// releaseRetryAttempts bounds the re-read loop when a release races
	// another adjustment of the same key. The clamp depends on the reserved
	// counter read just before the adjustment, so a lost race re-reads and
	// tries again.
	releaseRetryAttempts = 3
)

// OutcomeStatus classifies the business result of an engine operation
type OutcomeStatus string

// Outcome statuses
const (
	StatusReserved          OutcomeStatus = "RESERVED"
	StatusReleased          OutcomeStatus = "RELEASED"
	StatusFulfilled         OutcomeStatus = "FULFILLED"
	StatusRestocked         OutcomeStatus = "RESTOCKED"
	StatusInsufficientStock OutcomeStatus = "INSUFFICIENT_STOCK"
	StatusNotFound          OutcomeStatus = "NOT_FOUND"
	StatusConflict          OutcomeStatus = "CONFLICT"
)

// Outcome is the typed business result of a reservation operation. Expected
// rejections (insufficient stock, unknown variant, fulfillment conflicts)
// arrive here, not as Go errors; the error return of engine methods is
// reserved for infrastructure failures, which are passed through untouched
// and never retried internally.
type Outcome struct {
	Status          OutcomeStatus `json:"status"`
	ProductKey      string        `json:"product_key"`
	VariantKey      string        `json:"variant_key"`
	Quantity        int64         `json:"quantity"` // Units actually applied (a clamped release reports the clamped amount)
	AvailableToSell int64         `json:"available_to_sell"`
	ReservationID   uuid.UUID     `json:"reservation_id,omitempty"`
}

// Applied reports whether the operation succeeded. A fully clamped release
// still counts: the caller's intent (that reservation no longer holds stock)
// is satisfied even when no counters moved.
func (o *Outcome) Applied() bool {
	switch o.Status {
	case StatusReserved, StatusReleased, StatusFulfilled, StatusRestocked:
		return true
	default:
		return false
	}
}

// AvailabilitySnapshot is the read-path view served to storefront badges
type AvailabilitySnapshot struct {
	ProductKey        string `json:"product_key"`
	VariantKey        string `json:"variant_key"`
	AvailableToSell   int64  `json:"available_to_sell"`
	LowStockThreshold int64  `json:"low_stock_threshold"`
	IsLowStock        bool   `json:"is_low_stock"`
	IsOutOfStock      bool   `json:"is_out_of_stock"`
}

// AvailabilityCache caches availability snapshots for badge reads. Entries
// carry a bounded TTL; mutations invalidate eagerly, so a stale read is
// limited to the TTL window after a lost invalidation.
type AvailabilityCache interface {
	Get(ctx context.Context, productKey, variantKey string) (*AvailabilitySnapshot, error)
	Set(ctx context.Context, snapshot *AvailabilitySnapshot) error
	Invalidate(ctx context.Context, productKey, variantKey string) error
}

// ReservationEngine orchestrates reserve, release, fulfill and restock
// against the stock store. It holds no in-process locks and keeps no
// availability counters of its own: every decision is made by the store's
// guarded atomic adjustment, so any number of engine instances can run
// against the same database.
type ReservationEngine struct {
	recordRepo      stock.StockRecordRepository
	reservationRepo stock.ReservationRepository
	movementRepo    stock.StockMovementRepository
	eventPublisher  shared.EventPublisher
	cache           AvailabilityCache
	logger          *zap.Logger
	reservationTTL  time.Duration
}

// NewReservationEngine creates a new ReservationEngine
func NewReservationEngine(
	recordRepo stock.StockRecordRepository,
	reservationRepo stock.ReservationRepository,
	movementRepo stock.StockMovementRepository,
	logger *zap.Logger,
) *ReservationEngine {
	return &ReservationEngine{
		recordRepo:      recordRepo,
		reservationRepo: reservationRepo,
		movementRepo:    movementRepo,
		logger:          logger,
		reservationTTL:  DefaultReservationTTL,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (e *ReservationEngine) SetEventPublisher(publisher shared.EventPublisher) {
	e.eventPublisher = publisher
}

// SetAvailabilityCache sets the badge cache invalidated on every mutation
func (e *ReservationEngine) SetAvailabilityCache(cache AvailabilityCache) {
	e.cache = cache
}

// SetReservationTTL overrides the default reservation lifetime
func (e *ReservationEngine) SetReservationTTL(ttl time.Duration) {
	if ttl > 0 {
		e.reservationTTL = ttl
	}
}

// Reserve holds quantity units for orderRef. The hold succeeds only when the
// guarded adjustment finds enough sellable units at commit time; losing a
// race against another checkout reports InsufficientStock with the live
// availability, never an oversell.
func (e *ReservationEngine) Reserve(ctx context.Context, productKey, variantKey string, quantity int64, orderRef string, ttl time.Duration) (*Outcome, error) {
	if err := validateKeys(productKey, variantKey); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Reserve quantity must be positive")
	}
	if orderRef == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_REF", "Order reference is required")
	}

	if _, err := e.recordRepo.FindByKey(ctx, productKey, variantKey); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return e.notFoundOutcome(productKey, variantKey), nil
		}
		return nil, err
	}

	record, err := e.recordRepo.AtomicAdjust(ctx, productKey, variantKey, quantity, 0)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			return e.notFoundOutcome(productKey, variantKey), nil
		case errors.Is(err, shared.ErrConcurrencyConflict):
			return e.insufficientOutcome(ctx, productKey, variantKey, quantity)
		default:
			return nil, err
		}
	}

	if ttl <= 0 {
		ttl = e.reservationTTL
	}
	reservation := stock.NewReservation(record.ID, orderRef, quantity, time.Now().Add(ttl))
	if err := e.reservationRepo.Save(ctx, reservation); err != nil {
		// The hold itself is already committed in the counters; an unsaved
		// ledger row only means the sweeper cannot reclaim it on its own.
		e.logger.Error("failed to save reservation ledger entry",
			zap.String("product_key", productKey),
			zap.String("variant_key", variantKey),
			zap.String("order_ref", orderRef),
			zap.Int64("quantity", quantity),
			zap.Error(err),
		)
	}

	e.recordMovement(ctx, stock.MovementTypeReserve, movementBaseline(record, quantity, 0), record, quantity, orderRef)
	e.afterMutation(ctx, record, stock.NewStockReservedEvent(record, quantity))

	return &Outcome{
		Status:          StatusReserved,
		ProductKey:      productKey,
		VariantKey:      variantKey,
		Quantity:        quantity,
		AvailableToSell: record.AvailableToSell(),
		ReservationID:   reservation.ID,
	}, nil
}

// Release hands up to quantity reserved units back to the sellable pool.
// Releasing more than is reserved, or releasing twice for the same failure,
// is harmless: the amount is clamped to what is actually held.
func (e *ReservationEngine) Release(ctx context.Context, productKey, variantKey string, quantity int64, orderRef string) (*Outcome, error) {
	if err := validateKeys(productKey, variantKey); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Release quantity must be positive")
	}

	var lastErr error
	for attempt := 0; attempt < releaseRetryAttempts; attempt++ {
		before, err := e.recordRepo.FindByKey(ctx, productKey, variantKey)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return e.notFoundOutcome(productKey, variantKey), nil
			}
			return nil, err
		}

		released := quantity
		if released > before.ReservedStock {
			released = before.ReservedStock
		}
		if released == 0 {
			return &Outcome{
				Status:          StatusReleased,
				ProductKey:      productKey,
				VariantKey:      variantKey,
				Quantity:        0,
				AvailableToSell: before.AvailableToSell(),
			}, nil
		}

		record, err := e.recordRepo.AtomicAdjust(ctx, productKey, variantKey, -released, 0)
		if err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				// The reserved counter moved between the read and the
				// adjustment; re-read for a fresh clamp.
				lastErr = err
				continue
			}
			if errors.Is(err, shared.ErrNotFound) {
				return e.notFoundOutcome(productKey, variantKey), nil
			}
			return nil, err
		}

		e.closeReservations(ctx, record.ID, orderRef, released, func(res *stock.Reservation) { res.MarkReleased() })
		e.recordMovement(ctx, stock.MovementTypeRelease, movementBaseline(record, -released, 0), record, released, orderRef)
		e.afterMutation(ctx, record, stock.NewStockReleasedEvent(record, released))

		return &Outcome{
			Status:          StatusReleased,
			ProductKey:      productKey,
			VariantKey:      variantKey,
			Quantity:        released,
			AvailableToSell: record.AvailableToSell(),
		}, nil
	}

	return nil, lastErr
}

// Fulfill converts quantity reserved units into a permanent stock decrement
// after payment confirmation. It is never clamped: asking for more than is
// reserved or on hand means the order workflow and the ledger disagree, and
// the operation is refused with a Conflict outcome.
func (e *ReservationEngine) Fulfill(ctx context.Context, productKey, variantKey string, quantity int64, orderRef string) (*Outcome, error) {
	if err := validateKeys(productKey, variantKey); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Fulfill quantity must be positive")
	}

	if _, err := e.recordRepo.FindByKey(ctx, productKey, variantKey); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return e.notFoundOutcome(productKey, variantKey), nil
		}
		return nil, err
	}

	record, err := e.recordRepo.AtomicAdjust(ctx, productKey, variantKey, -quantity, -quantity)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			return e.notFoundOutcome(productKey, variantKey), nil
		case errors.Is(err, shared.ErrConcurrencyConflict):
			return e.conflictOutcome(ctx, productKey, variantKey, quantity)
		default:
			return nil, err
		}
	}

	e.closeReservations(ctx, record.ID, orderRef, quantity, func(res *stock.Reservation) { res.MarkFulfilled() })
	e.recordMovement(ctx, stock.MovementTypeFulfill, movementBaseline(record, -quantity, -quantity), record, quantity, orderRef)
	e.afterMutation(ctx, record, stock.NewStockFulfilledEvent(record, quantity))

	return &Outcome{
		Status:          StatusFulfilled,
		ProductKey:      productKey,
		VariantKey:      variantKey,
		Quantity:        quantity,
		AvailableToSell: record.AvailableToSell(),
	}, nil
}

// Restock adds received units to the on-hand level, provisioning the record
// if this is the first delivery for the variant
func (e *ReservationEngine) Restock(ctx context.Context, productKey, variantKey string, quantity int64) (*Outcome, error) {
	if err := validateKeys(productKey, variantKey); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Restock quantity must be positive")
	}

	if _, err := e.recordRepo.GetOrCreate(ctx, productKey, variantKey); err != nil {
		return nil, err
	}

	record, err := e.recordRepo.AtomicAdjust(ctx, productKey, variantKey, 0, quantity)
	if err != nil {
		return nil, err
	}

	e.recordMovement(ctx, stock.MovementTypeRestock, movementBaseline(record, 0, quantity), record, quantity, "")
	e.afterMutation(ctx, record, stock.NewStockRestockedEvent(record, quantity))

	return &Outcome{
		Status:          StatusRestocked,
		ProductKey:      productKey,
		VariantKey:      variantKey,
		Quantity:        quantity,
		AvailableToSell: record.AvailableToSell(),
	}, nil
}

// ExpireReservation reclaims the units of one overdue reservation and closes
// its ledger row. Called by the expiry sweeper; the engine itself never
// expires reservations on its own clock.
func (e *ReservationEngine) ExpireReservation(ctx context.Context, reservation *stock.Reservation) (*Outcome, error) {
	if reservation == nil || !reservation.IsActive() {
		return nil, shared.NewDomainError("INVALID_STATE", "Reservation is not active")
	}

	record, err := e.recordRepo.FindByID(ctx, reservation.StockRecordID)
	if err != nil {
		return nil, err
	}

	outcome, err := e.Release(ctx, record.ProductKey, record.VariantKey, reservation.Quantity, reservation.OrderRef)
	if err != nil {
		return nil, err
	}

	reservation.MarkExpired()
	if err := e.reservationRepo.Save(ctx, reservation); err != nil {
		e.logger.Error("failed to close expired reservation",
			zap.String("reservation_id", reservation.ID.String()),
			zap.Error(err),
		)
	}

	if e.eventPublisher != nil {
		if err := e.eventPublisher.Publish(ctx, stock.NewReservationExpiredEvent(record, reservation)); err != nil {
			e.logger.Warn("failed to publish reservation expired event", zap.Error(err))
		}
	}

	return outcome, nil
}

// CheckAvailability answers the storefront badge question for one variant.
// An unprovisioned variant is simply not sellable: zero availability, out of
// stock, no record created.
func (e *ReservationEngine) CheckAvailability(ctx context.Context, productKey, variantKey string) (*AvailabilitySnapshot, error) {
	if err := validateKeys(productKey, variantKey); err != nil {
		return nil, err
	}

	if e.cache != nil {
		if snapshot, err := e.cache.Get(ctx, productKey, variantKey); err == nil && snapshot != nil {
			return snapshot, nil
		}
	}

	record, err := e.recordRepo.FindByKey(ctx, productKey, variantKey)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return &AvailabilitySnapshot{
				ProductKey:   productKey,
				VariantKey:   variantKey,
				IsLowStock:   true,
				IsOutOfStock: true,
			}, nil
		}
		return nil, err
	}

	snapshot := snapshotOf(record)
	if e.cache != nil {
		if err := e.cache.Set(ctx, snapshot); err != nil {
			e.logger.Warn("failed to cache availability snapshot", zap.Error(err))
		}
	}
	return snapshot, nil
}

// GetRecord returns the stock record for a variant
func (e *ReservationEngine) GetRecord(ctx context.Context, productKey, variantKey string) (*stock.StockRecord, error) {
	if err := validateKeys(productKey, variantKey); err != nil {
		return nil, err
	}
	return e.recordRepo.FindByKey(ctx, productKey, variantKey)
}

// ListByProduct returns every variant record of a product
func (e *ReservationEngine) ListByProduct(ctx context.Context, productKey string) ([]stock.StockRecord, error) {
	if productKey == "" {
		return nil, shared.NewDomainError("INVALID_PRODUCT_KEY", "Product key cannot be empty")
	}
	return e.recordRepo.FindByProduct(ctx, productKey)
}

// Provision creates or updates a record from the admin surface. Stock level
// and threshold are each optional; reserved stock is never writable here.
func (e *ReservationEngine) Provision(ctx context.Context, productKey, variantKey string, stockLevel, threshold *int64) (*stock.StockRecord, error) {
	if err := validateKeys(productKey, variantKey); err != nil {
		return nil, err
	}
	if stockLevel == nil && threshold == nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Nothing to provision")
	}

	record, err := e.recordRepo.GetOrCreate(ctx, productKey, variantKey)
	if err != nil {
		return nil, err
	}

	before := *record
	if stockLevel != nil {
		if err := record.SetStockLevel(*stockLevel); err != nil {
			return nil, err
		}
	}
	if threshold != nil {
		if err := record.SetLowStockThreshold(*threshold); err != nil {
			return nil, err
		}
	}

	if err := e.recordRepo.Save(ctx, record); err != nil {
		return nil, err
	}

	e.recordMovement(ctx, stock.MovementTypeProvision, &before, record, record.StockLevel-before.StockLevel, "")
	e.publishDomainEvents(ctx, record)
	e.invalidateCache(ctx, productKey, variantKey)

	return record, nil
}

func (e *ReservationEngine) insufficientOutcome(ctx context.Context, productKey, variantKey string, requested int64) (*Outcome, error) {
	record, err := e.recordRepo.FindByKey(ctx, productKey, variantKey)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return e.notFoundOutcome(productKey, variantKey), nil
		}
		return nil, err
	}

	e.logger.Info("reservation rejected, insufficient stock",
		zap.String("product_key", productKey),
		zap.String("variant_key", variantKey),
		zap.Int64("requested", requested),
		zap.Int64("available", record.AvailableToSell()),
	)

	return &Outcome{
		Status:          StatusInsufficientStock,
		ProductKey:      productKey,
		VariantKey:      variantKey,
		Quantity:        requested,
		AvailableToSell: record.AvailableToSell(),
	}, nil
}

func (e *ReservationEngine) conflictOutcome(ctx context.Context, productKey, variantKey string, requested int64) (*Outcome, error) {
	record, err := e.recordRepo.FindByKey(ctx, productKey, variantKey)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return e.notFoundOutcome(productKey, variantKey), nil
		}
		return nil, err
	}

	// A fulfillment that exceeds the reserved or on-hand counters means the
	// order workflow and the stock ledger disagree about reality. Nothing is
	// clamped and nothing is applied; this log line is the alarm bell.
	e.logger.Error("fulfillment conflict, counters disagree with order workflow",
		zap.String("product_key", productKey),
		zap.String("variant_key", variantKey),
		zap.Int64("requested", requested),
		zap.Int64("stock_level", record.StockLevel),
		zap.Int64("reserved_stock", record.ReservedStock),
	)

	return &Outcome{
		Status:          StatusConflict,
		ProductKey:      productKey,
		VariantKey:      variantKey,
		Quantity:        requested,
		AvailableToSell: record.AvailableToSell(),
	}, nil
}

func (e *ReservationEngine) notFoundOutcome(productKey, variantKey string) *Outcome {
	return &Outcome{
		Status:     StatusNotFound,
		ProductKey: productKey,
		VariantKey: variantKey,
	}
}

// closeReservations closes ledger rows held by orderRef until quantity units
// are accounted for. Ledger bookkeeping is best effort; the counters already
// committed.
func (e *ReservationEngine) closeReservations(ctx context.Context, recordID uuid.UUID, orderRef string, quantity int64, close func(*stock.Reservation)) {
	if orderRef == "" {
		return
	}

	reservations, err := e.reservationRepo.FindActiveByOrderRef(ctx, recordID, orderRef)
	if err != nil {
		e.logger.Warn("failed to load reservations for closing",
			zap.String("order_ref", orderRef),
			zap.Error(err),
		)
		return
	}

	remaining := quantity
	for i := range reservations {
		if remaining <= 0 {
			break
		}
		res := &reservations[i]
		close(res)
		if err := e.reservationRepo.Save(ctx, res); err != nil {
			e.logger.Warn("failed to close reservation ledger entry",
				zap.String("reservation_id", res.ID.String()),
				zap.Error(err),
			)
			continue
		}
		remaining -= res.Quantity
	}
}

// movementBaseline reconstructs the pre-adjustment counters from the row the
// guarded update returned. A record read before the update can be stale under
// contention; the returned row minus the applied deltas cannot be.
func movementBaseline(after *stock.StockRecord, reservedDelta, stockDelta int64) *stock.StockRecord {
	before := *after
	before.ReservedStock -= reservedDelta
	before.StockLevel -= stockDelta
	return &before
}

func (e *ReservationEngine) recordMovement(ctx context.Context, movementType string, before, after *stock.StockRecord, quantity int64, orderRef string) {
	if e.movementRepo == nil {
		return
	}
	movement := stock.NewStockMovement(movementType, before, after, quantity, orderRef)
	if err := e.movementRepo.Create(ctx, movement); err != nil {
		e.logger.Warn("failed to record stock movement",
			zap.String("movement_type", movementType),
			zap.String("product_key", after.ProductKey),
			zap.String("variant_key", after.VariantKey),
			zap.Error(err),
		)
	}
}

// afterMutation publishes the operation event plus a low-stock alert when the
// mutation left the record at or below its threshold, and drops the badge
// cache entry for the key
func (e *ReservationEngine) afterMutation(ctx context.Context, record *stock.StockRecord, event shared.DomainEvent) {
	events := []shared.DomainEvent{event}
	if record.IsLowStock() {
		events = append(events, stock.NewStockBelowThresholdEvent(record))
	}

	if e.eventPublisher != nil {
		if err := e.eventPublisher.Publish(ctx, events...); err != nil {
			e.logger.Warn("failed to publish stock events",
				zap.String("product_key", record.ProductKey),
				zap.String("variant_key", record.VariantKey),
				zap.Error(err),
			)
		}
	}

	e.invalidateCache(ctx, record.ProductKey, record.VariantKey)
}

func (e *ReservationEngine) publishDomainEvents(ctx context.Context, record *stock.StockRecord) {
	events := record.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if e.eventPublisher != nil {
		if err := e.eventPublisher.Publish(ctx, events...); err != nil {
			e.logger.Warn("failed to publish stock events", zap.Error(err))
		}
	}
	record.ClearDomainEvents()
}

func (e *ReservationEngine) invalidateCache(ctx context.Context, productKey, variantKey string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, productKey, variantKey); err != nil {
		e.logger.Warn("failed to invalidate availability cache",
			zap.String("product_key", productKey),
			zap.String("variant_key", variantKey),
			zap.Error(err),
		)
	}
}

func snapshotOf(record *stock.StockRecord) *AvailabilitySnapshot {
	return &AvailabilitySnapshot{
		ProductKey:        record.ProductKey,
		VariantKey:        record.VariantKey,
		AvailableToSell:   record.AvailableToSell(),
		LowStockThreshold: record.LowStockThreshold,
		IsLowStock:        record.IsLowStock(),
		IsOutOfStock:      record.IsOutOfStock(),
	}
}

func validateKeys(productKey, variantKey string) error {
	if productKey == "" {
		return shared.NewDomainError("INVALID_PRODUCT_KEY", "Product key cannot be empty")
	}
	if variantKey == "" {
		return shared.NewDomainError("INVALID_VARIANT_KEY", "Variant key cannot be empty")
	}
	return nil
}
