package stock

import (
	"context"
	"time"

	"github.com/elysium/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// StockRecordRepository persists stock records.
//
// AtomicAdjust is the only mutation path the reservation engine uses for
// counter changes: it applies both deltas in a single guarded statement whose
// predicate re-checks the aggregate invariants against the stored row, so two
// concurrent adjustments of the same key can never both pass a guard that
// only one of them satisfies. Implementations must not serialize adjustments
// of different keys behind each other.
type StockRecordRepository interface {
	// FindByID returns the record for a surrogate ID, shared.ErrNotFound when absent
	FindByID(ctx context.Context, id uuid.UUID) (*StockRecord, error)
	// FindByKey returns the record for a product-variant pair, shared.ErrNotFound when absent
	FindByKey(ctx context.Context, productKey, variantKey string) (*StockRecord, error)
	// FindByProduct returns every variant record of a product
	FindByProduct(ctx context.Context, productKey string) ([]StockRecord, error)
	// GetOrCreate returns the existing record or inserts a fresh zero-stock one
	GetOrCreate(ctx context.Context, productKey, variantKey string) (*StockRecord, error)
	// Save persists provisioning changes (stock level, threshold) with optimistic locking
	Save(ctx context.Context, record *StockRecord) error
	// AtomicAdjust applies (reservedDelta, stockDelta) in one guarded statement.
	// It returns the adjusted record, shared.ErrNotFound for a missing key, or
	// shared.ErrConcurrencyConflict when the guard rejected the deltas.
	AtomicAdjust(ctx context.Context, productKey, variantKey string, reservedDelta, stockDelta int64) (*StockRecord, error)
	// FindLowStock returns records whose availability is at or below their
	// threshold, most urgent (lowest availability) first
	FindLowStock(ctx context.Context) ([]StockRecord, error)
	// FindOutOfStock returns records with zero availability
	FindOutOfStock(ctx context.Context) ([]StockRecord, error)
}

// ReservationRepository persists the per-order reservation ledger
type ReservationRepository interface {
	Save(ctx context.Context, reservation *Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	// FindActiveByOrderRef returns the active ledger rows an order holds on a record
	FindActiveByOrderRef(ctx context.Context, stockRecordID uuid.UUID, orderRef string) ([]Reservation, error)
	// FindExpired returns active reservations whose deadline passed, oldest first
	FindExpired(ctx context.Context, asOf time.Time, limit int) ([]Reservation, error)
}

// StockMovementRepository persists the append-only audit trail
type StockMovementRepository interface {
	Create(ctx context.Context, movement *StockMovement) error
	FindByKey(ctx context.Context, productKey, variantKey string, filter shared.Filter) ([]StockMovement, error)
}
