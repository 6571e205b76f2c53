package stock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/elysium/backend/internal/domain/shared"
	"github.com/elysium/backend/internal/domain/stock"
	"github.com/google/uuid"
)

// memoryStore backs the application tests with the same guarantees the SQL
// store gives the engine: adjustments are applied under a lock and only if
// the invariant guard holds against the stored counters.
type memoryStore struct {
	mu           sync.Mutex
	records      map[string]*stock.StockRecord
	reservations map[uuid.UUID]*stock.Reservation
	movements    []*stock.StockMovement
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:      make(map[string]*stock.StockRecord),
		reservations: make(map[uuid.UUID]*stock.Reservation),
	}
}

func storeKey(productKey, variantKey string) string {
	return productKey + "\x00" + variantKey
}

func (m *memoryStore) seed(productKey, variantKey string, stockLevel, reserved, threshold int64) *stock.StockRecord {
	record, _ := stock.NewStockRecord(productKey, variantKey)
	record.StockLevel = stockLevel
	record.ReservedStock = reserved
	record.LowStockThreshold = threshold
	record.ClearDomainEvents()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[storeKey(productKey, variantKey)] = record
	return record
}

func copyRecord(record *stock.StockRecord) *stock.StockRecord {
	clone := *record
	return &clone
}

func (m *memoryStore) FindByID(_ context.Context, id uuid.UUID) (*stock.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.records {
		if record.ID == id {
			return copyRecord(record), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryStore) FindByKey(_ context.Context, productKey, variantKey string) (*stock.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[storeKey(productKey, variantKey)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return copyRecord(record), nil
}

func (m *memoryStore) FindByProduct(_ context.Context, productKey string) ([]stock.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []stock.StockRecord
	for _, record := range m.records {
		if record.ProductKey == productKey {
			result = append(result, *record)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VariantKey < result[j].VariantKey })
	return result, nil
}

func (m *memoryStore) GetOrCreate(_ context.Context, productKey, variantKey string) (*stock.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record, ok := m.records[storeKey(productKey, variantKey)]; ok {
		return copyRecord(record), nil
	}
	record, err := stock.NewStockRecord(productKey, variantKey)
	if err != nil {
		return nil, err
	}
	m.records[storeKey(productKey, variantKey)] = record
	return copyRecord(record), nil
}

func (m *memoryStore) Save(_ context.Context, record *stock.StockRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.Version++
	m.records[storeKey(record.ProductKey, record.VariantKey)] = copyRecord(record)
	return nil
}

func (m *memoryStore) AtomicAdjust(_ context.Context, productKey, variantKey string, reservedDelta, stockDelta int64) (*stock.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[storeKey(productKey, variantKey)]
	if !ok {
		return nil, shared.ErrNotFound
	}

	newStock := record.StockLevel + stockDelta
	newReserved := record.ReservedStock + reservedDelta
	if newStock < 0 || newReserved < 0 || newReserved > newStock {
		return nil, shared.ErrConcurrencyConflict
	}

	record.StockLevel = newStock
	record.ReservedStock = newReserved
	record.UpdatedAt = time.Now()
	record.IncrementVersion()
	return copyRecord(record), nil
}

func (m *memoryStore) FindLowStock(_ context.Context) ([]stock.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []stock.StockRecord
	for _, record := range m.records {
		if record.IsLowStock() {
			result = append(result, *record)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AvailableToSell() < result[j].AvailableToSell()
	})
	return result, nil
}

func (m *memoryStore) FindOutOfStock(_ context.Context) ([]stock.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []stock.StockRecord
	for _, record := range m.records {
		if record.IsOutOfStock() {
			result = append(result, *record)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VariantKey < result[j].VariantKey })
	return result, nil
}

func (m *memoryStore) SaveReservation(_ context.Context, reservation *stock.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *reservation
	m.reservations[reservation.ID] = &clone
	return nil
}

func (m *memoryStore) FindReservationByID(_ context.Context, id uuid.UUID) (*stock.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reservation, ok := m.reservations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *reservation
	return &clone, nil
}

func (m *memoryStore) FindActiveByOrderRef(_ context.Context, stockRecordID uuid.UUID, orderRef string) ([]stock.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []stock.Reservation
	for _, reservation := range m.reservations {
		if reservation.StockRecordID == stockRecordID && reservation.OrderRef == orderRef && reservation.IsActive() {
			result = append(result, *reservation)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *memoryStore) FindExpired(_ context.Context, asOf time.Time, limit int) ([]stock.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []stock.Reservation
	for _, reservation := range m.reservations {
		if reservation.IsActive() && reservation.ExpiresAt.Before(asOf) {
			result = append(result, *reservation)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ExpiresAt.Before(result[j].ExpiresAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *memoryStore) CreateMovement(_ context.Context, movement *stock.StockMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movements = append(m.movements, movement)
	return nil
}

func (m *memoryStore) FindMovementsByKey(_ context.Context, productKey, variantKey string, _ shared.Filter) ([]stock.StockMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []stock.StockMovement
	for _, movement := range m.movements {
		if movement.ProductKey == productKey && movement.VariantKey == variantKey {
			result = append(result, *movement)
		}
	}
	return result, nil
}

// reservationStore and movementStore expose the parts of memoryStore that
// satisfy the narrower repository interfaces
type reservationStore struct{ *memoryStore }

func (s reservationStore) Save(ctx context.Context, reservation *stock.Reservation) error {
	return s.SaveReservation(ctx, reservation)
}

func (s reservationStore) FindByID(ctx context.Context, id uuid.UUID) (*stock.Reservation, error) {
	return s.FindReservationByID(ctx, id)
}

type movementStore struct{ *memoryStore }

func (s movementStore) Create(ctx context.Context, movement *stock.StockMovement) error {
	return s.CreateMovement(ctx, movement)
}

func (s movementStore) FindByKey(ctx context.Context, productKey, variantKey string, filter shared.Filter) ([]stock.StockMovement, error) {
	return s.FindMovementsByKey(ctx, productKey, variantKey, filter)
}
