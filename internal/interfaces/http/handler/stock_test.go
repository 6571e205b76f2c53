package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	appstock "github.com/elysium/backend/internal/application/stock"
	"github.com/elysium/backend/internal/domain/shared"
	"github.com/elysium/backend/internal/domain/stock"
	"github.com/elysium/backend/internal/interfaces/http/dto"
	"github.com/elysium/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// fakeStore keeps stock records, reservations and movements in memory
// behind one mutex so handler tests run without a database.
type fakeStore struct {
	mu           sync.Mutex
	records      map[string]*stock.StockRecord
	reservations map[uuid.UUID]*stock.Reservation
	movements    []stock.StockMovement
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:      make(map[string]*stock.StockRecord),
		reservations: make(map[uuid.UUID]*stock.Reservation),
	}
}

func storeKey(productKey, variantKey string) string {
	return productKey + "|" + variantKey
}

func (s *fakeStore) seed(t *testing.T, productKey, variantKey string, stockLevel, reserved, threshold int64) {
	t.Helper()
	record, err := stock.NewStockRecord(productKey, variantKey)
	require.NoError(t, err)
	record.StockLevel = stockLevel
	record.ReservedStock = reserved
	record.LowStockThreshold = threshold
	record.ClearDomainEvents()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[storeKey(productKey, variantKey)] = record
}

func (s *fakeStore) FindByID(ctx context.Context, id uuid.UUID) (*stock.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.ID == id {
			clone := *record
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *fakeStore) FindByKey(ctx context.Context, productKey, variantKey string) (*stock.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[storeKey(productKey, variantKey)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *fakeStore) FindByProduct(ctx context.Context, productKey string) ([]stock.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []stock.StockRecord
	for _, record := range s.records {
		if record.ProductKey == productKey {
			result = append(result, *record)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VariantKey < result[j].VariantKey })
	return result, nil
}

func (s *fakeStore) GetOrCreate(ctx context.Context, productKey, variantKey string) (*stock.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[storeKey(productKey, variantKey)]; ok {
		clone := *record
		return &clone, nil
	}
	record, err := stock.NewStockRecord(productKey, variantKey)
	if err != nil {
		return nil, err
	}
	record.ClearDomainEvents()
	s.records[storeKey(productKey, variantKey)] = record
	clone := *record
	return &clone, nil
}

func (s *fakeStore) Save(ctx context.Context, record *stock.StockRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	clone.Version++
	s.records[storeKey(record.ProductKey, record.VariantKey)] = &clone
	record.Version = clone.Version
	return nil
}

func (s *fakeStore) AtomicAdjust(ctx context.Context, productKey, variantKey string, reservedDelta, stockDelta int64) (*stock.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[storeKey(productKey, variantKey)]
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
	record.Version++
	clone := *record
	return &clone, nil
}

func (s *fakeStore) FindLowStock(ctx context.Context) ([]stock.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []stock.StockRecord
	for _, record := range s.records {
		if record.IsLowStock() {
			result = append(result, *record)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AvailableToSell() < result[j].AvailableToSell()
	})
	return result, nil
}

func (s *fakeStore) FindOutOfStock(ctx context.Context) ([]stock.StockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []stock.StockRecord
	for _, record := range s.records {
		if record.IsOutOfStock() {
			result = append(result, *record)
		}
	}
	return result, nil
}

type fakeReservations struct{ store *fakeStore }

func (r fakeReservations) Save(ctx context.Context, reservation *stock.Reservation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	clone := *reservation
	r.store.reservations[reservation.ID] = &clone
	return nil
}

func (r fakeReservations) FindByID(ctx context.Context, id uuid.UUID) (*stock.Reservation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	reservation, ok := r.store.reservations[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *reservation
	return &clone, nil
}

func (r fakeReservations) FindActiveByOrderRef(ctx context.Context, stockRecordID uuid.UUID, orderRef string) ([]stock.Reservation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []stock.Reservation
	for _, reservation := range r.store.reservations {
		if reservation.StockRecordID == stockRecordID && reservation.OrderRef == orderRef && reservation.IsActive() {
			result = append(result, *reservation)
		}
	}
	return result, nil
}

func (r fakeReservations) FindExpired(ctx context.Context, asOf time.Time, limit int) ([]stock.Reservation, error) {
	return nil, nil
}

type fakeMovements struct{ store *fakeStore }

func (m fakeMovements) Create(ctx context.Context, movement *stock.StockMovement) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.movements = append(m.store.movements, *movement)
	return nil
}

func (m fakeMovements) FindByKey(ctx context.Context, productKey, variantKey string, filter shared.Filter) ([]stock.StockMovement, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*gin.Engine, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	engine := appstock.NewReservationEngine(store, fakeReservations{store}, fakeMovements{store}, zap.NewNop())
	reporter := appstock.NewLowStockReporter(store)

	router := gin.New()
	api := router.Group("/api/v1")
	NewStockHandler(engine, reporter).RegisterRoutes(api)
	return router, store
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCheckAvailabilityEndpoint(t *testing.T) {
	t.Run("returns snapshot for known variant", func(t *testing.T) {
		router, store := newTestServer(t)
		store.seed(t, "ring-001", "size-7", 10, 4, 3)

		w := doJSON(t, router, http.MethodGet, "/api/v1/inventory/availability?product_key=ring-001&variant_key=size-7", nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(6), data["available_to_sell"])
		assert.Equal(t, false, data["is_low_stock"])
	})

	t.Run("unknown variant reads as out of stock", func(t *testing.T) {
		router, _ := newTestServer(t)

		w := doJSON(t, router, http.MethodGet, "/api/v1/inventory/availability?product_key=ring-001&variant_key=size-9", nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(0), data["available_to_sell"])
		assert.Equal(t, true, data["is_out_of_stock"])
	})

	t.Run("missing keys fail validation", func(t *testing.T) {
		router, _ := newTestServer(t)

		w := doJSON(t, router, http.MethodGet, "/api/v1/inventory/availability?product_key=ring-001", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed key fails validation", func(t *testing.T) {
		router, _ := newTestServer(t)

		w := doJSON(t, router, http.MethodGet, "/api/v1/inventory/availability?product_key=Ring%20001&variant_key=size-7", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestReserveEndpoint(t *testing.T) {
	t.Run("reserves available units", func(t *testing.T) {
		router, store := newTestServer(t)
		store.seed(t, "ring-001", "size-7", 10, 0, 3)

		w := doJSON(t, router, http.MethodPost, "/api/v1/inventory/reserve", dto.ReserveRequest{
			ProductKey: "ring-001",
			VariantKey: "size-7",
			Quantity:   4,
			OrderRef:   "order-100",
		})
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, string(appstock.StatusReserved), data["status"])
		assert.Equal(t, float64(6), data["available_to_sell"])
	})

	t.Run("insufficient stock returns 422", func(t *testing.T) {
		router, store := newTestServer(t)
		store.seed(t, "ring-001", "size-7", 3, 2, 3)

		w := doJSON(t, router, http.MethodPost, "/api/v1/inventory/reserve", dto.ReserveRequest{
			ProductKey: "ring-001",
			VariantKey: "size-7",
			Quantity:   5,
			OrderRef:   "order-100",
		})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeInsufficientStock, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "1 units available")
	})

	t.Run("unknown variant returns 404", func(t *testing.T) {
		router, _ := newTestServer(t)

		w := doJSON(t, router, http.MethodPost, "/api/v1/inventory/reserve", dto.ReserveRequest{
			ProductKey: "ring-001",
			VariantKey: "size-9",
			Quantity:   1,
			OrderRef:   "order-100",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-positive quantity fails validation", func(t *testing.T) {
		router, store := newTestServer(t)
		store.seed(t, "ring-001", "size-7", 10, 0, 3)

		w := doJSON(t, router, http.MethodPost, "/api/v1/inventory/reserve", map[string]any{
			"product_key": "ring-001",
			"variant_key": "size-7",
			"quantity":    0,
			"order_ref":   "order-100",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		router, _ := newTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/inventory/reserve", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	})
}

func TestReleaseEndpoint(t *testing.T) {
	t.Run("release is clamped to reserved stock", func(t *testing.T) {
		router, store := newTestServer(t)
		store.seed(t, "ring-001", "size-7", 10, 2, 3)

		w := doJSON(t, router, http.MethodPost, "/api/v1/inventory/release", dto.ReleaseRequest{
			ProductKey: "ring-001",
			VariantKey: "size-7",
			Quantity:   5,
			OrderRef:   "order-100",
		})
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, string(appstock.StatusReleased), data["status"])
		assert.Equal(t, float64(2), data["quantity"])
	})

	t.Run("duplicate release with nothing reserved still succeeds", func(t *testing.T) {
		router, store := newTestServer(t)
		store.seed(t, "ring-001", "size-7", 10, 0, 3)

		w := doJSON(t, router, http.MethodPost, "/api/v1/inventory/release", dto.ReleaseRequest{
			ProductKey: "ring-001",
			VariantKey: "size-7",
			Quantity:   2,
			OrderRef:   "order-100",
		})
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, string(appstock.StatusReleased), data["status"])
		assert.Equal(t, float64(0), data["quantity"])
	})
}

func TestFulfillEndpoint(t *testing.T) {
	t.Run("fulfills reserved units", func(t *testing.T) {
		router, store := newTestServer(t)
		store.seed(t, "ring-001", "size-7", 10, 4, 3)

		w := doJSON(t, router, http.MethodPost, "/api/v1/inventory/fulfill", dto.FulfillRequest{
			ProductKey: "ring-001",
			VariantKey: "size-7",
			Quantity:   4,
			OrderRef:   "order-100",
		})
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, string(appstock.StatusFulfilled), data["status"])
	})

	t.Run("fulfilling more than reserved returns 409", func(t *testing.T) {
		router, store := newTestServer(t)
		store.seed(t, "ring-001", "size-7", 10, 2, 3)

		w := doJSON(t, router, http.MethodPost, "/api/v1/inventory/fulfill", dto.FulfillRequest{
			ProductKey: "ring-001",
			VariantKey: "size-7",
			Quantity:   5,
			OrderRef:   "order-100",
		})
		require.Equal(t, http.StatusConflict, w.Code)

		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeReservationConflict, resp.Error.Code)
	})
}

func TestRestockEndpoint(t *testing.T) {
	t.Run("restocks an existing variant", func(t *testing.T) {
		router, store := newTestServer(t)
		store.seed(t, "ring-001", "size-7", 2, 0, 3)

		w := doJSON(t, router, http.MethodPost, "/api/v1/inventory/restock", dto.RestockRequest{
			ProductKey: "ring-001",
			VariantKey: "size-7",
			Quantity:   10,
		})
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, string(appstock.StatusRestocked), data["status"])
		assert.Equal(t, float64(12), data["available_to_sell"])
	})

	t.Run("restock creates missing records", func(t *testing.T) {
		router, _ := newTestServer(t)

		w := doJSON(t, router, http.MethodPost, "/api/v1/inventory/restock", dto.RestockRequest{
			ProductKey: "necklace-002",
			VariantKey: "gold-45cm",
			Quantity:   5,
		})
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(5), data["available_to_sell"])
	})
}

func TestUpsertRecordEndpoint(t *testing.T) {
	t.Run("provisions a new record", func(t *testing.T) {
		router, _ := newTestServer(t)

		level := int64(25)
		threshold := int64(5)
		w := doJSON(t, router, http.MethodPut, "/api/v1/inventory/records", dto.UpsertRecordRequest{
			ProductKey:        "ring-001",
			VariantKey:        "size-7",
			StockLevel:        &level,
			LowStockThreshold: &threshold,
		})
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(25), data["stock_level"])
		assert.Equal(t, float64(5), data["low_stock_threshold"])
	})

	t.Run("rejects level below reserved stock", func(t *testing.T) {
		router, store := newTestServer(t)
		store.seed(t, "ring-001", "size-7", 10, 4, 3)

		level := int64(2)
		w := doJSON(t, router, http.MethodPut, "/api/v1/inventory/records", dto.UpsertRecordRequest{
			ProductKey: "ring-001",
			VariantKey: "size-7",
			StockLevel: &level,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestGetRecordsEndpoint(t *testing.T) {
	t.Run("lists all variants of a product", func(t *testing.T) {
		router, store := newTestServer(t)
		store.seed(t, "ring-001", "size-7", 10, 0, 3)
		store.seed(t, "ring-001", "size-8", 5, 0, 3)
		store.seed(t, "necklace-002", "gold-45cm", 2, 0, 3)

		w := doJSON(t, router, http.MethodGet, "/api/v1/inventory/records/ring-001", nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		records := resp.Data.([]any)
		assert.Len(t, records, 2)
	})

	t.Run("returns a single variant when requested", func(t *testing.T) {
		router, store := newTestServer(t)
		store.seed(t, "ring-001", "size-7", 10, 4, 3)

		w := doJSON(t, router, http.MethodGet, "/api/v1/inventory/records/ring-001?variant_key=size-7", nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]any)
		assert.Equal(t, float64(10), data["stock_level"])
		assert.Equal(t, float64(4), data["reserved_stock"])
		assert.Equal(t, float64(6), data["available_to_sell"])
	})

	t.Run("unknown variant returns 404", func(t *testing.T) {
		router, _ := newTestServer(t)

		w := doJSON(t, router, http.MethodGet, "/api/v1/inventory/records/ring-001?variant_key=size-9", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestStockReportEndpoints(t *testing.T) {
	router, store := newTestServer(t)
	store.seed(t, "ring-001", "size-7", 10, 0, 3)  // healthy
	store.seed(t, "ring-001", "size-8", 4, 2, 3)   // low: avail 2
	store.seed(t, "bracelet-003", "silver", 3, 3, 3) // out: avail 0

	t.Run("low stock is ordered by urgency", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/v1/inventory/low-stock", nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		rows := resp.Data.([]any)
		require.Len(t, rows, 2)
		first := rows[0].(map[string]any)
		assert.Equal(t, "bracelet-003", first["product_key"])
		assert.Equal(t, true, first["is_out_of_stock"])
	})

	t.Run("out of stock lists only exhausted variants", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/v1/inventory/out-of-stock", nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decodeResponse(t, w)
		rows := resp.Data.([]any)
		require.Len(t, rows, 1)
	})
}
