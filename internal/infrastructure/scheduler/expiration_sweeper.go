package scheduler

import (
	"context"
	"sync"
	"time"

	appstock "github.com/elysium/backend/internal/application/stock"
	"go.uber.org/zap"
)

// SweeperConfig holds expiration sweeper configuration
type SweeperConfig struct {
	// Enabled indicates if the background sweep is enabled
	Enabled bool
	// Interval is how often expired reservations are reclaimed
	Interval time.Duration
	// SweepTimeout is the maximum time a single sweep can run
	SweepTimeout time.Duration
}

// DefaultSweeperConfig returns default sweeper configuration
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Enabled:      true,
		Interval:     time.Minute,
		SweepTimeout: 30 * time.Second,
	}
}

// Validate validates the configuration
func (c *SweeperConfig) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	if c.SweepTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ExpirationSweeper periodically reclaims expired reservation holds so
// abandoned checkouts return their units to the sellable pool. One sweep
// runs at a time; a slow sweep delays the next tick instead of stacking.
type ExpirationSweeper struct {
	config  SweeperConfig
	service *appstock.ReservationExpirationService
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Recent sweep results for monitoring (in-memory, limited size)
	historyMu  sync.RWMutex
	history    []*appstock.ExpiredReservationStats
	maxHistory int
}

// NewExpirationSweeper creates a new expiration sweeper
func NewExpirationSweeper(config SweeperConfig, service *appstock.ReservationExpirationService, logger *zap.Logger) (*ExpirationSweeper, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &ExpirationSweeper{
		config:     config,
		service:    service,
		logger:     logger,
		history:    make([]*appstock.ExpiredReservationStats, 0, 50),
		maxHistory: 50,
	}, nil
}

// Start starts the background sweep loop
func (s *ExpirationSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("reservation expiration sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("sweep_timeout", s.config.SweepTimeout),
	)

	return nil
}

// Stop gracefully stops the sweeper
func (s *ExpirationSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	// Wait for the in-flight sweep with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("reservation expiration sweeper stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("reservation expiration sweeper stop timed out")
		return ctx.Err()
	}
}

// SweepNow runs a single sweep immediately, outside the tick schedule
func (s *ExpirationSweeper) SweepNow(ctx context.Context) (*appstock.ExpiredReservationStats, error) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	stats, err := s.service.ReleaseExpired(sweepCtx)
	if err != nil {
		return nil, err
	}

	s.addToHistory(stats)
	return stats, nil
}

// run is the sweep loop
func (s *ExpirationSweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("sweep loop stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs a single timed sweep and records the result
func (s *ExpirationSweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	stats, err := s.service.ReleaseExpired(sweepCtx)
	if err != nil {
		s.logger.Error("reservation expiration sweep failed", zap.Error(err))
		return
	}

	if stats.TotalExpired > 0 {
		s.logger.Info("reservation expiration sweep completed",
			zap.Int("total_expired", stats.TotalExpired),
			zap.Int("reclaimed", stats.Reclaimed),
			zap.Int("failed", stats.Failed),
			zap.Int64("units_released", stats.UnitsReleased),
		)
	}

	s.addToHistory(stats)
}

// addToHistory records a completed sweep
func (s *ExpirationSweeper) addToHistory(stats *appstock.ExpiredReservationStats) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*appstock.ExpiredReservationStats{stats}, s.history...)
	if len(s.history) > s.maxHistory {
		s.history = s.history[:s.maxHistory]
	}
}

// GetSweepHistory returns recent sweep results, newest first
func (s *ExpirationSweeper) GetSweepHistory(limit int) []*appstock.ExpiredReservationStats {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}

	result := make([]*appstock.ExpiredReservationStats, limit)
	copy(result, s.history[:limit])
	return result
}
