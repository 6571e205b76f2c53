package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appstock "github.com/elysium/backend/internal/application/stock"
	"github.com/elysium/backend/internal/infrastructure/cache"
	"github.com/elysium/backend/internal/infrastructure/config"
	"github.com/elysium/backend/internal/infrastructure/event"
	"github.com/elysium/backend/internal/infrastructure/logger"
	"github.com/elysium/backend/internal/infrastructure/persistence"
	"github.com/elysium/backend/internal/infrastructure/scheduler"
	"github.com/elysium/backend/internal/interfaces/http/handler"
	"github.com/elysium/backend/internal/interfaces/http/middleware"
	"github.com/elysium/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	gormlogger "gorm.io/gorm/logger"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting inventory service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	gormLogLevel := gormlogger.Silent
	if cfg.Log.Level == "debug" {
		gormLogLevel = gormlogger.Info
	}
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	recordRepo := persistence.NewGormStockRecordRepository(db.DB)
	reservationRepo := persistence.NewGormReservationRepository(db.DB)
	movementRepo := persistence.NewGormStockMovementRepository(db.DB)

	// Initialize event bus and alert handlers
	eventBus := event.NewInMemoryEventBus(log)
	lowStockHandler := appstock.NewLowStockAlertHandler(log)
	eventBus.Subscribe(lowStockHandler)
	log.Info("Event handlers registered",
		zap.Strings("low_stock_events", lowStockHandler.EventTypes()),
	)

	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize reservation engine
	engine := appstock.NewReservationEngine(recordRepo, reservationRepo, movementRepo, log)
	engine.SetEventPublisher(eventBus)
	engine.SetReservationTTL(cfg.Reservation.DefaultTTL)

	// Availability cache: Redis when configured, in-process otherwise
	var redisCache *cache.RedisAvailabilityCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisAvailabilityCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Cache.TTL)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		engine.SetAvailabilityCache(redisCache)
		log.Info("Availability cache backed by redis", zap.String("addr", cfg.Redis.Addr()))
	} else {
		engine.SetAvailabilityCache(cache.NewInMemoryAvailabilityCache(cfg.Cache.TTL))
		log.Info("Availability cache running in-process")
	}

	reporter := appstock.NewLowStockReporter(recordRepo)

	// Background reclamation of expired reservations
	if cfg.Reservation.AutoReleaseEnabled {
		expirationService := appstock.NewReservationExpirationService(reservationRepo, engine, log)
		expirationService.SetBatchSize(cfg.Reservation.SweepBatchSize)

		sweepTimeout := cfg.Scheduler.JobTimeout
		if sweepTimeout <= 0 {
			sweepTimeout = 30 * time.Second
		}
		sweeper, err := scheduler.NewExpirationSweeper(scheduler.SweeperConfig{
			Enabled:      true,
			Interval:     cfg.Reservation.SweepInterval,
			SweepTimeout: sweepTimeout,
		}, expirationService, log)
		if err != nil {
			log.Fatal("Failed to build expiration sweeper", zap.Error(err))
		}
		if err := sweeper.Start(context.Background()); err != nil {
			log.Fatal("Failed to start expiration sweeper", zap.Error(err))
		}
		defer func() {
			if err := sweeper.Stop(context.Background()); err != nil {
				log.Error("Error stopping expiration sweeper", zap.Error(err))
			}
		}()
		log.Info("Expiration sweeper started",
			zap.Duration("interval", cfg.Reservation.SweepInterval),
			zap.Int("batch_size", cfg.Reservation.SweepBatchSize),
		)
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engineHTTP := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engineHTTP.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engineHTTP.Use(middleware.RequestID())
	engineHTTP.Use(middleware.Recovery(log))
	engineHTTP.Use(middleware.RequestLogger(log))
	engineHTTP.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (outside API versioning)
	healthHandler := handler.NewHealthHandler()
	healthHandler.AddCheck("database", handler.PingerFunc(func(ctx context.Context) error {
		return db.Ping()
	}))
	if redisCache != nil {
		healthHandler.AddCheck("redis", handler.PingerFunc(func(ctx context.Context) error {
			return redisCache.Ping(ctx)
		}))
	}
	engineHTTP.GET("/healthz", healthHandler.Healthz)

	// API routes
	stockHandler := handler.NewStockHandler(engine, reporter)
	router.NewRouter(engineHTTP, router.WithAPIVersion("v1")).
		Register(stockHandler).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engineHTTP,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
