// Package app wires configuration into stores, integrations and services for both binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"rental-reservation-backend/internal/cache"
	"rental-reservation-backend/internal/config"
	"rental-reservation-backend/internal/events"
	"rental-reservation-backend/internal/logger"
	"rental-reservation-backend/internal/repository"
	"rental-reservation-backend/internal/repository/memory"
	"rental-reservation-backend/internal/repository/postgres"
	"rental-reservation-backend/internal/service"
)

// App holds every long-lived dependency. Close releases them in reverse order of creation.
type App struct {
	Config *config.Config

	Store     repository.Store
	Cache     cache.ProductCache
	Publisher events.Publisher
	Email     service.EmailService

	Ledger       service.InventoryLedger
	Availability service.AvailabilityChecker
	Reservations service.ReservationService
	Checkout     service.CheckoutService
	Products     service.ProductService

	closers []func() error
}

// Settings translates the rental section of the config into service settings.
func Settings(cfg *config.Config) service.Settings {
	return service.Settings{
		InventoryPolicy:    service.InventoryPolicy(cfg.Rental.InventoryPolicy),
		CheckoutMode:       service.CheckoutMode(cfg.Rental.CheckoutMode),
		LateFeePerDayCents: cfg.LateFeePerDay(),
		Retry: service.RetryPolicy{
			MaxAttempts:    cfg.Rental.Retry.MaxAttempts,
			InitialBackoff: time.Duration(cfg.Rental.Retry.InitialBackoffMS) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Rental.Retry.MaxBackoffMS) * time.Millisecond,
		},
	}
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openCache(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openPublisher(); err != nil {
		a.Close()
		return nil, err
	}
	a.openEmail()

	settings := Settings(cfg)
	a.Ledger = service.NewInventoryLedger(a.Store, a.Cache, a.Publisher)
	a.Availability = service.NewAvailabilityChecker(a.Store, settings.InventoryPolicy)
	a.Reservations = service.NewReservationService(a.Store, a.Ledger, a.Availability, a.Cache, a.Publisher, settings)
	a.Checkout = service.NewCheckoutService(a.Store, a.Ledger, a.Availability, a.Reservations, a.Cache, a.Publisher, settings)
	a.Products = service.NewProductService(a.Store, a.Ledger, a.Availability, a.Cache, a.Publisher)

	logger.Info("Services initialized",
		"inventory_policy", settings.InventoryPolicy,
		"checkout_mode", settings.CheckoutMode,
		"late_fee_per_day_cents", settings.LateFeePerDayCents)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Storage.Type {
	case "memory":
		logger.Warn("Using in-memory store; data is lost on restart")
		a.Store = memory.NewStore()
		return nil
	case "postgres":
	default:
		return fmt.Errorf("unsupported storage type: %q", cfg.Storage.Type)
	}

	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("Database connection established")

	if cfg.Database.RunMigrations {
		if err := postgres.RunMigrations(db); err != nil {
			db.Close()
			return err
		}
		logger.Info("Database migrations applied")
	}

	store := postgres.NewStore(db)
	a.Store = store
	a.closers = append(a.closers, store.Close)
	return nil
}

func (a *App) openCache(ctx context.Context) error {
	cfg := a.Config.Redis
	if cfg.Addr == "" {
		logger.Info("Product cache disabled")
		a.Cache = cache.NewNoopCache()
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	logger.Info("Product cache enabled", "addr", cfg.Addr, "ttl", a.Config.CacheTTL())

	a.Cache = cache.NewRedisCache(client, a.Config.CacheTTL())
	a.closers = append(a.closers, client.Close)
	return nil
}

func (a *App) openPublisher() error {
	cfg := a.Config.Kafka
	if len(cfg.Brokers) == 0 {
		logger.Info("Event publishing to log only")
		a.Publisher = events.NewLogPublisher()
		return nil
	}

	publisher, err := events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
	if err != nil {
		return fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	logger.Info("Kafka publisher ready", "brokers", cfg.Brokers, "topic", cfg.Topic)
	a.Publisher = publisher
	a.closers = append(a.closers, publisher.Close)
	return nil
}

func (a *App) openEmail() {
	cfg := a.Config.SendGrid
	if cfg.APIKey == "" {
		logger.Info("SendGrid not configured; reminders are logged only")
		a.Email = service.NewLogEmailService()
		return
	}
	a.Email = service.NewEmailService(cfg.APIKey, cfg.FromEmail, cfg.FromName)
}

// Ping reports whether the backing store is reachable.
func (a *App) Ping(ctx context.Context) error {
	return a.Store.Ping(ctx)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
