package repository

import (
	"context"
	"time"

	"rental-reservation-backend/internal/domain"
)

// ProductRepository is the only path that mutates stock. Every method that changes
// QuantityAvailable also rewrites Availability in the same statement.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id int32) (*domain.Product, error)
	// GetForUpdate locks the product row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int32) (*domain.Product, error)
	// Update writes catalog fields only. Stock columns are left untouched.
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id int32) error
	ListByOwner(ctx context.Context, ownerID int32, page, pageSize int32) ([]domain.Product, int32, error)

	// ConsumeStock decrements only if at least qty units remain, else returns a *domain.StockError.
	ConsumeStock(ctx context.Context, id int32, qty int32) (domain.StockLevel, error)
	RestoreStock(ctx context.Context, id int32, qty int32) (domain.StockLevel, error)
	// AdjustStock moves total and available quantity together by delta.
	AdjustStock(ctx context.Context, id int32, delta int32) (domain.StockLevel, error)
	SetLimits(ctx context.Context, id int32, minQty, maxQty int32) error
	// ReconcileAvailability repairs rows whose availability flag disagrees with the counter.
	ReconcileAvailability(ctx context.Context) (int64, error)
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.Reservation) error
	GetByID(ctx context.Context, id int32) (*domain.Reservation, error)
	GetForUpdate(ctx context.Context, id int32) (*domain.Reservation, error)
	Update(ctx context.Context, reservation *domain.Reservation) error
	ListByProductAndStatus(ctx context.Context, productID int32, statuses []domain.ReservationStatus) ([]domain.Reservation, error)
	ListByCustomer(ctx context.Context, customerID int32, page, pageSize int32) ([]domain.Reservation, int32, error)
	ListByCheckout(ctx context.Context, checkoutID string) ([]domain.Reservation, error)
	// ListOverdue returns delivered reservations whose end date is before now.
	ListOverdue(ctx context.Context, now time.Time) ([]domain.Reservation, error)
	CountActiveByProduct(ctx context.Context, productID int32) (int32, error)
}

// Transactor runs fn inside one storage transaction carried on the context.
// Repository calls made with that context join the transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// AfterCommit defers fn until the transaction on ctx commits. Outside a
	// transaction fn runs immediately. Rolled back transactions drop their hooks.
	AfterCommit(ctx context.Context, fn func())
}

type Store interface {
	Transactor
	Products() ProductRepository
	Reservations() ReservationRepository
	Ping(ctx context.Context) error
	Close() error
}
