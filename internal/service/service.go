package service

import (
	"context"
	"time"

	"rental-reservation-backend/internal/domain"
)

type InventoryPolicy string

const (
	// InventoryPolicyCounter admits a reservation by consuming from the product counter at confirmation.
	InventoryPolicyCounter InventoryPolicy = "counter"
	// InventoryPolicyCalendar admits by summing overlapping reservations against total stock.
	// The counter then tracks units physically out, consumed at pickup.
	InventoryPolicyCalendar InventoryPolicy = "calendar"
)

type CheckoutMode string

const (
	CheckoutModePartial CheckoutMode = "partial"
	CheckoutModeAtomic  CheckoutMode = "atomic"
)

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Settings struct {
	InventoryPolicy    InventoryPolicy
	CheckoutMode       CheckoutMode
	LateFeePerDayCents int64
	Retry              RetryPolicy
	Now                func() time.Time
}

func (s Settings) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// InventoryLedger is the single write path for product stock.
type InventoryLedger interface {
	Consume(ctx context.Context, productID, qty int32) (domain.StockLevel, error)
	Restore(ctx context.Context, productID, qty int32) (domain.StockLevel, error)
	Adjust(ctx context.Context, productID, delta int32) (domain.StockLevel, error)
	SetLimits(ctx context.Context, productID, minQty, maxQty int32) error
	Reconcile(ctx context.Context) (int64, error)
}

type AvailabilityChecker interface {
	// CheckAvailability reports whether qty more units fit in the interval. excludeReservationID
	// leaves one reservation out of the count so it can be moved; pass 0 to count all.
	CheckAvailability(ctx context.Context, productID int32, iv domain.Interval, qty int32, excludeReservationID int32) (*domain.AvailabilityResult, error)
}

type ReservationService interface {
	CreateQuotation(ctx context.Context, actor domain.Actor, customer domain.Customer, item domain.LineItem) (*domain.Reservation, error)
	Transition(ctx context.Context, actor domain.Actor, reservationID int32, target domain.ReservationStatus) (*domain.Reservation, error)
	Reschedule(ctx context.Context, actor domain.Actor, reservationID int32, start, end time.Time) (*domain.Reservation, error)
	SetPaymentStatus(ctx context.Context, actor domain.Actor, reservationID int32, status domain.PaymentStatus) (*domain.Reservation, error)
	GetReservation(ctx context.Context, actor domain.Actor, reservationID int32) (*domain.Reservation, error)
	ListCustomerReservations(ctx context.Context, actor domain.Actor, customerID int32, page, pageSize int32) ([]domain.Reservation, int32, error)
	AmountDue(ctx context.Context, actor domain.Actor, reservationID int32) (*domain.AmountDue, error)
	ListOverdue(ctx context.Context) ([]domain.Reservation, error)
	AccrueLateFees(ctx context.Context) (int, error)
	Now() time.Time
}

type CheckoutService interface {
	Checkout(ctx context.Context, customer domain.Customer, items []domain.LineItem) (*domain.CheckoutResult, error)
}

type ProductService interface {
	CreateProduct(ctx context.Context, actor domain.Actor, product *domain.Product) error
	GetProduct(ctx context.Context, id int32) (*domain.Product, error)
	UpdateProduct(ctx context.Context, actor domain.Actor, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, actor domain.Actor, id int32) error
	AdjustStock(ctx context.Context, actor domain.Actor, id int32, delta int32) (domain.StockLevel, error)
	SetLimits(ctx context.Context, actor domain.Actor, id int32, minQty, maxQty int32) error
	ListOwnerProducts(ctx context.Context, ownerID int32, page, pageSize int32) ([]domain.Product, int32, error)
	Quote(ctx context.Context, id int32, start, end time.Time, qty int32) (*domain.Quote, error)
	CheckAvailability(ctx context.Context, id int32, start, end time.Time, qty int32) (*domain.AvailabilityResult, error)
}

type EmailService interface {
	SendLateReminder(ctx context.Context, reservation *domain.Reservation, due domain.AmountDue) error
}

func normalizePage(page, pageSize int32) (int32, int32) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
