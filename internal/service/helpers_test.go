package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/events"
	"rental-reservation-backend/internal/repository"
	"rental-reservation-backend/internal/repository/memory"
	"rental-reservation-backend/internal/service"

	"github.com/stretchr/testify/require"
)

var (
	day1 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
	day3 = day1.AddDate(0, 0, 2)
	day4 = day1.AddDate(0, 0, 3)
	day5 = day1.AddDate(0, 0, 4)

	owner    = domain.Actor{UserID: 7, Role: domain.RoleOwner}
	staff    = domain.Actor{UserID: 99, Role: domain.RoleStaff}
	alice    = domain.Customer{ID: 1, Email: "alice@example.com"}
	bob      = domain.Customer{ID: 2, Email: "bob@example.com"}
	aliceAct = domain.Actor{UserID: 1, Role: domain.RoleCustomer}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	store        repository.Store
	mem          *memory.Store
	clock        *clock
	publisher    *recordingPublisher
	ledger       service.InventoryLedger
	availability service.AvailabilityChecker
	reservations service.ReservationService
	checkout     service.CheckoutService
	products     service.ProductService
}

type option func(*service.Settings)

func withPolicy(p service.InventoryPolicy) option {
	return func(s *service.Settings) { s.InventoryPolicy = p }
}

func withMode(m service.CheckoutMode) option {
	return func(s *service.Settings) { s.CheckoutMode = m }
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	mem := memory.NewStore()
	return newFixtureWithStore(t, mem, mem, opts...)
}

func newFixtureWithStore(t *testing.T, mem *memory.Store, store repository.Store, opts ...option) *fixture {
	t.Helper()
	clk := &clock{now: day1.Add(-time.Hour)}
	settings := service.Settings{
		InventoryPolicy:    service.InventoryPolicyCounter,
		CheckoutMode:       service.CheckoutModePartial,
		LateFeePerDayCents: 500,
		Retry:              service.RetryPolicy{MaxAttempts: 3},
		Now:                clk.Now,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	pub := &recordingPublisher{}
	ledger := service.NewInventoryLedger(store, nil, pub)
	availability := service.NewAvailabilityChecker(store, settings.InventoryPolicy)
	reservations := service.NewReservationService(store, ledger, availability, nil, pub, settings)
	return &fixture{
		store:        store,
		mem:          mem,
		clock:        clk,
		publisher:    pub,
		ledger:       ledger,
		availability: availability,
		reservations: reservations,
		checkout:     service.NewCheckoutService(store, ledger, availability, reservations, nil, pub, settings),
		products:     service.NewProductService(store, ledger, availability, nil, pub),
	}
}

func (f *fixture) seedProduct(stock int32) int32 {
	return f.mem.Seed(domain.Product{
		OwnerID:           owner.UserID,
		Name:              "Cordless drill",
		Prices:            domain.PriceTable{DayCents: 100, WeekCents: 500},
		TotalQuantity:     stock,
		QuantityAvailable: stock,
		Availability:      stock > 0,
	})
}

func (f *fixture) product(t *testing.T, id int32) *domain.Product {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func line(productID int32, qty int32, start, end time.Time) domain.LineItem {
	return domain.LineItem{
		ProductID:    productID,
		Quantity:     qty,
		StartDate:    start,
		EndDate:      end,
		DurationUnit: domain.DurationUnitDay,
	}
}
