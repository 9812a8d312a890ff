package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rental-reservation-backend/internal/cache"
	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/events"
	"rental-reservation-backend/internal/logger"
	"rental-reservation-backend/internal/repository"
	"rental-reservation-backend/internal/utils"
)

type productService struct {
	store        repository.Store
	ledger       InventoryLedger
	availability AvailabilityChecker
	cache        cache.ProductCache
	notify       *notifier
}

func NewProductService(store repository.Store, ledger InventoryLedger, availability AvailabilityChecker, c cache.ProductCache, p events.Publisher) ProductService {
	if c == nil {
		c = cache.NewNoopCache()
	}
	return &productService{
		store:        store,
		ledger:       ledger,
		availability: availability,
		cache:        c,
		notify:       newNotifier(store, c, p),
	}
}

func validateProduct(p *domain.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return &domain.ProductError{Field: "name", Reason: "is required"}
	}
	for _, u := range domain.DurationUnits {
		rate := p.Prices.Rate(u)
		if rate < 0 {
			return &domain.ProductError{Field: string(u) + " rate", Reason: "must not be negative"}
		}
		if rate > domain.MaxRateCents {
			return &domain.ProductError{Field: string(u) + " rate", Reason: fmt.Sprintf("must not exceed %d cents", domain.MaxRateCents)}
		}
	}
	if !p.Prices.HasPositiveRate() {
		return &domain.ProductError{Field: "prices", Reason: "at least one rate must be positive"}
	}
	return nil
}

// CreateProduct starts with every unit available. Stock only moves through the ledger afterwards.
func (s *productService) CreateProduct(ctx context.Context, actor domain.Actor, p *domain.Product) error {
	if actor.Role == domain.RoleOwner {
		p.OwnerID = actor.UserID
	} else if !actor.IsStaff() {
		return domain.ErrUnauthorized
	}
	if err := validateProduct(p); err != nil {
		return err
	}
	if p.TotalQuantity < 0 {
		return domain.ErrInvalidQuantity
	}
	p.QuantityAvailable = p.TotalQuantity
	p.SyncAvailability()

	if err := s.store.Products().Create(ctx, p); err != nil {
		return err
	}
	logger.InfoContext(ctx, "Product created", "product_id", p.ID, "owner_id", p.OwnerID, "total_quantity", p.TotalQuantity)
	return nil
}

// GetProduct reads through the cache. The cached copy is for display only.
func (s *productService) GetProduct(ctx context.Context, id int32) (*domain.Product, error) {
	cached, err := s.cache.Get(ctx, id)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.WarnContext(ctx, "Product cache read failed", "product_id", id, "error", err)
	}

	p, err := s.store.Products().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, p); err != nil {
		logger.WarnContext(ctx, "Product cache write failed", "product_id", id, "error", err)
	}
	return p, nil
}

func (s *productService) authorize(ctx context.Context, actor domain.Actor, id int32) (*domain.Product, error) {
	p, err := s.store.Products().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(p.OwnerID) {
		return nil, domain.ErrUnauthorized
	}
	return p, nil
}

// UpdateProduct changes catalog fields and prices. Existing reservations keep their stored rate.
func (s *productService) UpdateProduct(ctx context.Context, actor domain.Actor, update *domain.Product) (*domain.Product, error) {
	current, err := s.authorize(ctx, actor, update.ID)
	if err != nil {
		return nil, err
	}
	current.Name = update.Name
	current.Description = update.Description
	current.Prices = update.Prices
	if err := validateProduct(current); err != nil {
		return nil, err
	}
	if err := s.store.Products().Update(ctx, current); err != nil {
		return nil, err
	}
	s.notify.productChanged(ctx, current.ID)
	return current, nil
}

// DeleteProduct is refused while any active reservation references the product.
func (s *productService) DeleteProduct(ctx context.Context, actor domain.Actor, id int32) error {
	return s.store.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.store.Products().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanManage(p.OwnerID) {
			return domain.ErrUnauthorized
		}
		active, err := s.store.Reservations().CountActiveByProduct(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: %d active", domain.ErrProductInUse, active)
		}
		if err := s.store.Products().Delete(ctx, id); err != nil {
			return err
		}
		s.notify.productChanged(ctx, id)
		logger.InfoContext(ctx, "Product deleted", "product_id", id)
		return nil
	})
}

func (s *productService) AdjustStock(ctx context.Context, actor domain.Actor, id int32, delta int32) (domain.StockLevel, error) {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return domain.StockLevel{ProductID: id}, err
	}
	return s.ledger.Adjust(ctx, id, delta)
}

func (s *productService) SetLimits(ctx context.Context, actor domain.Actor, id int32, minQty, maxQty int32) error {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return err
	}
	return s.ledger.SetLimits(ctx, id, minQty, maxQty)
}

func (s *productService) ListOwnerProducts(ctx context.Context, ownerID int32, page, pageSize int32) ([]domain.Product, int32, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.store.Products().ListByOwner(ctx, ownerID, page, pageSize)
}

func (s *productService) Quote(ctx context.Context, id int32, start, end time.Time, qty int32) (*domain.Quote, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	iv, err := domain.NewInterval(start, end)
	if err != nil {
		return nil, err
	}
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	q, err := utils.BuildQuote(p, iv, qty)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// CheckAvailability always reads the store, never the cache.
func (s *productService) CheckAvailability(ctx context.Context, id int32, start, end time.Time, qty int32) (*domain.AvailabilityResult, error) {
	iv, err := domain.NewInterval(start, end)
	if err != nil {
		return nil, err
	}
	return s.availability.CheckAvailability(ctx, id, iv, qty, 0)
}
