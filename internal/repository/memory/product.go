package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rental-reservation-backend/internal/domain"
)

type productRepository struct {
	s *Store
}

func (r *productRepository) live(id int32) (*domain.Product, error) {
	p, ok := r.s.products[id]
	if !ok || p.IsDeleted() {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (r *productRepository) Create(ctx context.Context, p *domain.Product) error {
	defer r.s.write(ctx)()

	r.s.nextProductID++
	now := time.Now().UTC()
	p.ID = r.s.nextProductID
	p.CreatedOn, p.UpdatedOn = now, now
	p.SyncAvailability()

	stored := *p
	r.s.products[p.ID] = &stored
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id int32) (*domain.Product, error) {
	defer r.s.read(ctx)()

	p, err := r.live(id)
	if err != nil {
		return nil, err
	}
	out := *p
	return &out, nil
}

// GetForUpdate relies on the transaction lock; every transaction already holds the store exclusively.
func (r *productRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *productRepository) Update(ctx context.Context, p *domain.Product) error {
	defer r.s.write(ctx)()

	stored, err := r.live(p.ID)
	if err != nil {
		return err
	}
	stored.Name = p.Name
	stored.Description = p.Description
	stored.Prices = p.Prices
	stored.UpdatedOn = time.Now().UTC()
	p.UpdatedOn = stored.UpdatedOn
	return nil
}

func (r *productRepository) Delete(ctx context.Context, id int32) error {
	defer r.s.write(ctx)()

	p, err := r.live(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	p.DeletedOn = &now
	return nil
}

func (r *productRepository) ListByOwner(ctx context.Context, ownerID int32, page, pageSize int32) ([]domain.Product, int32, error) {
	defer r.s.read(ctx)()

	var all []domain.Product
	for _, p := range r.s.products {
		if p.OwnerID == ownerID && !p.IsDeleted() {
			all = append(all, *p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page, pageSize), int32(len(all)), nil
}

func (r *productRepository) ConsumeStock(ctx context.Context, id int32, qty int32) (domain.StockLevel, error) {
	defer r.s.write(ctx)()

	p, err := r.live(id)
	if err != nil {
		return domain.StockLevel{ProductID: id}, err
	}
	if p.QuantityAvailable < qty {
		return levelOf(p), &domain.StockError{ProductID: id, Requested: qty, Available: p.QuantityAvailable}
	}
	p.QuantityAvailable -= qty
	p.SyncAvailability()
	p.UpdatedOn = time.Now().UTC()
	return levelOf(p), nil
}

func (r *productRepository) RestoreStock(ctx context.Context, id int32, qty int32) (domain.StockLevel, error) {
	defer r.s.write(ctx)()

	p, ok := r.s.products[id]
	if !ok {
		return domain.StockLevel{ProductID: id}, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	p.QuantityAvailable += qty
	p.SyncAvailability()
	p.UpdatedOn = time.Now().UTC()
	return levelOf(p), nil
}

func (r *productRepository) AdjustStock(ctx context.Context, id int32, delta int32) (domain.StockLevel, error) {
	defer r.s.write(ctx)()

	p, err := r.live(id)
	if err != nil {
		return domain.StockLevel{ProductID: id}, err
	}
	if p.QuantityAvailable+delta < 0 || p.TotalQuantity+delta < 0 {
		return levelOf(p), &domain.StockError{ProductID: id, Requested: -delta, Available: p.QuantityAvailable}
	}
	p.TotalQuantity += delta
	p.QuantityAvailable += delta
	p.SyncAvailability()
	p.UpdatedOn = time.Now().UTC()
	return levelOf(p), nil
}

func (r *productRepository) SetLimits(ctx context.Context, id int32, minQty, maxQty int32) error {
	defer r.s.write(ctx)()

	p, err := r.live(id)
	if err != nil {
		return err
	}
	p.MinQuantity, p.MaxQuantity = minQty, maxQty
	return nil
}

func (r *productRepository) ReconcileAvailability(ctx context.Context) (int64, error) {
	defer r.s.write(ctx)()

	var fixed int64
	for _, p := range r.s.products {
		if p.Availability != (p.QuantityAvailable > 0) {
			p.SyncAvailability()
			fixed++
		}
	}
	return fixed, nil
}

func levelOf(p *domain.Product) domain.StockLevel {
	return domain.StockLevel{ProductID: p.ID, QuantityAvailable: p.QuantityAvailable, Availability: p.Availability}
}

func paginate[T any](items []T, page, pageSize int32) []T {
	if pageSize <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := int((page - 1) * pageSize)
	if start >= len(items) {
		return nil
	}
	end := start + int(pageSize)
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Seed inserts a product as-is, including its stock columns. Used to load fixtures.
func (s *Store) Seed(p domain.Product) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		s.nextProductID++
		p.ID = s.nextProductID
	} else if p.ID > s.nextProductID {
		s.nextProductID = p.ID
	}
	r := p
	s.products[p.ID] = &r
	return p.ID
}
