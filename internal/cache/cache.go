package cache

import (
	"context"
	"errors"

	"rental-reservation-backend/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// ProductCache holds catalog reads. Entries are dropped on every stock or catalog write,
// so a cached product is never used to decide admission.
type ProductCache interface {
	Get(ctx context.Context, productID int32) (*domain.Product, error)
	Set(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, productID int32) error
}

type noopCache struct{}

// NewNoopCache is used when no redis address is configured.
func NewNoopCache() ProductCache { return noopCache{} }

func (noopCache) Get(context.Context, int32) (*domain.Product, error) { return nil, ErrCacheMiss }
func (noopCache) Set(context.Context, *domain.Product) error          { return nil }
func (noopCache) Delete(context.Context, int32) error                 { return nil }
