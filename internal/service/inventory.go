package service

import (
	"context"
	"fmt"

	"rental-reservation-backend/internal/cache"
	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/events"
	"rental-reservation-backend/internal/logger"
	"rental-reservation-backend/internal/repository"
)

type inventoryLedger struct {
	products repository.ProductRepository
	notify   *notifier
}

func NewInventoryLedger(store repository.Store, c cache.ProductCache, p events.Publisher) InventoryLedger {
	return &inventoryLedger{
		products: store.Products(),
		notify:   newNotifier(store, c, p),
	}
}

// Consume is a conditional decrement; it never reads then writes.
func (l *inventoryLedger) Consume(ctx context.Context, productID, qty int32) (domain.StockLevel, error) {
	if qty <= 0 {
		return domain.StockLevel{ProductID: productID}, domain.ErrInvalidQuantity
	}
	level, err := l.products.ConsumeStock(ctx, productID, qty)
	if err != nil {
		return level, err
	}
	logger.InfoContext(ctx, "Stock consumed", "product_id", productID, "qty", qty,
		"quantity_available", level.QuantityAvailable, "availability", level.Availability)
	l.notify.stockChanged(ctx, level)
	return level, nil
}

func (l *inventoryLedger) Restore(ctx context.Context, productID, qty int32) (domain.StockLevel, error) {
	if qty <= 0 {
		return domain.StockLevel{ProductID: productID}, domain.ErrInvalidQuantity
	}
	level, err := l.products.RestoreStock(ctx, productID, qty)
	if err != nil {
		return level, err
	}
	logger.InfoContext(ctx, "Stock restored", "product_id", productID, "qty", qty,
		"quantity_available", level.QuantityAvailable, "availability", level.Availability)
	l.notify.stockChanged(ctx, level)
	return level, nil
}

// Adjust changes how many units the owner has, for purchases or write-offs.
func (l *inventoryLedger) Adjust(ctx context.Context, productID, delta int32) (domain.StockLevel, error) {
	if delta == 0 {
		return domain.StockLevel{ProductID: productID}, fmt.Errorf("%w: delta must not be zero", domain.ErrInvalidQuantity)
	}
	level, err := l.products.AdjustStock(ctx, productID, delta)
	if err != nil {
		return level, err
	}
	logger.InfoContext(ctx, "Stock adjusted", "product_id", productID, "delta", delta, "quantity_available", level.QuantityAvailable)
	l.notify.stockChanged(ctx, level)
	return level, nil
}

// SetLimits stores the low/high watermarks shown as warnings. They are not enforced.
func (l *inventoryLedger) SetLimits(ctx context.Context, productID, minQty, maxQty int32) error {
	if minQty < 0 || maxQty < 0 || (maxQty > 0 && maxQty < minQty) {
		return fmt.Errorf("%w: limits must satisfy 0 <= min <= max", domain.ErrInvalidQuantity)
	}
	if err := l.products.SetLimits(ctx, productID, minQty, maxQty); err != nil {
		return err
	}
	l.notify.productChanged(ctx, productID)
	return nil
}

func (l *inventoryLedger) Reconcile(ctx context.Context) (int64, error) {
	n, err := l.products.ReconcileAvailability(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.WarnContext(ctx, "Repaired availability flags", "rows", n)
	}
	return n, nil
}
