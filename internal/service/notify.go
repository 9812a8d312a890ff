package service

import (
	"context"
	"strconv"

	"rental-reservation-backend/internal/cache"
	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/events"
	"rental-reservation-backend/internal/logger"
	"rental-reservation-backend/internal/repository"
)

// notifier runs side effects once the surrounding transaction commits. Failures are logged only.
type notifier struct {
	tx        repository.Transactor
	cache     cache.ProductCache
	publisher events.Publisher
}

func newNotifier(tx repository.Transactor, c cache.ProductCache, p events.Publisher) *notifier {
	if c == nil {
		c = cache.NewNoopCache()
	}
	if p == nil {
		p = events.NewLogPublisher()
	}
	return &notifier{tx: tx, cache: c, publisher: p}
}

func (n *notifier) stockChanged(ctx context.Context, level domain.StockLevel) {
	n.tx.AfterCommit(ctx, func() {
		bg := context.WithoutCancel(ctx)
		if err := n.cache.Delete(bg, level.ProductID); err != nil {
			logger.WarnContext(bg, "Product cache invalidation failed", "product_id", level.ProductID, "error", err)
		}
		n.send(bg, events.New(events.TypeStockChanged, strconv.Itoa(int(level.ProductID)), level))
	})
}

func (n *notifier) productChanged(ctx context.Context, productID int32) {
	n.tx.AfterCommit(ctx, func() {
		bg := context.WithoutCancel(ctx)
		if err := n.cache.Delete(bg, productID); err != nil {
			logger.WarnContext(bg, "Product cache invalidation failed", "product_id", productID, "error", err)
		}
	})
}

type reservationEvent struct {
	ReservationID int32                    `json:"reservation_id"`
	ProductID     int32                    `json:"product_id"`
	CustomerID    int32                    `json:"customer_id"`
	CheckoutID    string                   `json:"checkout_id,omitempty"`
	From          domain.ReservationStatus `json:"from,omitempty"`
	Status        domain.ReservationStatus `json:"status"`
	Quantity      int32                    `json:"quantity"`
	TotalCents    int64                    `json:"total_price_cents"`
}

func (n *notifier) reservationChanged(ctx context.Context, eventType string, res *domain.Reservation, from domain.ReservationStatus) {
	payload := reservationEvent{
		ReservationID: res.ID,
		ProductID:     res.ProductID,
		CustomerID:    res.CustomerID,
		CheckoutID:    res.CheckoutID,
		From:          from,
		Status:        res.Status,
		Quantity:      res.Quantity,
		TotalCents:    res.TotalPriceCents,
	}
	n.tx.AfterCommit(ctx, func() {
		n.send(context.WithoutCancel(ctx), events.New(eventType, strconv.Itoa(int(res.ID)), payload))
	})
}

func (n *notifier) send(ctx context.Context, e events.Event) {
	if err := n.publisher.Publish(ctx, e); err != nil {
		logger.WarnContext(ctx, "Event publish failed", "event_type", e.Type, "key", e.Key, "error", err)
	}
}
