package service

import (
	"context"
	"sort"
	"time"

	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/repository"
)

type availabilityChecker struct {
	store  repository.Store
	policy InventoryPolicy
}

func NewAvailabilityChecker(store repository.Store, policy InventoryPolicy) AvailabilityChecker {
	return &availabilityChecker{store: store, policy: policy}
}

// CheckAvailability counts active reservations only; quotations, returns and cancellations never block.
// Under the counter policy the product counter must also cover the request.
func (c *availabilityChecker) CheckAvailability(ctx context.Context, productID int32, iv domain.Interval, qty int32, excludeReservationID int32) (*domain.AvailabilityResult, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	product, err := c.store.Products().GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	active, err := c.store.Reservations().ListByProductAndStatus(ctx, productID, domain.ActiveStatuses)
	if err != nil {
		return nil, err
	}

	peak := PeakReserved(active, iv, excludeReservationID)
	available := peak+qty <= product.TotalQuantity
	if c.policy != InventoryPolicyCalendar {
		available = available && qty <= product.QuantityAvailable
	}
	return &domain.AvailabilityResult{
		ProductID:     productID,
		Available:     available,
		Requested:     qty,
		PeakReserved:  peak,
		TotalQuantity: product.TotalQuantity,
	}, nil
}

type edge struct {
	at    time.Time
	delta int32
}

// PeakReserved returns the largest number of units held at any single instant of iv.
// Intervals are half-open, so a reservation ending when another starts does not stack.
func PeakReserved(reservations []domain.Reservation, iv domain.Interval, excludeID int32) int32 {
	var edges []edge
	for i := range reservations {
		r := &reservations[i]
		if excludeID != 0 && r.ID == excludeID {
			continue
		}
		clipped, ok := r.Interval().Clip(iv)
		if !ok {
			continue
		}
		edges = append(edges, edge{clipped.Start, r.Quantity}, edge{clipped.End, -r.Quantity})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at.Equal(edges[j].at) {
			return edges[i].delta < edges[j].delta
		}
		return edges[i].at.Before(edges[j].at)
	})

	var current, peak int32
	for _, e := range edges {
		current += e.delta
		if current > peak {
			peak = current
		}
	}
	return peak
}
