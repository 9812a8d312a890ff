package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rental-reservation-backend/internal/domain"
)

type reservationRepository struct {
	s *Store
}

func (r *reservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	defer r.s.write(ctx)()

	if _, ok := r.s.products[res.ProductID]; !ok {
		return fmt.Errorf("product %d: %w", res.ProductID, domain.ErrNotFound)
	}
	r.s.nextReservationID++
	now := time.Now().UTC()
	res.ID = r.s.nextReservationID
	res.CreatedOn, res.UpdatedOn = now, now

	stored := *res
	r.s.reservations[res.ID] = &stored
	return nil
}

func (r *reservationRepository) GetByID(ctx context.Context, id int32) (*domain.Reservation, error) {
	defer r.s.read(ctx)()

	res, ok := r.s.reservations[id]
	if !ok {
		return nil, fmt.Errorf("reservation %d: %w", id, domain.ErrNotFound)
	}
	out := *res
	return &out, nil
}

func (r *reservationRepository) GetForUpdate(ctx context.Context, id int32) (*domain.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r *reservationRepository) Update(ctx context.Context, res *domain.Reservation) error {
	defer r.s.write(ctx)()

	stored, ok := r.s.reservations[res.ID]
	if !ok {
		return fmt.Errorf("reservation %d: %w", res.ID, domain.ErrNotFound)
	}
	res.UpdatedOn = time.Now().UTC()
	res.CreatedOn = stored.CreatedOn
	*stored = *res
	return nil
}

func (r *reservationRepository) filter(ctx context.Context, keep func(*domain.Reservation) bool) []domain.Reservation {
	defer r.s.read(ctx)()

	var out []domain.Reservation
	for _, res := range r.s.reservations {
		if keep(res) {
			out = append(out, *res)
		}
	}
	return out
}

func (r *reservationRepository) ListByProductAndStatus(ctx context.Context, productID int32, statuses []domain.ReservationStatus) ([]domain.Reservation, error) {
	want := make(map[domain.ReservationStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := r.filter(ctx, func(res *domain.Reservation) bool {
		return res.ProductID == productID && want[res.Status]
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *reservationRepository) ListByCustomer(ctx context.Context, customerID int32, page, pageSize int32) ([]domain.Reservation, int32, error) {
	out := r.filter(ctx, func(res *domain.Reservation) bool { return res.CustomerID == customerID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, page, pageSize), int32(len(out)), nil
}

func (r *reservationRepository) ListByCheckout(ctx context.Context, checkoutID string) ([]domain.Reservation, error) {
	out := r.filter(ctx, func(res *domain.Reservation) bool { return checkoutID != "" && res.CheckoutID == checkoutID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *reservationRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	out := r.filter(ctx, func(res *domain.Reservation) bool {
		return res.Status == domain.ReservationStatusDelivered && res.EndDate.Before(now)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func (r *reservationRepository) CountActiveByProduct(ctx context.Context, productID int32) (int32, error) {
	out := r.filter(ctx, func(res *domain.Reservation) bool {
		return res.ProductID == productID && res.Status.IsActive()
	})
	return int32(len(out)), nil
}
