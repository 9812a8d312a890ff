package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rental-reservation-backend/internal/cache"
	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/events"
	"rental-reservation-backend/internal/logger"
	"rental-reservation-backend/internal/repository"
	"rental-reservation-backend/internal/utils"
)

type reservationService struct {
	store        repository.Store
	ledger       InventoryLedger
	availability AvailabilityChecker
	notify       *notifier
	settings     Settings
}

func NewReservationService(store repository.Store, ledger InventoryLedger, availability AvailabilityChecker, c cache.ProductCache, p events.Publisher, settings Settings) ReservationService {
	return &reservationService{
		store:        store,
		ledger:       ledger,
		availability: availability,
		notify:       newNotifier(store, c, p),
		settings:     settings,
	}
}

func (s *reservationService) Now() time.Time { return s.settings.now() }

func canView(actor domain.Actor, res *domain.Reservation) bool {
	return actor.CanManage(res.OwnerID) || (actor.UserID != 0 && actor.UserID == res.CustomerID)
}

// Customers may only cancel their own reservations. Every other edge is driven by staff or the owner.
func canTransition(actor domain.Actor, res *domain.Reservation, target domain.ReservationStatus) bool {
	if actor.CanManage(res.OwnerID) {
		return true
	}
	return target == domain.ReservationStatusCancelled && actor.UserID != 0 && actor.UserID == res.CustomerID
}

// newReservation prices a line item against the product and builds an unsaved reservation.
func newReservation(product *domain.Product, customer domain.Customer, item domain.LineItem, status domain.ReservationStatus) (*domain.Reservation, error) {
	if item.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	iv, err := domain.NewInterval(item.StartDate, item.EndDate)
	if err != nil {
		return nil, err
	}
	cost, err := utils.CalculateRentalCost(product, iv, item.DurationUnit, item.Quantity)
	if err != nil {
		return nil, err
	}
	return &domain.Reservation{
		ProductID:       product.ID,
		CustomerID:      customer.ID,
		OwnerID:         product.OwnerID,
		CustomerEmail:   customer.Email,
		Quantity:        item.Quantity,
		StartDate:       iv.Start,
		EndDate:         iv.End,
		Duration:        cost.Duration,
		DurationUnit:    item.DurationUnit,
		UnitPriceCents:  cost.UnitPriceCents,
		TotalPriceCents: cost.TotalCents,
		Status:          status,
		PaymentStatus:   domain.PaymentStatusPending,
	}, nil
}

func (s *reservationService) CreateQuotation(ctx context.Context, actor domain.Actor, customer domain.Customer, item domain.LineItem) (*domain.Reservation, error) {
	if !actor.IsStaff() && actor.UserID != customer.ID {
		return nil, domain.ErrUnauthorized
	}
	product, err := s.store.Products().GetByID(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}
	res, err := newReservation(product, customer, item, domain.ReservationStatusQuotation)
	if err != nil {
		return nil, err
	}
	if err := s.store.Reservations().Create(ctx, res); err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Quotation created", logger.ReservationAttrs(res.ID, res.ProductID, string(res.Status))...)
	s.notify.reservationChanged(ctx, events.TypeReservationCreated, res, "")
	return res, nil
}

// Transition is the only place a stored status changes.
func (s *reservationService) Transition(ctx context.Context, actor domain.Actor, reservationID int32, target domain.ReservationStatus) (*domain.Reservation, error) {
	var out *domain.Reservation
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.store.Reservations().GetForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if !canTransition(actor, res, target) {
			return domain.ErrUnauthorized
		}
		if err := domain.ValidateTransition(res.Status, target); err != nil {
			return err
		}

		from := res.Status
		if err := s.applyTransition(ctx, res, target); err != nil {
			return err
		}
		res.Status = target
		if err := s.save(ctx, res); err != nil {
			return err
		}

		logger.InfoContext(ctx, "Reservation transitioned",
			append(logger.ReservationAttrs(res.ID, res.ProductID, string(target)), "from", from)...)
		s.notify.reservationChanged(ctx, events.TypeReservationTransitioned, res, from)
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyTransition runs the side effects of entering target. res.Status still holds the old state.
func (s *reservationService) applyTransition(ctx context.Context, res *domain.Reservation, target domain.ReservationStatus) error {
	now := s.settings.now()

	switch target {
	case domain.ReservationStatusConfirmed:
		return s.admit(ctx, res)

	case domain.ReservationStatusDelivered:
		if res.PickupDate == nil {
			res.PickupDate = &now
		}
		if s.settings.InventoryPolicy == InventoryPolicyCalendar && !res.StockHeld {
			if _, err := s.ledger.Consume(ctx, res.ProductID, res.Quantity); err != nil {
				return err
			}
			res.StockHeld = true
		}

	case domain.ReservationStatusReturned:
		if res.ReturnDate == nil {
			res.ReturnDate = &now
		}
		// freeze the late fee while the reservation still reads as delivered
		if fee, _ := utils.CalculateLateFee(res, *res.ReturnDate, s.settings.LateFeePerDayCents); fee > res.LateFeesCents {
			res.LateFeesCents = fee
		}
		return s.release(ctx, res)

	case domain.ReservationStatusCancelled:
		return s.release(ctx, res)
	}
	return nil
}

// admit claims capacity for a reservation entering confirmed from the manual flow.
func (s *reservationService) admit(ctx context.Context, res *domain.Reservation) error {
	if s.settings.InventoryPolicy == InventoryPolicyCalendar {
		if _, err := s.store.Products().GetForUpdate(ctx, res.ProductID); err != nil {
			return err
		}
		avail, err := s.availability.CheckAvailability(ctx, res.ProductID, res.Interval(), res.Quantity, res.ID)
		if err != nil {
			return err
		}
		if !avail.Available {
			return &domain.StockError{ProductID: res.ProductID, Requested: res.Quantity, Available: avail.TotalQuantity - avail.PeakReserved}
		}
		return nil
	}
	if _, err := s.ledger.Consume(ctx, res.ProductID, res.Quantity); err != nil {
		return err
	}
	res.StockHeld = true
	return nil
}

// release returns held units. A reservation that never consumed stock restores nothing.
func (s *reservationService) release(ctx context.Context, res *domain.Reservation) error {
	if !res.StockHeld {
		return nil
	}
	if _, err := s.ledger.Restore(ctx, res.ProductID, res.Quantity); err != nil {
		return err
	}
	res.StockHeld = false
	return nil
}

// save re-validates and re-derives duration and total before every write.
func (s *reservationService) save(ctx context.Context, res *domain.Reservation) error {
	if err := res.Validate(); err != nil {
		return err
	}
	if err := utils.RepriceFromSnapshot(res); err != nil {
		return err
	}
	return s.store.Reservations().Update(ctx, res)
}

func (s *reservationService) Reschedule(ctx context.Context, actor domain.Actor, reservationID int32, start, end time.Time) (*domain.Reservation, error) {
	iv, err := domain.NewInterval(start, end)
	if err != nil {
		return nil, err
	}

	var out *domain.Reservation
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.store.Reservations().GetForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if !actor.CanManage(res.OwnerID) {
			return domain.ErrUnauthorized
		}
		switch res.Status {
		case domain.ReservationStatusQuotation, domain.ReservationStatusConfirmed, domain.ReservationStatusReserved:
		default:
			return fmt.Errorf("%w: %s reservations cannot be rescheduled", domain.ErrInvalidTransition, res.Status)
		}

		if res.Status.IsActive() {
			if _, err := s.store.Products().GetForUpdate(ctx, res.ProductID); err != nil {
				return err
			}
			avail, err := s.availability.CheckAvailability(ctx, res.ProductID, iv, res.Quantity, res.ID)
			if err != nil {
				return err
			}
			if avail.PeakReserved+res.Quantity > avail.TotalQuantity {
				return &domain.StockError{ProductID: res.ProductID, Requested: res.Quantity, Available: avail.TotalQuantity - avail.PeakReserved}
			}
		}

		res.StartDate, res.EndDate = iv.Start, iv.End
		if err := s.save(ctx, res); err != nil {
			return err
		}
		s.notify.reservationChanged(ctx, events.TypeReservationRescheduled, res, res.Status)
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *reservationService) SetPaymentStatus(ctx context.Context, actor domain.Actor, reservationID int32, status domain.PaymentStatus) (*domain.Reservation, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPaymentStatus, status)
	}
	var out *domain.Reservation
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.store.Reservations().GetForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if !actor.CanManage(res.OwnerID) {
			return domain.ErrUnauthorized
		}
		res.PaymentStatus = status
		if err := s.save(ctx, res); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *reservationService) GetReservation(ctx context.Context, actor domain.Actor, reservationID int32) (*domain.Reservation, error) {
	res, err := s.store.Reservations().GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, res) {
		return nil, domain.ErrUnauthorized
	}
	return res, nil
}

func (s *reservationService) ListCustomerReservations(ctx context.Context, actor domain.Actor, customerID int32, page, pageSize int32) ([]domain.Reservation, int32, error) {
	if !actor.IsStaff() && actor.UserID != customerID {
		return nil, 0, domain.ErrUnauthorized
	}
	page, pageSize = normalizePage(page, pageSize)
	return s.store.Reservations().ListByCustomer(ctx, customerID, page, pageSize)
}

func (s *reservationService) AmountDue(ctx context.Context, actor domain.Actor, reservationID int32) (*domain.AmountDue, error) {
	res, err := s.GetReservation(ctx, actor, reservationID)
	if err != nil {
		return nil, err
	}
	due := utils.CalculateAmountDue(res, s.settings.now(), s.settings.LateFeePerDayCents)
	return &due, nil
}

func (s *reservationService) ListOverdue(ctx context.Context) ([]domain.Reservation, error) {
	return s.store.Reservations().ListOverdue(ctx, s.settings.now())
}

// AccrueLateFees persists the running late fee on every overdue reservation. Stored fees only grow.
func (s *reservationService) AccrueLateFees(ctx context.Context) (int, error) {
	now := s.settings.now()
	overdue, err := s.store.Reservations().ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}

	updated := 0
	var errs []error
	for _, candidate := range overdue {
		err := s.store.WithinTx(ctx, func(ctx context.Context) error {
			res, err := s.store.Reservations().GetForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			fee, daysLate := utils.CalculateLateFee(res, now, s.settings.LateFeePerDayCents)
			if fee <= res.LateFeesCents {
				return nil
			}
			res.LateFeesCents = fee
			if err := s.save(ctx, res); err != nil {
				return err
			}
			logger.InfoContext(ctx, "Late fee accrued",
				append(logger.ReservationAttrs(res.ID, res.ProductID, string(res.Status)), "days_late", daysLate, "late_fees_cents", fee)...)
			updated++
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("reservation %d: %w", candidate.ID, err))
		}
	}
	return updated, errors.Join(errs...)
}
