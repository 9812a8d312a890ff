package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"rental-reservation-backend/internal/cache"
	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/events"
	"rental-reservation-backend/internal/logger"
	"rental-reservation-backend/internal/repository"

	"github.com/google/uuid"
)

type checkoutService struct {
	store        repository.Store
	ledger       InventoryLedger
	availability AvailabilityChecker
	reservations ReservationService
	notify       *notifier
	settings     Settings
}

func NewCheckoutService(store repository.Store, ledger InventoryLedger, availability AvailabilityChecker, reservations ReservationService, c cache.ProductCache, p events.Publisher, settings Settings) CheckoutService {
	return &checkoutService{
		store:        store,
		ledger:       ledger,
		availability: availability,
		reservations: reservations,
		notify:       newNotifier(store, c, p),
		settings:     settings,
	}
}

// Checkout reserves each line in submission order. Each line commits on its own, so stock is
// consumed exactly when its reservation row exists. In atomic mode a failed line cancels the
// lines already placed.
func (s *checkoutService) Checkout(ctx context.Context, customer domain.Customer, items []domain.LineItem) (*domain.CheckoutResult, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	result := &domain.CheckoutResult{CheckoutID: uuid.NewString()}
	log := logger.FromContext(ctx).With("checkout_id", result.CheckoutID, "customer_id", customer.ID)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			result.Items = append(result.Items, failedLine(item, err))
			continue
		}
		line := s.placeLine(ctx, result.CheckoutID, customer, item)
		if !line.OK() {
			log.WarnContext(ctx, "Checkout line rejected", "product_id", item.ProductID, "reason", line.ErrorReason)
		}
		result.Items = append(result.Items, line)
	}

	if s.settings.CheckoutMode == CheckoutModeAtomic && result.Succeeded() < len(result.Items) {
		s.compensate(ctx, result)
	}

	log.InfoContext(ctx, "Checkout completed", "lines", len(result.Items), "succeeded", result.Succeeded())
	s.notify.send(context.WithoutCancel(ctx), events.New(events.TypeCheckoutCompleted, result.CheckoutID, result))
	return result, nil
}

func failedLine(item domain.LineItem, err error) domain.LineResult {
	return domain.LineResult{
		ProductID:   item.ProductID,
		Status:      domain.LineStatusError,
		ErrorReason: err.Error(),
		Err:         err,
	}
}

func (s *checkoutService) placeLine(ctx context.Context, checkoutID string, customer domain.Customer, item domain.LineItem) domain.LineResult {
	var res *domain.Reservation
	err := withRetry(ctx, s.settings.Retry, func() error {
		var err error
		res, err = s.reserveLine(ctx, checkoutID, customer, item)
		return err
	})
	if err != nil {
		return failedLine(item, err)
	}
	return domain.LineResult{
		ProductID:     item.ProductID,
		Status:        domain.LineStatusOK,
		ReservationID: res.ID,
	}
}

// reserveLine prices, admits and persists one line in a single transaction.
// Pricing runs first so a misconfigured product never touches stock.
func (s *checkoutService) reserveLine(ctx context.Context, checkoutID string, customer domain.Customer, item domain.LineItem) (*domain.Reservation, error) {
	var out *domain.Reservation
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		var (
			product *domain.Product
			err     error
		)
		if s.settings.InventoryPolicy == InventoryPolicyCalendar {
			product, err = s.store.Products().GetForUpdate(ctx, item.ProductID)
		} else {
			product, err = s.store.Products().GetByID(ctx, item.ProductID)
		}
		if err != nil {
			return err
		}

		res, err := newReservation(product, customer, item, domain.ReservationStatusConfirmed)
		if err != nil {
			return err
		}
		res.CheckoutID = checkoutID

		if s.settings.InventoryPolicy == InventoryPolicyCalendar {
			avail, err := s.availability.CheckAvailability(ctx, product.ID, res.Interval(), res.Quantity, 0)
			if err != nil {
				return err
			}
			if !avail.Available {
				return &domain.StockError{ProductID: product.ID, Requested: res.Quantity, Available: avail.TotalQuantity - avail.PeakReserved}
			}
		} else {
			if _, err := s.ledger.Consume(ctx, product.ID, res.Quantity); err != nil {
				return err
			}
			res.StockHeld = true
		}

		if err := res.Validate(); err != nil {
			return err
		}
		if err := s.store.Reservations().Create(ctx, res); err != nil {
			return err
		}
		s.notify.reservationChanged(ctx, events.TypeReservationCreated, res, "")
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// compensate cancels every reservation persisted under the checkout, including rows whose commit
// succeeded after the caller saw an error. It runs detached from the request context so a client
// disconnect cannot leave half a checkout holding stock.
func (s *checkoutService) compensate(ctx context.Context, result *domain.CheckoutResult) {
	cctx := context.WithoutCancel(ctx)

	targets := make(map[int32]struct{})
	for _, line := range result.Items {
		if line.OK() {
			targets[line.ReservationID] = struct{}{}
		}
	}
	var placed []domain.Reservation
	err := withRetry(cctx, s.settings.Retry, func() error {
		var err error
		placed, err = s.store.Reservations().ListByCheckout(cctx, result.CheckoutID)
		return err
	})
	if err != nil {
		logger.ErrorContext(cctx, "Listing checkout reservations failed; compensating reported lines only",
			"checkout_id", result.CheckoutID, "error", err)
	}
	for _, res := range placed {
		if !res.Status.IsTerminal() {
			targets[res.ID] = struct{}{}
		}
	}

	cancelled := make(map[int32]bool, len(targets))
	ids := make([]int32, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		err := withRetry(cctx, s.settings.Retry, func() error {
			_, err := s.reservations.Transition(cctx, domain.SystemActor, id, domain.ReservationStatusCancelled)
			return err
		})
		if err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
			logger.ErrorContext(cctx, "Checkout compensation failed", "checkout_id", result.CheckoutID,
				"reservation_id", id, "error", err)
			continue
		}
		cancelled[id] = true
		logger.InfoContext(cctx, "Checkout reservation rolled back", "checkout_id", result.CheckoutID, "reservation_id", id)
	}

	for i, line := range result.Items {
		if !line.OK() || !cancelled[line.ReservationID] {
			continue
		}
		result.Items[i] = domain.LineResult{
			ProductID:     line.ProductID,
			Status:        domain.LineStatusError,
			ReservationID: line.ReservationID,
			ErrorReason:   fmt.Sprintf("%s (reservation %d cancelled)", domain.ErrCheckoutAborted, line.ReservationID),
			Err:           domain.ErrCheckoutAborted,
		}
	}
}
