package domain

import (
	"strings"
	"time"
)

type ReservationStatus string

const (
	ReservationStatusQuotation ReservationStatus = "quotation"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusReserved  ReservationStatus = "reserved"
	ReservationStatusDelivered ReservationStatus = "delivered"
	ReservationStatusReturned  ReservationStatus = "returned"
	ReservationStatusLate      ReservationStatus = "late" // derived, never stored
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// ActiveStatuses are the statuses that occupy inventory.
var ActiveStatuses = []ReservationStatus{
	ReservationStatusConfirmed,
	ReservationStatusReserved,
	ReservationStatusDelivered,
}

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusQuotation: {ReservationStatusConfirmed, ReservationStatusCancelled},
	ReservationStatusConfirmed: {ReservationStatusReserved, ReservationStatusCancelled},
	ReservationStatusReserved:  {ReservationStatusDelivered, ReservationStatusCancelled},
	ReservationStatusDelivered: {ReservationStatusReturned, ReservationStatusCancelled},
}

// ParseReservationStatus accepts "picked-up" and "picked_up" as aliases for delivered.
func ParseReservationStatus(s string) (ReservationStatus, bool) {
	switch v := ReservationStatus(strings.ToLower(strings.TrimSpace(s))); v {
	case ReservationStatusQuotation, ReservationStatusConfirmed, ReservationStatusReserved,
		ReservationStatusDelivered, ReservationStatusReturned, ReservationStatusLate, ReservationStatusCancelled:
		return v, true
	case "picked-up", "picked_up", "pickedup":
		return ReservationStatusDelivered, true
	}
	return "", false
}

func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationStatusReturned || s == ReservationStatusCancelled
}

func (s ReservationStatus) IsActive() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition is the single check every status change goes through.
func ValidateTransition(from, to ReservationStatus) error {
	if !from.CanTransitionTo(to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentStatusPending, PaymentStatusPartial, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

type Reservation struct {
	ID            int32        `json:"id"`
	ProductID     int32        `json:"product_id"`
	CustomerID    int32        `json:"customer_id"`
	OwnerID       int32        `json:"owner_id"`
	CustomerEmail string       `json:"customer_email"`
	CheckoutID    string       `json:"checkout_id,omitempty"`
	Quantity      int32        `json:"quantity"`
	StartDate     time.Time    `json:"start_date"`
	EndDate       time.Time    `json:"end_date"`
	Duration      int32        `json:"duration"`
	DurationUnit  DurationUnit `json:"duration_unit"`
	// Rate captured from the product when the reservation was priced.
	// Later price edits on the product do not reach existing reservations.
	UnitPriceCents  int64             `json:"unit_price_cents"`
	TotalPriceCents int64             `json:"total_price_cents"`
	Status          ReservationStatus `json:"status"`
	PaymentStatus   PaymentStatus     `json:"payment_status"`
	PickupDate      *time.Time        `json:"pickup_date,omitempty"`
	ReturnDate      *time.Time        `json:"return_date,omitempty"`
	LateFeesCents   int64             `json:"late_fees_cents"`
	// StockHeld is true while this reservation has units consumed from the ledger.
	StockHeld bool      `json:"stock_held"`
	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

func (r *Reservation) Interval() Interval {
	return Interval{Start: r.StartDate, End: r.EndDate}
}

// Validate checks the date ordering. It runs before every save.
func (r *Reservation) Validate() error {
	if r.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if !r.EndDate.After(r.StartDate) {
		return &DateRangeError{Reason: "end date must be after start date"}
	}
	if r.PickupDate != nil && r.PickupDate.Before(r.StartDate) {
		return &DateRangeError{Reason: "pickup date must not be before start date"}
	}
	if r.ReturnDate != nil && r.PickupDate != nil && r.ReturnDate.Before(*r.PickupDate) {
		return &DateRangeError{Reason: "return date must not be before pickup date"}
	}
	return nil
}

func (r *Reservation) IsLate(now time.Time) bool {
	return r.Status == ReservationStatusDelivered && now.After(r.EndDate)
}

// EffectiveStatus is what staff and customers see. A delivered reservation past its end date shows as late.
func (r *Reservation) EffectiveStatus(now time.Time) ReservationStatus {
	if r.IsLate(now) {
		return ReservationStatusLate
	}
	return r.Status
}
