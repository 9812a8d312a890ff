package domain

import "time"

type Customer struct {
	ID    int32  `json:"id"`
	Email string `json:"email"`
}

type LineItem struct {
	ProductID    int32        `json:"product_id"`
	Quantity     int32        `json:"quantity"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	DurationUnit DurationUnit `json:"duration_unit"`
}

type LineStatus string

const (
	LineStatusOK    LineStatus = "ok"
	LineStatusError LineStatus = "error"
)

type LineResult struct {
	ProductID     int32      `json:"product_id"`
	Status        LineStatus `json:"status"`
	ReservationID int32      `json:"reservation_id,omitempty"`
	ErrorReason   string     `json:"error_reason,omitempty"`

	Err error `json:"-"`
}

func (l LineResult) OK() bool { return l.Status == LineStatusOK }

type CheckoutResult struct {
	CheckoutID string       `json:"checkout_id"`
	Items      []LineResult `json:"items"`
}

// Succeeded counts the lines that ended with a reservation.
func (c *CheckoutResult) Succeeded() int {
	n := 0
	for _, item := range c.Items {
		if item.OK() {
			n++
		}
	}
	return n
}

type AvailabilityResult struct {
	ProductID     int32 `json:"product_id"`
	Available     bool  `json:"available"`
	Requested     int32 `json:"requested"`
	PeakReserved  int32 `json:"peak_reserved"`
	TotalQuantity int32 `json:"total_quantity"`
}

type QuoteOption struct {
	DurationUnit   DurationUnit `json:"duration_unit"`
	Duration       int32        `json:"duration"`
	UnitPriceCents int64        `json:"unit_price_cents"`
	TotalCents     int64        `json:"total_cents"`
}

type Quote struct {
	ProductID int32         `json:"product_id"`
	Quantity  int32         `json:"quantity"`
	Options   []QuoteOption `json:"options"`
	Cheapest  *QuoteOption  `json:"cheapest,omitempty"`
}

type AmountDue struct {
	ReservationID   int32 `json:"reservation_id"`
	TotalPriceCents int64 `json:"total_price_cents"`
	LateFeesCents   int64 `json:"late_fees_cents"`
	TotalDueCents   int64 `json:"total_due_cents"`
	DaysLate        int32 `json:"days_late"`
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	RoleStaff    Role = "staff"
	RoleSystem   Role = "system"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID int32
	Role   Role
}

var SystemActor = Actor{Role: RoleSystem}

func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff || a.Role == RoleSystem
}

// CanManage reports whether the actor may administer records owned by ownerID.
func (a Actor) CanManage(ownerID int32) bool {
	return a.IsStaff() || (a.Role == RoleOwner && a.UserID == ownerID)
}
