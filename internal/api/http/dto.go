package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"rental-reservation-backend/internal/domain"
	"rental-reservation-backend/internal/utils"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

type lineItemRequest struct {
	ProductID    int32  `json:"product_id" validate:"required,gt=0"`
	Quantity     int32  `json:"quantity"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	DurationUnit string `json:"duration_unit"`
}

// toLineItem leaves unparseable dates zero; the checkout reports them on the line.
func (l lineItemRequest) toLineItem() domain.LineItem {
	start, _ := utils.ParseDate(l.StartDate)
	end, _ := utils.ParseDate(l.EndDate)
	unit := domain.DurationUnit(l.DurationUnit)
	if unit == "" {
		unit = domain.DurationUnitDay
	}
	return domain.LineItem{
		ProductID:    l.ProductID,
		Quantity:     l.Quantity,
		StartDate:    start,
		EndDate:      end,
		DurationUnit: unit,
	}
}

type checkoutRequest struct {
	// Staff may check out on behalf of a customer.
	CustomerID    int32             `json:"customer_id" validate:"omitempty,gt=0"`
	CustomerEmail string            `json:"customer_email" validate:"omitempty,email"`
	Items         []lineItemRequest `json:"items" validate:"dive"`
}

type quotationRequest struct {
	CustomerID    int32  `json:"customer_id" validate:"omitempty,gt=0"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
	ProductID     int32  `json:"product_id" validate:"required,gt=0"`
	Quantity      int32  `json:"quantity" validate:"required,gt=0"`
	StartDate     string `json:"start_date" validate:"required"`
	EndDate       string `json:"end_date" validate:"required"`
	DurationUnit  string `json:"duration_unit" validate:"required,oneof=hour day week month year"`
}

type quoteRequest struct {
	ProductID int32  `json:"product_id" validate:"required,gt=0"`
	Quantity  int32  `json:"quantity" validate:"required,gt=0"`
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

type transitionRequest struct {
	TargetState string `json:"target_state" validate:"required"`
}

type scheduleRequest struct {
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
}

type paymentRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=pending partial paid refunded"`
}

type priceTableRequest struct {
	HourCents  int64 `json:"hour_cents" validate:"gte=0,lte=10000000000"`
	DayCents   int64 `json:"day_cents" validate:"gte=0,lte=10000000000"`
	WeekCents  int64 `json:"week_cents" validate:"gte=0,lte=10000000000"`
	MonthCents int64 `json:"month_cents" validate:"gte=0,lte=10000000000"`
	YearCents  int64 `json:"year_cents" validate:"gte=0,lte=10000000000"`
}

func (p priceTableRequest) toDomain() domain.PriceTable {
	return domain.PriceTable{
		HourCents:  p.HourCents,
		DayCents:   p.DayCents,
		WeekCents:  p.WeekCents,
		MonthCents: p.MonthCents,
		YearCents:  p.YearCents,
	}
}

type productRequest struct {
	Name          string            `json:"name" validate:"required,max=200"`
	Description   string            `json:"description" validate:"max=4000"`
	Prices        priceTableRequest `json:"prices"`
	TotalQuantity int32             `json:"total_quantity" validate:"gte=0"`
	OwnerID       int32             `json:"owner_id" validate:"omitempty,gt=0"`
}

type stockRequest struct {
	Delta int32 `json:"delta" validate:"required"`
}

type limitsRequest struct {
	MinQuantity int32 `json:"min_quantity" validate:"gte=0"`
	MaxQuantity int32 `json:"max_quantity" validate:"gte=0"`
}

type reservationView struct {
	domain.Reservation
	EffectiveStatus domain.ReservationStatus `json:"effective_status"`
}

func newReservationView(r *domain.Reservation, now time.Time) reservationView {
	return reservationView{Reservation: *r, EffectiveStatus: r.EffectiveStatus(now)}
}

type productView struct {
	domain.Product
	LowStock bool `json:"low_stock"`
}

func newProductView(p *domain.Product) productView {
	return productView{Product: *p, LowStock: p.LowStock()}
}

type listResponse[T any] struct {
	Items []T   `json:"items"`
	Total int32 `json:"total"`
	Page  int32 `json:"page"`
}

func (h *Handler) decode(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", errBadRequest, err)
	}
	return h.validate.Struct(dst)
}

func parseInterval(start, end string) (time.Time, time.Time, error) {
	s, err := utils.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, &domain.DateRangeError{Reason: "start: " + err.Error()}
	}
	e, err := utils.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, &domain.DateRangeError{Reason: "end: " + err.Error()}
	}
	return s, e, nil
}

func pathID(r *http.Request, name string) (int32, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 32)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return int32(id), nil
}

func queryInt32(r *http.Request, name string, def int32) (int32, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return int32(v), nil
}
