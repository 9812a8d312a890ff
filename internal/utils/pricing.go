package utils

import (
	"fmt"
	"math"
	"strings"
	"time"

	"rental-reservation-backend/internal/domain"
)

const lateFeeDay = 24 * time.Hour

// RentalCost is the priced result for one line.
type RentalCost struct {
	Duration       int32
	UnitPriceCents int64
	TotalCents     int64
}

// ParseDate accepts RFC3339 instants or yyyy-mm-dd calendar dates.
// Calendar dates are taken as midnight UTC.
func ParseDate(dateStr string) (time.Time, error) {
	s := strings.TrimSpace(dateStr)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format, expected yyyy-mm-dd or RFC3339")
	}
	return t, nil
}

// ceilDiv rounds a positive span up to whole units.
func ceilDiv(span, unit time.Duration) int64 {
	n := int64(span / unit)
	if span%unit != 0 {
		n++
	}
	return n
}

// mulCents multiplies non-negative amounts and fails instead of wrapping.
func mulCents(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("%w: negative factor", domain.ErrAmountOverflow)
	}
	if a != 0 && b > math.MaxInt64/a {
		return 0, fmt.Errorf("%w: %d x %d", domain.ErrAmountOverflow, a, b)
	}
	return a * b, nil
}

// CalculateDuration returns how many units the interval spans, rounded up.
// It depends only on its inputs so saving a reservation repeatedly always yields the same value.
func CalculateDuration(iv domain.Interval, unit domain.DurationUnit) (int32, error) {
	if !unit.Valid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidDurationUnit, unit)
	}
	if !iv.End.After(iv.Start) {
		return 0, &domain.DateRangeError{Reason: "end must be after start"}
	}
	if iv.TooLong() {
		return 0, &domain.DateRangeError{Reason: "rental span exceeds 100 years"}
	}
	// bounded by MaxRentalSpan, so Length neither saturates nor overflows int32 hours
	return int32(ceilDiv(iv.Length(), unit.Length())), nil
}

// CalculatePrice prices one unit of product for duration units. A missing rate is a
// configuration error on the product, never a free rental.
func CalculatePrice(product *domain.Product, unit domain.DurationUnit, duration int32) (int64, error) {
	if !unit.Valid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidDurationUnit, unit)
	}
	rate := product.Prices.Rate(unit)
	if rate <= 0 {
		return 0, &domain.PricingError{ProductID: product.ID, Unit: unit}
	}
	return mulCents(rate, int64(duration))
}

// CalculateRentalCost prices qty units over the interval and returns the rate used so it
// can be stored on the reservation.
func CalculateRentalCost(product *domain.Product, iv domain.Interval, unit domain.DurationUnit, qty int32) (RentalCost, error) {
	if qty <= 0 {
		return RentalCost{}, domain.ErrInvalidQuantity
	}
	duration, err := CalculateDuration(iv, unit)
	if err != nil {
		return RentalCost{}, err
	}
	perUnit, err := CalculatePrice(product, unit, duration)
	if err != nil {
		return RentalCost{}, err
	}
	total, err := mulCents(perUnit, int64(qty))
	if err != nil {
		return RentalCost{}, err
	}
	return RentalCost{
		Duration:       duration,
		UnitPriceCents: product.Prices.Rate(unit),
		TotalCents:     total,
	}, nil
}

// RepriceFromSnapshot recomputes a reservation's duration and total from its stored rate.
func RepriceFromSnapshot(r *domain.Reservation) error {
	duration, err := CalculateDuration(r.Interval(), r.DurationUnit)
	if err != nil {
		return err
	}
	perUnit, err := mulCents(r.UnitPriceCents, int64(duration))
	if err != nil {
		return err
	}
	total, err := mulCents(perUnit, int64(r.Quantity))
	if err != nil {
		return err
	}
	r.Duration = duration
	r.TotalPriceCents = total
	return nil
}

// CalculateLateFee applies only to delivered reservations past their end date.
// Partial days count as whole days.
func CalculateLateFee(r *domain.Reservation, now time.Time, perDayCents int64) (int64, int32) {
	if !r.IsLate(now) {
		return 0, 0
	}
	daysLate := ceilDiv(now.Sub(r.EndDate), lateFeeDay)
	return daysLate * perDayCents, int32(daysLate)
}

// CalculateAmountDue never lowers a fee that was already recorded.
func CalculateAmountDue(r *domain.Reservation, now time.Time, perDayCents int64) domain.AmountDue {
	fee, daysLate := CalculateLateFee(r, now, perDayCents)
	if r.LateFeesCents > fee {
		fee = r.LateFeesCents
	}
	return domain.AmountDue{
		ReservationID:   r.ID,
		TotalPriceCents: r.TotalPriceCents,
		LateFeesCents:   fee,
		TotalDueCents:   r.TotalPriceCents + fee,
		DaysLate:        daysLate,
	}
}

// BuildQuote prices every unit the product offers and picks the cheapest.
func BuildQuote(product *domain.Product, iv domain.Interval, qty int32) (domain.Quote, error) {
	q := domain.Quote{ProductID: product.ID, Quantity: qty}
	if !product.Prices.HasPositiveRate() {
		return q, &domain.PricingError{ProductID: product.ID, Unit: domain.DurationUnitDay}
	}
	for _, unit := range domain.DurationUnits {
		if product.Prices.Rate(unit) <= 0 {
			continue
		}
		cost, err := CalculateRentalCost(product, iv, unit, qty)
		if err != nil {
			return q, err
		}
		q.Options = append(q.Options, domain.QuoteOption{
			DurationUnit:   unit,
			Duration:       cost.Duration,
			UnitPriceCents: cost.UnitPriceCents,
			TotalCents:     cost.TotalCents,
		})
	}
	for i := range q.Options {
		if q.Cheapest == nil || q.Options[i].TotalCents < q.Cheapest.TotalCents {
			q.Cheapest = &q.Options[i]
		}
	}
	return q, nil
}
