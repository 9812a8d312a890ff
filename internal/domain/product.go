package domain

import "time"

type DurationUnit string

const (
	DurationUnitHour  DurationUnit = "hour"
	DurationUnitDay   DurationUnit = "day"
	DurationUnitWeek  DurationUnit = "week"
	DurationUnitMonth DurationUnit = "month"
	DurationUnitYear  DurationUnit = "year"
)

// DurationUnits is ordered from shortest to longest.
var DurationUnits = []DurationUnit{
	DurationUnitHour,
	DurationUnitDay,
	DurationUnitWeek,
	DurationUnitMonth,
	DurationUnitYear,
}

func (u DurationUnit) Valid() bool {
	return u.Length() > 0
}

// Length is calendar-approximate: a month is 30 days and a year is 365 days.
func (u DurationUnit) Length() time.Duration {
	switch u {
	case DurationUnitHour:
		return time.Hour
	case DurationUnitDay:
		return 24 * time.Hour
	case DurationUnitWeek:
		return 7 * 24 * time.Hour
	case DurationUnitMonth:
		return 30 * 24 * time.Hour
	case DurationUnitYear:
		return 365 * 24 * time.Hour
	}
	return 0
}

// MaxRateCents caps any single rate at 100 million currency units.
const MaxRateCents int64 = 100_000_000_00

// PriceTable holds the per-unit rates in cents. A zero rate means the unit is not offered.
type PriceTable struct {
	HourCents  int64 `json:"hour_cents"`
	DayCents   int64 `json:"day_cents"`
	WeekCents  int64 `json:"week_cents"`
	MonthCents int64 `json:"month_cents"`
	YearCents  int64 `json:"year_cents"`
}

func (p PriceTable) Rate(unit DurationUnit) int64 {
	switch unit {
	case DurationUnitHour:
		return p.HourCents
	case DurationUnitDay:
		return p.DayCents
	case DurationUnitWeek:
		return p.WeekCents
	case DurationUnitMonth:
		return p.MonthCents
	case DurationUnitYear:
		return p.YearCents
	}
	return 0
}

func (p PriceTable) HasPositiveRate() bool {
	for _, u := range DurationUnits {
		if p.Rate(u) > 0 {
			return true
		}
	}
	return false
}

type Product struct {
	ID                int32      `json:"id"`
	OwnerID           int32      `json:"owner_id"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	Prices            PriceTable `json:"prices"`
	TotalQuantity     int32      `json:"total_quantity"`
	QuantityAvailable int32      `json:"quantity_available"`
	Availability      bool       `json:"availability"`
	MinQuantity       int32      `json:"min_quantity"`
	MaxQuantity       int32      `json:"max_quantity"`
	CreatedOn         time.Time  `json:"created_on"`
	UpdatedOn         time.Time  `json:"updated_on"`
	DeletedOn         *time.Time `json:"deleted_on,omitempty"`
}

// SyncAvailability re-derives the availability flag from the counter.
// Every write path that touches QuantityAvailable calls it.
func (p *Product) SyncAvailability() {
	p.Availability = p.QuantityAvailable > 0
}

// LowStock is a UI warning only; the limits are never enforced.
func (p *Product) LowStock() bool {
	return p.MinQuantity > 0 && p.QuantityAvailable < p.MinQuantity
}

func (p *Product) IsDeleted() bool {
	return p.DeletedOn != nil
}

// StockLevel is the result of a ledger operation.
type StockLevel struct {
	ProductID         int32 `json:"product_id"`
	QuantityAvailable int32 `json:"quantity_available"`
	Availability      bool  `json:"availability"`
}
