package domain

import "time"

// MaxRentalSpan bounds every reservation. Longer spans would saturate time.Duration.
const MaxRentalSpan = 100 * 365 * 24 * time.Hour

// Interval is a half-open span [Start, End) in UTC.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval normalizes both ends to UTC and rejects empty or inverted spans.
func NewInterval(start, end time.Time) (Interval, error) {
	if start.IsZero() || end.IsZero() {
		return Interval{}, &DateRangeError{Reason: "start and end are required"}
	}
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return Interval{}, &DateRangeError{Reason: "end must be after start"}
	}
	iv := Interval{Start: start, End: end}
	if iv.TooLong() {
		return Interval{}, &DateRangeError{Reason: "rental span exceeds 100 years"}
	}
	return iv, nil
}

// Overlaps reports whether the two spans share an instant. Back-to-back spans do not.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// TooLong compares instants rather than Length so it stays exact past the time.Duration range.
func (i Interval) TooLong() bool {
	return i.End.After(i.Start.Add(MaxRentalSpan))
}

func (i Interval) Length() time.Duration {
	return i.End.Sub(i.Start)
}

// Clip returns the part of i that lies inside o. ok is false when they do not overlap.
func (i Interval) Clip(o Interval) (Interval, bool) {
	if !i.Overlaps(o) {
		return Interval{}, false
	}
	c := i
	if o.Start.After(c.Start) {
		c.Start = o.Start
	}
	if o.End.Before(c.End) {
		c.End = o.End
	}
	return c, true
}
