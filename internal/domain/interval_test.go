package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestNewInterval(t *testing.T) {
	t.Run("Normalizes to UTC", func(t *testing.T) {
		loc := time.FixedZone("UTC+9", 9*3600)
		start := time.Date(2025, 3, 1, 9, 0, 0, 0, loc)
		iv, err := NewInterval(start, start.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, time.UTC, iv.Start.Location())
		assert.Equal(t, 0, iv.Start.Hour())
	})

	t.Run("Rejects zero length", func(t *testing.T) {
		_, err := NewInterval(day(1), day(1))
		assert.True(t, errors.Is(err, ErrInvalidDateRange))
	})

	t.Run("Rejects inverted", func(t *testing.T) {
		_, err := NewInterval(day(2), day(1))
		var dre *DateRangeError
		assert.True(t, errors.As(err, &dre))
	})

	t.Run("Rejects missing bounds", func(t *testing.T) {
		_, err := NewInterval(time.Time{}, day(1))
		assert.ErrorIs(t, err, ErrInvalidDateRange)
	})
}

func TestIntervalOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"back to back", Interval{day(0), day(2)}, Interval{day(2), day(4)}, false},
		{"back to back reversed", Interval{day(2), day(4)}, Interval{day(0), day(2)}, false},
		{"one hour shared", Interval{day(0), day(2)}, Interval{day(2).Add(-time.Hour), day(4)}, true},
		{"contained", Interval{day(0), day(10)}, Interval{day(3), day(4)}, true},
		{"identical", Interval{day(0), day(1)}, Interval{day(0), day(1)}, true},
		{"disjoint", Interval{day(0), day(1)}, Interval{day(5), day(6)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestIntervalClip(t *testing.T) {
	c, ok := Interval{day(0), day(5)}.Clip(Interval{day(3), day(8)})
	require.True(t, ok)
	assert.Equal(t, day(3), c.Start)
	assert.Equal(t, day(5), c.End)

	_, ok = Interval{day(0), day(1)}.Clip(Interval{day(1), day(2)})
	assert.False(t, ok)

}

func TestNewInterval_RejectsSpansBeyondLimit(t *testing.T) {
	start := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := NewInterval(start, time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	iv, err := NewInterval(start, start.Add(MaxRentalSpan))
	require.NoError(t, err)
	assert.False(t, iv.TooLong())
	assert.True(t, Interval{start, start.Add(MaxRentalSpan + time.Nanosecond)}.TooLong())
}
