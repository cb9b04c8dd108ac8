package daterange

import (
	"errors"
	"iter"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
)

const dayLayout = "2006-01-02"

// DateRange represents a half-open interval of calendar days [checkIn, checkOut).
// Both bounds are kept at midnight UTC.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	if checkIn.IsZero() || checkOut.IsZero() {
		return DateRange{}, ErrInvalidRange
	}
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// MustNew panics on an invalid range; intended for fixtures and tests.
func MustNew(checkIn, checkOut time.Time) DateRange {
	dr, err := New(checkIn, checkOut)
	if err != nil {
		panic(err)
	}
	return dr
}

// Parse builds a range from two YYYY-MM-DD strings.
func Parse(checkIn, checkOut string) (DateRange, error) {
	in, err := ParseDay(checkIn)
	if err != nil {
		return DateRange{}, err
	}
	out, err := ParseDay(checkOut)
	if err != nil {
		return DateRange{}, err
	}
	return New(in, out)
}

// ParseDay accepts YYYY-MM-DD or RFC3339 and returns the UTC calendar day.
func ParseDay(value string) (time.Time, error) {
	if t, err := time.Parse(dayLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, ErrInvalidRange
	}
	return Day(t), nil
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats the calendar day of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return Day(t).Format(dayLayout)
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

func (dr DateRange) Nights() int {
	return int(dr.CheckOut.Sub(dr.CheckIn).Hours() / 24)
}

// Overlaps reports whether two ranges share at least one night. A checkout on the
// same day as another check-in does not overlap.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) Contains(other DateRange) bool {
	return !dr.CheckIn.After(other.CheckIn) && !dr.CheckOut.Before(other.CheckOut)
}

// ContainsDay reports checkIn <= day < checkOut, ignoring time of day.
func (dr DateRange) ContainsDay(t time.Time) bool {
	d := Day(t)
	return !d.Before(dr.CheckIn) && d.Before(dr.CheckOut)
}

// Days yields every calendar day from checkIn through checkOut, checkout day included.
func (dr DateRange) Days() iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if dr.Validate() != nil {
			return
		}
		for d := dr.CheckIn; !d.After(dr.CheckOut); d = d.AddDate(0, 0, 1) {
			if !yield(d) {
				return
			}
		}
	}
}

func (dr DateRange) Adjacent(other DateRange) bool {
	return dr.CheckOut.Equal(other.CheckIn) || dr.CheckIn.Equal(other.CheckOut)
}

func (dr DateRange) Merge(other DateRange) (DateRange, bool) {
	if !(dr.Overlaps(other) || dr.Adjacent(other)) {
		return DateRange{}, false
	}
	start := dr.CheckIn
	if other.CheckIn.Before(start) {
		start = other.CheckIn
	}
	end := dr.CheckOut
	if other.CheckOut.After(end) {
		end = other.CheckOut
	}
	return DateRange{CheckIn: start, CheckOut: end}, true
}

func (dr DateRange) String() string {
	return dr.CheckIn.Format(dayLayout) + ".." + dr.CheckOut.Format(dayLayout)
}
